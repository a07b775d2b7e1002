package whatsapp

import "strings"

// Payload is the WhatsApp Cloud API webhook envelope, reduced to the fields
// this service reads.
type Payload struct {
	Entry []Entry `json:"entry"`
}

type Entry struct {
	Changes []Change `json:"changes"`
}

type Change struct {
	Value Value `json:"value"`
}

type Value struct {
	Messages []Message `json:"messages"`
	Contacts []Contact `json:"contacts"`
}

type Contact struct {
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

type Profile struct {
	Name string `json:"name"`
}

type Message struct {
	From        string       `json:"from"`
	Type        string       `json:"type"`
	Text        *Text        `json:"text"`
	Button      *Button      `json:"button"`
	Interactive *Interactive `json:"interactive"`
}

type Text struct {
	Body string `json:"body"`
}

type Button struct {
	Text string `json:"text"`
}

type Interactive struct {
	Type        string `json:"type"`
	ButtonReply *Reply `json:"button_reply"`
	ListReply   *Reply `json:"list_reply"`
}

type Reply struct {
	Title string `json:"title"`
}

// extractText pulls the first human-readable message text out of a webhook
// delivery, together with who sent it (profile name if present, otherwise
// the WhatsApp id). Media and other non-text messages yield no text.
func extractText(p *Payload) (sender, text string, ok bool) {
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			value := change.Value

			contactName, waID := "", ""
			if len(value.Contacts) > 0 {
				contactName = value.Contacts[0].Profile.Name
				waID = value.Contacts[0].WaID
			}

			for _, msg := range value.Messages {
				body := messageBody(&msg)
				if body == "" {
					continue
				}

				sender = contactName
				if sender == "" {
					sender = msg.From
				}
				if sender == "" {
					sender = waID
				}
				if sender == "" {
					sender = "unknown"
				}
				return sender, body, true
			}
		}
	}
	return "", "", false
}

func messageBody(msg *Message) string {
	switch msg.Type {
	case "text":
		if msg.Text != nil {
			return strings.TrimSpace(msg.Text.Body)
		}
	case "button":
		if msg.Button != nil {
			return strings.TrimSpace(msg.Button.Text)
		}
	case "interactive":
		if msg.Interactive == nil {
			return ""
		}
		switch msg.Interactive.Type {
		case "button_reply":
			if msg.Interactive.ButtonReply != nil {
				return strings.TrimSpace(msg.Interactive.ButtonReply.Title)
			}
		case "list_reply":
			if msg.Interactive.ListReply != nil {
				return strings.TrimSpace(msg.Interactive.ListReply.Title)
			}
		}
	}
	return ""
}
