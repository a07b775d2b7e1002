// Package ingest wires the parser to a calendar backend and decides what to
// answer the sender. Both chat ingresses (Telegram polling and the WhatsApp
// webhook) funnel their messages through the same Pipeline.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rinviabot/internal/models"
	"rinviabot/internal/parser"
)

// EventWriter is a calendar backend that persists a draft and returns a link
// to the created event (possibly empty).
type EventWriter interface {
	CreateEvent(ctx context.Context, draft *models.Draft) (string, error)
}

// Pipeline runs parse → insert → reply for one message at a time. It is
// stateless and safe for concurrent use.
type Pipeline struct {
	logger *slog.Logger
	parser *parser.Parser
	writer EventWriter

	// replyOnUnrecognized selects between answering every message and
	// silently skipping the ones that are not events. Group chats want
	// silence, direct chats want feedback.
	replyOnUnrecognized bool
}

// NewPipeline creates a Pipeline. writer may be nil, in which case drafts
// are parsed and acknowledged but not persisted anywhere (the webhook can
// run as a pure forwarder that way).
func NewPipeline(logger *slog.Logger, p *parser.Parser, writer EventWriter, replyOnUnrecognized bool) *Pipeline {
	return &Pipeline{
		logger:              logger,
		parser:              p,
		writer:              writer,
		replyOnUnrecognized: replyOnUnrecognized,
	}
}

// Fixed user-facing replies. All messaging toward the user happens in the
// sender's language, matching the grammar the parser accepts.
const (
	replyUnrecognized = "🤔 Non ho riconosciuto un evento. Servono data e ora, per esempio:\nRiunione\n13/2/26 h 12"
	replyBadDate      = "⚠️ La data indicata non esiste sul calendario."
	replyInsertFailed = "⚠️ Errore nella creazione dell'evento."
)

// Handle processes one inbound message and returns the reply to send back,
// or "" when the sender should not be answered. Backend failures never
// propagate: they are logged and turned into a generic apology.
func (p *Pipeline) Handle(ctx context.Context, text string) string {
	draft, err := p.parser.Parse(text)
	switch {
	case errors.Is(err, parser.ErrBadDate):
		// The sender clearly tried to create an event, so this one is
		// answered even when unrecognized messages are skipped.
		p.logger.Debug("Message had an impossible date", "text", text)
		return replyBadDate
	case err != nil:
		p.logger.Debug("Message not recognized as an event", "text", text)
		if p.replyOnUnrecognized {
			return replyUnrecognized
		}
		return ""
	}

	link := ""
	if p.writer != nil {
		link, err = p.writer.CreateEvent(ctx, draft)
		if err != nil {
			p.logger.Error("Failed to create calendar event", "title", draft.Title, "error", err)
			return replyInsertFailed
		}
	}

	return confirmation(draft, link)
}

// confirmation builds the reply for a successfully created event.
func confirmation(draft *models.Draft, link string) string {
	msg := fmt.Sprintf("📅 Evento creato!\n• Titolo: %s\n• Quando: %s → %s",
		draft.Title,
		draft.Start.Format("02/01/2006 15:04"),
		draft.End.Format("15:04"))
	if draft.Location != "" {
		msg += fmt.Sprintf("\n• Luogo: %s", draft.Location)
	}
	if link != "" {
		msg += fmt.Sprintf("\n🔗 %s", link)
	}
	return msg
}
