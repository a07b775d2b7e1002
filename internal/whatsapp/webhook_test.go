package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rinviabot/internal/ingest"
	"rinviabot/internal/parser"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingForwarder struct {
	messages []string
}

func (f *recordingForwarder) Forward(text string) {
	f.messages = append(f.messages, text)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

const textPayload = `{
  "entry": [{
    "changes": [{
      "value": {
        "contacts": [{"wa_id": "3912345", "profile": {"name": "Fabio"}}],
        "messages": [{"from": "3912345", "type": "text", "text": {"body": "Riunione\n13/2/26 h 12"}}]
      }
    }]
  }]
}`

func TestVerifyHandshake(t *testing.T) {
	s := NewServer(discard(), nil, nil, "segreto", "", "📩 WA →")
	router := s.Router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=segreto&hub.challenge=12345", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12345", w.Body.String())
}

func TestVerifyHandshakeRejectsBadToken(t *testing.T) {
	s := NewServer(discard(), nil, nil, "segreto", "", "📩 WA →")
	router := s.Router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=sbagliato&hub.challenge=12345", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNotifyRunsPipelineAndForwards(t *testing.T) {
	fwd := &recordingForwarder{}
	pipeline := ingest.NewPipeline(discard(), parser.New(), nil, false)
	s := NewServer(discard(), pipeline, fwd, "segreto", "", "📩 WA →")
	router := s.Router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textPayload))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, fwd.messages, 2)
	assert.Equal(t, "📩 WA → Fabio\n\nRiunione\n13/2/26 h 12", fwd.messages[0])
	assert.Contains(t, fwd.messages[1], "📅 Evento creato!")
}

func TestNotifySignatureChecked(t *testing.T) {
	body := []byte(textPayload)
	fwd := &recordingForwarder{}
	s := NewServer(discard(), nil, fwd, "segreto", "app-secret", "📩 WA →")
	router := s.Router()

	// Missing signature is rejected.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textPayload))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, fwd.messages)

	// Wrong secret is rejected.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textPayload))
	req.Header.Set(signatureHeader, sign("altro-secret", body))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Valid signature passes.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textPayload))
	req.Header.Set(signatureHeader, sign("app-secret", body))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, fwd.messages, 1)
}

func TestNotifyMalformedJSON(t *testing.T) {
	s := NewServer(discard(), nil, nil, "segreto", "", "📩 WA →")
	router := s.Router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotifyUnparsedPayloadForwardedRaw(t *testing.T) {
	fwd := &recordingForwarder{}
	s := NewServer(discard(), nil, fwd, "segreto", "", "📩 WA →")
	router := s.Router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"entry": []}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, fwd.messages, 1)
	assert.Contains(t, fwd.messages[0], "(unparsed)")
}

func TestExtractTextVariants(t *testing.T) {
	tests := []struct {
		name   string
		msg    Message
		text   string
		wantOK bool
	}{
		{
			name:   "plain text",
			msg:    Message{Type: "text", Text: &Text{Body: " ciao "}},
			text:   "ciao",
			wantOK: true,
		},
		{
			name:   "button",
			msg:    Message{Type: "button", Button: &Button{Text: "Conferma"}},
			text:   "Conferma",
			wantOK: true,
		},
		{
			name: "interactive button reply",
			msg: Message{Type: "interactive", Interactive: &Interactive{
				Type:        "button_reply",
				ButtonReply: &Reply{Title: "Si"},
			}},
			text:   "Si",
			wantOK: true,
		},
		{
			name: "interactive list reply",
			msg: Message{Type: "interactive", Interactive: &Interactive{
				Type:      "list_reply",
				ListReply: &Reply{Title: "Martedì"},
			}},
			text:   "Martedì",
			wantOK: true,
		},
		{
			name:   "media has no text",
			msg:    Message{Type: "image"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.msg.From = "3912345"
			p := &Payload{Entry: []Entry{{Changes: []Change{{Value: Value{Messages: []Message{tt.msg}}}}}}}

			sender, text, ok := extractText(p)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, "3912345", sender)
				assert.Equal(t, tt.text, text)
			}
		})
	}
}
