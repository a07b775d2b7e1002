// Package whatsapp is the webhook chat ingress for the WhatsApp Cloud API.
// Inbound messages are verified, their text extracted, run through the
// ingest pipeline, and best-effort forwarded to a Telegram chat so the
// operator keeps a trace of everything that arrived.
package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rinviabot/internal/ingest"
)

const signatureHeader = "X-Hub-Signature-256"

// Forwarder relays a notification somewhere else, fire and forget.
type Forwarder interface {
	Forward(text string)
}

// Server handles the Meta webhook verification handshake and inbound
// message notifications.
type Server struct {
	logger   *slog.Logger
	pipeline *ingest.Pipeline // nil: extract and forward only
	fwd      Forwarder        // nil: no forwarding

	verifyToken string
	appSecret   string // empty: signature verification disabled
	prefix      string
}

// NewServer builds a webhook server. verifyToken must match the token
// configured in the Meta app dashboard; appSecret enables signature checks
// on inbound payloads when set.
func NewServer(logger *slog.Logger, pipeline *ingest.Pipeline, fwd Forwarder, verifyToken, appSecret, prefix string) *Server {
	return &Server{
		logger:      logger,
		pipeline:    pipeline,
		fwd:         fwd,
		verifyToken: verifyToken,
		appSecret:   appSecret,
		prefix:      prefix,
	}
}

// Router returns the HTTP routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/webhook", s.handleVerify)
	r.POST("/webhook", s.handleNotify)
	return r
}

// Run serves the webhook until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Webhook server listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleVerify answers the Meta subscription handshake: the challenge is
// echoed as plain text when the verify token matches.
func (s *Server) handleVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == s.verifyToken && challenge != "" {
		c.String(http.StatusOK, challenge)
		return
	}
	c.String(http.StatusForbidden, "Forbidden")
}

// handleNotify processes an inbound webhook delivery. Once the signature
// checks out the delivery is always ACKed with 200: Meta retries on
// anything else and a poison payload must not loop forever.
func (s *Server) handleNotify(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "Bad Request")
		return
	}

	if !s.validSignature(body, c.GetHeader(signatureHeader)) {
		s.logger.Warn("Rejected webhook delivery with bad signature")
		c.String(http.StatusForbidden, "Invalid signature")
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.String(http.StatusBadRequest, "Bad Request")
		return
	}

	sender, text, ok := extractText(&payload)
	if !ok {
		s.logger.Debug("Webhook delivery carried no message text")
		s.forward(fmt.Sprintf("%s (unparsed)\n\n%s", s.prefix, string(body)))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	s.logger.Debug("Message received", "sender", sender)
	s.forward(fmt.Sprintf("%s %s\n\n%s", s.prefix, sender, text))

	if s.pipeline != nil {
		if reply := s.pipeline.Handle(c.Request.Context(), text); reply != "" {
			s.forward(reply)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// validSignature checks the X-Hub-Signature-256 header against the raw
// body. With no app secret configured every delivery passes.
func (s *Server) validSignature(body []byte, header string) bool {
	if s.appSecret == "" {
		return true
	}
	received, found := strings.CutPrefix(header, "sha256=")
	if !found {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.TrimSpace(received)), []byte(expected))
}

// forward relays text best-effort; no forwarder configured means no-op.
func (s *Server) forward(text string) {
	if s.fwd != nil {
		s.fwd.Forward(text)
	}
}
