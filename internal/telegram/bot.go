// Package telegram is the long-polling chat ingress: every text message the
// bot receives is fed through the ingest pipeline, and replies go back to
// the same chat. It also serves as the notification target for the WhatsApp
// webhook forwarder.
package telegram

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rinviabot/internal/ingest"
)

const pollTimeoutSeconds = 30

// Bot polls the Telegram API and processes inbound messages.
type Bot struct {
	api      *tgbotapi.BotAPI
	logger   *slog.Logger
	pipeline *ingest.Pipeline

	// forwardChatID is where Forward delivers text; 0 disables forwarding.
	forwardChatID int64
}

// NewBot authenticates against the Telegram API. pipeline may be nil for a
// notifier-only bot that just delivers forwards.
func NewBot(logger *slog.Logger, token string, pipeline *ingest.Pipeline, forwardChatID int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	logger.Info("Telegram bot authenticated", "username", api.Self.UserName)

	return &Bot{
		api:           api,
		logger:        logger,
		pipeline:      pipeline,
		forwardChatID: forwardChatID,
	}, nil
}

// Run polls for updates until the context is cancelled. Commands and
// non-text messages are ignored; everything else goes through the pipeline.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Listening for Telegram messages")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if b.pipeline == nil {
		return
	}
	if update.Message == nil || update.Message.Text == "" || update.Message.IsCommand() {
		return
	}

	text := strings.TrimSpace(update.Message.Text)
	chatID := update.Message.Chat.ID
	b.logger.Debug("Message received", "chatID", chatID)

	if reply := b.pipeline.Handle(ctx, text); reply != "" {
		b.send(chatID, reply)
	}
}

// Forward delivers text to the configured forward chat. It is fire and
// forget with no retries: a chat outage must never take down the caller.
func (b *Bot) Forward(text string) {
	if b.forwardChatID == 0 {
		return
	}
	b.send(b.forwardChatID, text)
}

// send delivers a message best-effort; failures are logged, never raised.
func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("Failed to send Telegram message", "chatID", chatID, "error", err)
	}
}
