package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"rinviabot/internal/caldav"
	"rinviabot/internal/config"
	"rinviabot/internal/google"
	"rinviabot/internal/ingest"
	"rinviabot/internal/parser"
	"rinviabot/internal/telegram"
	"rinviabot/internal/whatsapp"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "rinviabot",
		Usage: "Turn chat messages into calendar events.",
		Commands: []*cli.Command{
			botCommand(),
			webhookCommand(),
			parseCommand(),
			upcomingCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func botCommand() *cli.Command {
	return &cli.Command{
		Name:  "bot",
		Usage: "Run the Telegram bot: poll for messages and create events.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Parse and reply without creating events."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			if cfg.TelegramToken == "" {
				return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			var writer ingest.EventWriter
			if c.Bool("dry-run") {
				logger.Info("Performing a dry run. No events will be created.")
			} else {
				writer, err = newWriter(ctx, logger, cfg)
				if err != nil {
					return err
				}
			}

			pipeline := ingest.NewPipeline(logger, newParser(cfg), writer, cfg.ReplyOnUnrecognized)
			bot, err := telegram.NewBot(logger, cfg.TelegramToken, pipeline, cfg.ForwardChatID)
			if err != nil {
				return fmt.Errorf("failed to create telegram bot: %w", err)
			}

			if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
				return fmt.Errorf("bot stopped: %w", err)
			}
			logger.Info("Bot stopped.")
			return nil
		},
	}
}

func webhookCommand() *cli.Command {
	return &cli.Command{
		Name:  "webhook",
		Usage: "Serve the WhatsApp Cloud API webhook.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "forward-only", Usage: "Only forward messages to Telegram, don't create events."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			if cfg.WhatsAppVerifyToken == "" {
				return fmt.Errorf("WHATSAPP_VERIFY_TOKEN environment variable not set")
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			var pipeline *ingest.Pipeline
			if !c.Bool("forward-only") {
				writer, err := newWriter(ctx, logger, cfg)
				if err != nil {
					return err
				}
				pipeline = ingest.NewPipeline(logger, newParser(cfg), writer, cfg.ReplyOnUnrecognized)
			}

			var fwd whatsapp.Forwarder
			if cfg.TelegramToken != "" && cfg.ForwardChatID != 0 {
				bot, err := telegram.NewBot(logger, cfg.TelegramToken, nil, cfg.ForwardChatID)
				if err != nil {
					return fmt.Errorf("failed to create telegram notifier: %w", err)
				}
				fwd = bot
			} else {
				logger.Info("Telegram forwarding disabled. Set TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID to enable it.")
			}

			server := whatsapp.NewServer(logger, pipeline, fwd, cfg.WhatsAppVerifyToken, cfg.MetaAppSecret, cfg.ForwardPrefix)
			return server.Run(ctx, cfg.ListenAddr)
		},
	}
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Parse a message and print the extracted event draft.",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "insert", Usage: "Also create the event on the configured calendar."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			text := strings.Join(c.Args().Slice(), " ")
			if text == "" {
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(b)
			}

			draft, err := newParser(cfg).Parse(text)
			if err != nil {
				return err
			}

			fmt.Printf("Titolo:      %s\n", draft.Title)
			fmt.Printf("Luogo:       %s\n", draft.Location)
			fmt.Printf("Inizio:      %s (%s)\n", draft.Start.Format("02/01/2006 15:04"), cfg.Timezone)
			fmt.Printf("Fine:        %s\n", draft.End.Format("02/01/2006 15:04"))
			fmt.Printf("Descrizione: %s\n", strings.ReplaceAll(draft.Description, "\n", " ⏎ "))

			if !c.Bool("insert") {
				return nil
			}

			writer, err := newWriter(c.Context, logger, cfg)
			if err != nil {
				return err
			}
			link, err := writer.CreateEvent(c.Context, draft)
			if err != nil {
				return fmt.Errorf("failed to create event: %w", err)
			}
			if link != "" {
				fmt.Printf("Link:        %s\n", link)
			}
			return nil
		},
	}
}

func upcomingCommand() *cli.Command {
	return &cli.Command{
		Name:  "upcoming",
		Usage: "List the next events on the Google calendar, to check the configuration.",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "max", Value: 10, Usage: "Maximum number of events to list."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			client, err := google.NewClient(c.Context, logger, cfg.ServiceAccountFile, cfg.GoogleCalendarID, cfg.Timezone)
			if err != nil {
				return err
			}

			drafts, err := client.ListUpcoming(c.Context, c.Int64("max"))
			if err != nil {
				return err
			}
			if len(drafts) == 0 {
				fmt.Println("Nessun evento in programma.")
				return nil
			}
			for _, d := range drafts {
				fmt.Printf("%s  %s\n", d.Start.Format("02/01/2006 15:04"), d.Title)
			}
			return nil
		},
	}
}

// newParser builds the parser per configuration.
func newParser(cfg *config.Config) *parser.Parser {
	if cfg.LegacyFormat {
		return parser.New(parser.WithLegacyFormat())
	}
	return parser.New()
}

// newWriter builds the configured calendar backend.
func newWriter(ctx context.Context, logger *slog.Logger, cfg *config.Config) (ingest.EventWriter, error) {
	switch cfg.Backend {
	case config.BackendCalDAV:
		client, err := caldav.NewClient(logger, cfg.CalDAVEndpoint, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalDAVCalendar, cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("failed to create caldav client: %w", err)
		}
		return client, nil
	default:
		client, err := google.NewClient(ctx, logger, cfg.ServiceAccountFile, cfg.GoogleCalendarID, cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("failed to create google client: %w", err)
		}
		return client, nil
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
