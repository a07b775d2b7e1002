// Package config reads the process configuration from the environment.
// main loads .env first, so a local file works the same as real env vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Backends for calendar inserts.
const (
	BackendGoogle = "google"
	BackendCalDAV = "caldav"
)

// Config is everything the commands need, read once at startup. The parser
// itself never sees this: the timezone name and calendar identifiers only
// travel to the calendar backends.
type Config struct {
	TelegramToken string

	Backend            string // google or caldav
	GoogleCalendarID   string
	ServiceAccountFile string
	CalDAVEndpoint     string
	CalDAVUsername     string
	CalDAVPassword     string
	CalDAVCalendar     string
	Timezone           string

	WhatsAppVerifyToken string
	MetaAppSecret       string
	ListenAddr          string

	ForwardChatID int64  // Telegram chat that receives webhook forwards, 0 = off
	ForwardPrefix string // prepended to forwarded WhatsApp messages

	ReplyOnUnrecognized bool
	LegacyFormat        bool // also accept the old "evento: ... | ..." grammar

	LogLevel string
}

// Load reads the environment. Only cross-field validation happens here;
// each command checks for the variables it actually needs.
func Load() (*Config, error) {
	cfg := &Config{
		TelegramToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		Backend:             getenv("CALENDAR_BACKEND", BackendGoogle),
		GoogleCalendarID:    os.Getenv("GOOGLE_CALENDAR_ID"),
		ServiceAccountFile:  getenv("GOOGLE_SERVICE_ACCOUNT_FILE", "service-account.json"),
		CalDAVEndpoint:      getenv("CALDAV_ENDPOINT", "https://caldav.icloud.com/"),
		CalDAVUsername:      os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword:      os.Getenv("CALDAV_PASSWORD"),
		CalDAVCalendar:      os.Getenv("CALDAV_CALENDAR_NAME"),
		Timezone:            getenv("TIMEZONE", "Europe/Rome"),
		WhatsAppVerifyToken: os.Getenv("WHATSAPP_VERIFY_TOKEN"),
		MetaAppSecret:       os.Getenv("META_APP_SECRET"),
		ListenAddr:          getenv("LISTEN_ADDR", ":8080"),
		ForwardPrefix:       getenv("TG_PREFIX", "📩 WA →"),
		ReplyOnUnrecognized: boolenv("REPLY_ON_UNRECOGNIZED"),
		LegacyFormat:        boolenv("LEGACY_FORMAT"),
		LogLevel:            getenv("LOG_LEVEL", "info"),
	}

	switch cfg.Backend {
	case BackendGoogle, BackendCalDAV:
	default:
		return nil, fmt.Errorf("unknown CALENDAR_BACKEND %q (want %s or %s)", cfg.Backend, BackendGoogle, BackendCalDAV)
	}

	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		cfg.ForwardChatID = id
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func boolenv(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
