// Package google writes event drafts to the Google Calendar API using a
// service account.
package google

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"rinviabot/internal/models"
)

// Drafts carry naive wall-clock times; the API wants the clock value without
// an offset plus a separate timezone name.
const wallClockLayout = "2006-01-02T15:04:05"

// CalendarClient inserts events into a single Google calendar.
type CalendarClient struct {
	service    *calendar.Service
	logger     *slog.Logger
	calendarID string
	timezone   string
}

// NewClient builds a client from a service-account credentials file. The
// timezone is the IANA name attached to every event; the calendar must be
// shared with the service account beforehand.
func NewClient(ctx context.Context, logger *slog.Logger, credentialsFile, calendarID, timezone string) (*CalendarClient, error) {
	if calendarID == "" {
		return nil, fmt.Errorf("no calendar ID configured")
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("service account file %q not found. Set GOOGLE_SERVICE_ACCOUNT_FILE or place it next to the binary", credentialsFile)
		}
		return nil, fmt.Errorf("unable to read service account file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(b, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account file: %w", err)
	}

	service, err := calendar.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &CalendarClient{
		service:    service,
		logger:     logger,
		calendarID: calendarID,
		timezone:   timezone,
	}, nil
}

// CreateEvent inserts the draft and returns the htmlLink of the created
// event, which may be empty.
func (c *CalendarClient) CreateEvent(ctx context.Context, draft *models.Draft) (string, error) {
	c.logger.Debug("Inserting event", "title", draft.Title, "start", draft.Start.Format(wallClockLayout))

	event := &calendar.Event{
		Summary:     draft.Title,
		Location:    draft.Location,
		Description: draft.Description,
		Start: &calendar.EventDateTime{
			DateTime: draft.Start.Format(wallClockLayout),
			TimeZone: c.timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: draft.End.Format(wallClockLayout),
			TimeZone: c.timezone,
		},
	}

	created, err := c.service.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
	}

	c.logger.Info("Event created in Google Calendar", "title", draft.Title, "id", created.Id)
	return created.HtmlLink, nil
}

// ListUpcoming returns the next events on the calendar, soonest first. Used
// by the CLI to sanity check the configuration.
func (c *CalendarClient) ListUpcoming(ctx context.Context, max int64) ([]*models.Draft, error) {
	events, err := c.service.Events.List(c.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(time.Now().UTC().Format(time.RFC3339)).
		MaxResults(max).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	var drafts []*models.Draft
	for _, item := range events.Items {
		if item.Start == nil || item.Start.DateTime == "" {
			continue
		}
		start, _ := time.Parse(time.RFC3339, item.Start.DateTime)
		end, _ := time.Parse(time.RFC3339, item.End.DateTime)
		drafts = append(drafts, &models.Draft{
			Title:       item.Summary,
			Location:    item.Location,
			Description: item.Description,
			Start:       start,
			End:         end,
		})
	}
	return drafts, nil
}
