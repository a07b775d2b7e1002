package models

import "time"

// Draft is an event extracted from a chat message, not yet submitted to a
// calendar backend. Start and End are naive wall-clock values: only
// year/month/day/hour/minute matter, and the configured timezone name is
// attached separately by whichever backend writes the event. The time.UTC
// location on them is a carrier, not a meaning.
type Draft struct {
	Title       string // First line of the message, never empty
	Location    string // Second line when it looks like a place name, else ""
	Description string // Full original message text, kept verbatim as notes
	Start       time.Time
	End         time.Time
}
