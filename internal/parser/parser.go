// Package parser turns free-text chat messages into calendar event drafts.
//
// The recognized shape is the one people actually type: a title on the first
// line, optionally a place name on the second, free notes anywhere, and a
// date plus time somewhere in the text ("13/2/26 h 12", "18.09.2026 12:00",
// "ore 14.30"). Anything without both a date and a time is not an event.
package parser

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"rinviabot/internal/models"
)

// Errors returned by Parse. ErrNotRecognized is the normal "this message is
// not an event" outcome and callers decide whether to tell the user.
// ErrBadDate means the text did contain date and time tokens but they name a
// day that does not exist on the calendar (31/02 and friends).
var (
	ErrNotRecognized = errors.New("no event recognized in text")
	ErrBadDate       = errors.New("date does not exist on the calendar")
)

// Events get a fixed one hour slot; only the legacy rigid grammar ever
// carried an explicit duration.
const defaultDuration = time.Hour

const fallbackTitle = "Evento"

// Date token: 1-2 digit day, 1-2 digit month, 2 or 4 digit year, with the
// same separator on both sides. Leftmost match in the whole text wins.
var dateRe = regexp.MustCompile(`\b(?:(\d{1,2})/(\d{1,2})/(\d{2,4})|(\d{1,2})\.(\d{1,2})\.(\d{2,4}))\b`)

var (
	hMarkerRe   = regexp.MustCompile(`(?i)\bh\s*([01]?\d|2[0-3])(?:[.:]([0-5]\d))?\b`)
	oreMarkerRe = regexp.MustCompile(`(?i)\bore\s*([01]?\d|2[0-3])(?:[.:]([0-5]\d))?\b`)
	bareClockRe = regexp.MustCompile(`\b([01]?\d|2[0-3])[.:]([0-5]\d)\b`)

	wordRe  = regexp.MustCompile(`^\S+$`)
	digitRe = regexp.MustCompile(`\d`)
)

type clock struct {
	hour, minute int
}

// timeMatchers are tried in order; the first one that finds a token wins.
// Keeping them as separate functions keeps the precedence explicit.
var timeMatchers = []func(string) (clock, bool){
	matchHourMarker,
	matchOreMarker,
	matchBareClock,
}

// Parser extracts event drafts from raw message text. The zero value parses
// the multiline grammar only; see WithLegacyFormat. A Parser is stateless
// and safe for concurrent use.
type Parser struct {
	legacy bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithLegacyFormat also accepts the old rigid grammar
// "evento: Title | dd/mm/yyyy | hh:mm | duration_hours".
func WithLegacyFormat() Option {
	return func(p *Parser) { p.legacy = true }
}

// New returns a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts an event draft from text.
//
// A date token (anywhere in the text) and a time token (anywhere in the
// text) are both required; a missing time never defaults, so a half-typed
// message cannot silently become a wrong-time event. Title is the first
// non-blank line, location is the second line only when it is a single word
// without digits, and the description keeps the whole original text as
// notes. End is always start plus one hour.
func (p *Parser) Parse(text string) (*models.Draft, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil, ErrNotRecognized
	}

	if p.legacy && strings.HasPrefix(strings.ToLower(t), "evento:") {
		return parseLegacy(t)
	}

	start, err := extractStart(t)
	if err != nil {
		return nil, err
	}

	lines := splitLines(t)

	title := fallbackTitle
	if len(lines) > 0 {
		title = lines[0]
	}

	// The second line is a location only when it cannot be anything else:
	// a single word with no digits. A note line has spaces, and the
	// date/time line has digits.
	location := ""
	if len(lines) >= 2 && wordRe.MatchString(lines[1]) && !digitRe.MatchString(lines[1]) {
		location = lines[1]
	}

	return &models.Draft{
		Title:       title,
		Location:    location,
		Description: t,
		Start:       start,
		End:         start.Add(defaultDuration),
	}, nil
}

// extractStart finds the date and time tokens and combines them into a
// single naive timestamp.
func extractStart(t string) (time.Time, error) {
	m := dateRe.FindStringSubmatch(t)
	if m == nil {
		return time.Time{}, ErrNotRecognized
	}

	// The regex has two alternatives (slash and dot separators); only one
	// set of groups is filled.
	dayStr, monthStr, yearStr := m[1], m[2], m[3]
	if dayStr == "" {
		dayStr, monthStr, yearStr = m[4], m[5], m[6]
	}

	day, _ := strconv.Atoi(dayStr)
	month, _ := strconv.Atoi(monthStr)
	year, _ := strconv.Atoi(yearStr)
	if year < 100 {
		year += 2000
	}

	var tok clock
	found := false
	for _, match := range timeMatchers {
		if c, ok := match(t); ok {
			tok, found = c, true
			break
		}
	}
	if !found {
		return time.Time{}, ErrNotRecognized
	}

	return makeStart(year, month, day, tok.hour, tok.minute)
}

// makeStart builds the naive timestamp and rejects impossible calendar days.
// time.Date normalizes overflow (31/02 becomes 02/03 or 03/03), so a
// round-trip comparison catches every out-of-range field combination.
func makeStart(year, month, day, hour, minute int) (time.Time, error) {
	start := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	if start.Year() != year || start.Month() != time.Month(month) || start.Day() != day {
		return time.Time{}, ErrBadDate
	}
	return start, nil
}

func matchHourMarker(t string) (clock, bool) {
	return markerMatch(hMarkerRe, t)
}

func matchOreMarker(t string) (clock, bool) {
	return markerMatch(oreMarkerRe, t)
}

// markerMatch handles both marker spellings: hour is required, minutes are
// optional and default to zero.
func markerMatch(re *regexp.Regexp, t string) (clock, bool) {
	m := re.FindStringSubmatch(t)
	if m == nil {
		return clock{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	return clock{hour: hour, minute: minute}, true
}

func matchBareClock(t string) (clock, bool) {
	m := bareClockRe.FindStringSubmatch(t)
	if m == nil {
		return clock{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return clock{hour: hour, minute: minute}, true
}

// parseLegacy handles "evento: Title | dd/mm/yyyy | hh:mm | duration_hours".
// The duration field is optional and may use a decimal comma. This is the
// only grammar with a configurable duration; the full text is kept as the
// description here too.
func parseLegacy(t string) (*models.Draft, error) {
	content := strings.TrimSpace(t[len("evento:"):])
	parts := strings.Split(content, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 3 {
		return nil, ErrNotRecognized
	}

	title := parts[0]
	if title == "" {
		title = fallbackTitle
	}

	dateFields := strings.Split(parts[1], "/")
	timeFields := strings.Split(parts[2], ":")
	if len(dateFields) != 3 || len(timeFields) != 2 {
		return nil, ErrNotRecognized
	}

	nums := make([]int, 0, 5)
	for _, f := range append(dateFields, timeFields...) {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, ErrNotRecognized
		}
		nums = append(nums, n)
	}
	day, month, year, hour, minute := nums[0], nums[1], nums[2], nums[3], nums[4]
	if year < 100 {
		year += 2000
	}
	if hour > 23 || minute > 59 {
		return nil, ErrNotRecognized
	}

	duration := defaultDuration
	if len(parts) >= 4 {
		if hours, err := strconv.ParseFloat(strings.ReplaceAll(parts[3], ",", "."), 64); err == nil && hours > 0 {
			duration = time.Duration(hours * float64(time.Hour))
		}
	}

	start, err := makeStart(year, month, day, hour, minute)
	if err != nil {
		return nil, err
	}

	return &models.Draft{
		Title:       title,
		Description: t,
		Start:       start,
		End:         start.Add(duration),
	}, nil
}

// splitLines returns the trimmed non-blank lines of t in order.
func splitLines(t string) []string {
	var lines []string
	for _, ln := range strings.Split(t, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	return lines
}
