package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func TestParseMultiline(t *testing.T) {
	p := New()

	tests := []struct {
		name     string
		text     string
		title    string
		location string
		start    time.Time
	}{
		{
			name:     "title location and h marker",
			text:     "Nobili avv frattasi\nCarlomagno\n13/2/26 h 12",
			title:    "Nobili avv frattasi",
			location: "Carlomagno",
			start:    at(2026, time.February, 13, 12, 0),
		},
		{
			name:  "single line with colon clock",
			text:  "507 ascenzi Maurizio: nota libera\n18/09/2026 12:00",
			title: "507 ascenzi Maurizio: nota libera",
			start: at(2026, time.September, 18, 12, 0),
		},
		{
			name:  "second line with digit is not a location",
			text:  "Riunione\nSalaA 3\n20/05/26 h9",
			title: "Riunione",
			start: at(2026, time.May, 20, 9, 0),
		},
		{
			name:  "ore marker with dot minutes",
			text:  "Pranzo di lavoro\n5/1/26 ore 14.30",
			title: "Pranzo di lavoro",
			start: at(2026, time.January, 5, 14, 30),
		},
		{
			name:  "dot separated date and four digit year",
			text:  "Controllo\n18.09.2026 h 12.30",
			title: "Controllo",
			start: at(2026, time.September, 18, 12, 30),
		},
		{
			name:  "marker glued to the hour",
			text:  "Visita h12 il 13/2/26",
			title: "Visita h12 il 13/2/26",
			start: at(2026, time.February, 13, 12, 0),
		},
		{
			name:  "uppercase marker",
			text:  "Richiamo\n1/12/26 H 8:15",
			title: "Richiamo",
			start: at(2026, time.December, 1, 8, 15),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft, err := p.Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.title, draft.Title)
			assert.Equal(t, tt.location, draft.Location)
			assert.Equal(t, tt.start, draft.Start)
			assert.Equal(t, tt.start.Add(time.Hour), draft.End)
		})
	}
}

func TestParseDescriptionKeepsFullText(t *testing.T) {
	p := New()
	text := "Nobili avv frattasi\nCarlomagno\n13/2/26 h 12"
	draft, err := p.Parse(text)
	require.NoError(t, err)
	assert.Equal(t, text, draft.Description)

	// Leading and trailing whitespace is trimmed before anything else.
	draft, err = p.Parse("  \n" + text + "\n\n")
	require.NoError(t, err)
	assert.Equal(t, text, draft.Description)
}

func TestParseNotRecognized(t *testing.T) {
	p := New()

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace only", "   \n\t  "},
		{"no date at all", "Riunione con Carlo domani"},
		{"date without time", "Riunione\n13/2/2026"},
		{"mixed separators are not a date", "Riunione 13/2.26 h 12"},
		{"hour out of range", "Riunione 13/2/26 h 24"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.text)
			assert.ErrorIs(t, err, ErrNotRecognized)
		})
	}
}

func TestParseImpossibleDate(t *testing.T) {
	p := New()

	for _, text := range []string{
		"Riunione 31/2/26 h 10",
		"Riunione 29/2/26 h 10", // 2026 is not a leap year
		"Riunione 32/1/26 h 10",
		"Riunione 13/13/26 h 10",
	} {
		_, err := p.Parse(text)
		assert.ErrorIs(t, err, ErrBadDate, "text %q", text)
	}

	// Leap day on an actual leap year is fine.
	draft, err := p.Parse("Riunione 29/2/28 h 10")
	require.NoError(t, err)
	assert.Equal(t, at(2028, time.February, 29, 10, 0), draft.Start)
}

func TestParseMarkerPrecedence(t *testing.T) {
	p := New()

	// The h marker wins over a bare clock elsewhere in the text.
	draft, err := p.Parse("Riunione stanza 10:00\n13/2/26 h 15")
	require.NoError(t, err)
	assert.Equal(t, at(2026, time.February, 13, 15, 0), draft.Start)

	// And the leftmost date wins when there are several.
	draft, err = p.Parse("Riunione 13/2/26 h 9, rinviata dal 10/2/26")
	require.NoError(t, err)
	assert.Equal(t, at(2026, time.February, 13, 9, 0), draft.Start)
}

func TestParseIdempotent(t *testing.T) {
	p := New()
	text := "Nobili avv frattasi\nCarlomagno\n13/2/26 h 12"

	first, err := p.Parse(text)
	require.NoError(t, err)
	second, err := p.Parse(text)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseLegacyFormat(t *testing.T) {
	p := New(WithLegacyFormat())

	draft, err := p.Parse("evento: Riunione | 13/02/2026 | 10:30 | 2")
	require.NoError(t, err)
	assert.Equal(t, "Riunione", draft.Title)
	assert.Empty(t, draft.Location)
	assert.Equal(t, at(2026, time.February, 13, 10, 30), draft.Start)
	assert.Equal(t, at(2026, time.February, 13, 12, 30), draft.End)

	// Without a duration field the default hour applies, decimal commas work.
	draft, err = p.Parse("evento: Breve | 1/3/26 | 9:00")
	require.NoError(t, err)
	assert.Equal(t, at(2026, time.March, 1, 10, 0), draft.End)

	draft, err = p.Parse("evento: Mezza | 1/3/26 | 9:00 | 0,5")
	require.NoError(t, err)
	assert.Equal(t, at(2026, time.March, 1, 9, 30), draft.End)

	// Too few fields is not an event, and the multiline grammar is not
	// retried for an "evento:" message.
	_, err = p.Parse("evento: Riunione | 13/02/2026")
	assert.ErrorIs(t, err, ErrNotRecognized)
}

func TestParseLegacyDisabledByDefault(t *testing.T) {
	p := New()

	// Without the option the same text runs through the multiline grammar:
	// the date and bare clock still match, the whole line is the title.
	draft, err := p.Parse("evento: Riunione | 13/02/2026 | 10:30 | 2")
	require.NoError(t, err)
	assert.Equal(t, "evento: Riunione | 13/02/2026 | 10:30 | 2", draft.Title)
	assert.Equal(t, at(2026, time.February, 13, 10, 30), draft.Start)
}
