package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/oncall-scheduler/internal/oncall"
)

func date(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return d
}

func fixtureEvents(t *testing.T) []Event {
	t.Helper()
	stamp := time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)
	return []Event{
		{ID: "a1", OwnerName: "Karin Eichelman", StartDate: date(t, "2024-03-04"), EndDate: date(t, "2024-03-10"), UpdatedAt: stamp},
		{ID: "a2", OwnerName: "David Faulkenberry", StartDate: date(t, "2024-03-11"), EndDate: date(t, "2024-03-17"), UpdatedAt: stamp},
	}
}

func TestSerialize_Envelope(t *testing.T) {
	t.Parallel()

	s := NewSerializer(oncall.NewClock(nil, 8, time.UTC), "")
	out := string(s.Serialize(fixtureEvents(t), "Transit IT"))

	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(out, "END:VCALENDAR\r\n"))
	assert.Contains(t, out, "VERSION:2.0\r\n")
	assert.Contains(t, out, "PRODID:"+DefaultProdID+"\r\n")
	assert.Contains(t, out, "X-WR-CALNAME:Transit IT\r\n")
}

func TestSerialize_OneEventPerAssignment(t *testing.T) {
	t.Parallel()

	events := fixtureEvents(t)
	s := NewSerializer(oncall.NewClock(nil, 8, time.UTC), "")
	out := string(s.Serialize(events, "ops"))

	assert.Equal(t, len(events), strings.Count(out, "BEGIN:VEVENT"))
	assert.Equal(t, len(events), strings.Count(out, "END:VEVENT"))
	assert.Contains(t, out, "UID:a1@oncall-scheduler\r\n")
	assert.Contains(t, out, "SUMMARY:Karin Eichelman\r\n")
}

func TestSerialize_EventBounds(t *testing.T) {
	t.Parallel()

	s := NewSerializer(oncall.NewClock(nil, 8, time.UTC), "")
	out := string(s.Serialize(fixtureEvents(t)[:1], "ops"))

	// Starts at midnight on the first day, ends at the switchover hour the
	// morning after the final day.
	assert.Contains(t, out, "DTSTART:20240304T000000Z\r\n")
	assert.Contains(t, out, "DTEND:20240311T080000Z\r\n")
}

func TestSerialize_Deterministic(t *testing.T) {
	t.Parallel()

	events := fixtureEvents(t)
	s := NewSerializer(oncall.NewClock(nil, 8, time.UTC), "")

	first := s.Serialize(events, "ops")
	second := s.Serialize([]Event{events[1], events[0]}, "ops")

	assert.Equal(t, first, second)
}

func TestSerialize_EscapesReservedCharacters(t *testing.T) {
	t.Parallel()

	event := Event{
		ID:        "a1",
		OwnerName: "O'Hanraha-hanrahan; Backup, Team\\One",
		StartDate: date(t, "2024-03-04"),
		EndDate:   date(t, "2024-03-10"),
		UpdatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	s := NewSerializer(nil, "")
	out := string(s.Serialize([]Event{event}, "ops"))

	assert.Contains(t, out, `SUMMARY:O'Hanraha-hanrahan\; Backup\, Team\\One`)
}

func TestSerialize_FoldsLongLines(t *testing.T) {
	t.Parallel()

	event := Event{
		ID:        "a1",
		OwnerName: strings.Repeat("Wolfeschlegelsteinhausenbergerdorff ", 4),
		StartDate: date(t, "2024-03-04"),
		EndDate:   date(t, "2024-03-10"),
		UpdatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	s := NewSerializer(nil, "")
	out := string(s.Serialize([]Event{event}, "ops"))

	require.True(t, strings.HasSuffix(out, "\r\n"))
	for _, line := range strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), 75, "line exceeds octet limit: %q", line)
		assert.NotContains(t, line, "\n")
	}

	// The folded summary must reassemble to the original text.
	unfolded := strings.ReplaceAll(out, "\r\n ", "")
	assert.Contains(t, unfolded, "SUMMARY:"+event.OwnerName+"\r\n")
}
