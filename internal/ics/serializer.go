// Package ics renders on-call assignments as an RFC 5545 calendar feed.
// Output is deterministic: serializing the same assignment set twice yields
// byte-identical documents, so subscribing clients update events in place.
package ics

import (
	"bytes"
	"sort"
	"strings"
	"time"

	"github.com/example/oncall-scheduler/internal/oncall"
)

// DefaultProdID identifies this product in the calendar envelope.
const DefaultProdID = "-//oncall-scheduler//EN"

// maxLineOctets is the RFC 5545 content-line length limit, excluding CRLF.
const maxLineOctets = 75

const timestampLayout = "20060102T150405Z"

// Event is one serializable assignment. UpdatedAt stamps the event so the
// feed stays stable across regenerations of unchanged assignments.
type Event struct {
	ID        string
	OwnerName string
	StartDate time.Time
	EndDate   time.Time
	UpdatedAt time.Time
}

// Serializer renders events into text/calendar documents.
type Serializer struct {
	clock  *oncall.Clock
	prodID string
}

// NewSerializer constructs a Serializer. The clock supplies the switchover
// boundary used for event end instants. An empty prodID falls back to
// DefaultProdID.
func NewSerializer(clock *oncall.Clock, prodID string) *Serializer {
	if clock == nil {
		clock = oncall.NewClock(nil, oncall.DefaultSwitchoverHour, time.UTC)
	}
	if prodID == "" {
		prodID = DefaultProdID
	}
	return &Serializer{clock: clock, prodID: prodID}
}

// Serialize renders one VEVENT per event inside a VCALENDAR envelope named
// after the roster. Events span local midnight on the start date through the
// switchover hour the morning after the end date, so each visually extends
// one day past its last full day of responsibility.
func (s *Serializer) Serialize(events []Event, rosterName string) []byte {
	ordered := make([]Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].StartDate.Equal(ordered[j].StartDate) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].StartDate.Before(ordered[j].StartDate)
	})

	var buf bytes.Buffer
	writeLine(&buf, "BEGIN:VCALENDAR")
	writeLine(&buf, "VERSION:2.0")
	writeLine(&buf, "PRODID:"+escapeText(s.prodID))
	writeLine(&buf, "CALSCALE:GREGORIAN")
	if rosterName != "" {
		writeLine(&buf, "X-WR-CALNAME:"+escapeText(rosterName))
	}

	for _, event := range ordered {
		writeLine(&buf, "BEGIN:VEVENT")
		writeLine(&buf, "UID:"+escapeText(uid(event)))
		writeLine(&buf, "DTSTAMP:"+event.UpdatedAt.UTC().Format(timestampLayout))
		writeLine(&buf, "DTSTART:"+s.startInstant(event.StartDate).UTC().Format(timestampLayout))
		writeLine(&buf, "DTEND:"+s.clock.EffectiveEnd(event.EndDate).UTC().Format(timestampLayout))
		writeLine(&buf, "SUMMARY:"+escapeText(event.OwnerName))
		writeLine(&buf, "END:VEVENT")
	}

	writeLine(&buf, "END:VCALENDAR")
	return buf.Bytes()
}

// startInstant is local midnight on the start date. Feed events deliberately
// begin earlier than the responsibility handover so a subscriber sees the
// whole calendar day blocked out.
func (s *Serializer) startInstant(startDate time.Time) time.Time {
	y, m, d := startDate.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.clock.Location())
}

// uid derives a stable event identifier from the assignment's identity so
// regenerating the feed updates rather than duplicates client events.
func uid(event Event) string {
	return event.ID + "@oncall-scheduler"
}

// escapeText applies RFC 5545 TEXT escaping to reserved characters.
func escapeText(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case ';':
			b.WriteString(`\;`)
		case ',':
			b.WriteString(`\,`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			// Bare carriage returns never appear in TEXT values.
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// writeLine emits a folded content line terminated by CRLF. Continuation
// lines begin with a single space and stay within the octet limit.
func writeLine(buf *bytes.Buffer, line string) {
	limit := maxLineOctets
	for len(line) > limit {
		cut := splitIndex(line, limit)
		buf.WriteString(line[:cut])
		buf.WriteString("\r\n ")
		line = line[cut:]
		// Continuations sacrifice one octet to the leading space.
		limit = maxLineOctets - 1
	}
	buf.WriteString(line)
	buf.WriteString("\r\n")
}

// splitIndex finds the largest byte offset not exceeding limit that does not
// split a UTF-8 sequence.
func splitIndex(line string, limit int) int {
	cut := limit
	for cut > 0 && !utf8Start(line[cut]) {
		cut--
	}
	if cut == 0 {
		return limit
	}
	return cut
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
