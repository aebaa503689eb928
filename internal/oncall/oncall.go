// Package oncall computes who holds on-call responsibility at an instant.
// An assignment's responsibility runs from the switchover hour on its start
// date until the switchover hour on the morning after its end date, so
// back-to-back blocks hand over cleanly.
package oncall

import (
	"sort"
	"time"
)

// DefaultSwitchoverHour is the local hour at which responsibility rolls over
// when no explicit hour is configured.
const DefaultSwitchoverHour = 8

// Assignment carries the fields the resolver needs; callers map their
// storage records into it.
type Assignment struct {
	ID        string
	UserID    string
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
}

// Clock supplies "now" and the effective on-call boundaries for a configured
// switchover hour and time zone.
type Clock struct {
	now  func() time.Time
	hour int
	loc  *time.Location
}

// NewClock constructs a Clock. A nil now falls back to time.Now, an
// out-of-range switchover hour to DefaultSwitchoverHour, and a nil location
// to UTC.
func NewClock(now func() time.Time, switchoverHour int, loc *time.Location) *Clock {
	if now == nil {
		now = time.Now
	}
	if switchoverHour < 0 || switchoverHour > 23 {
		switchoverHour = DefaultSwitchoverHour
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{now: now, hour: switchoverHour, loc: loc}
}

// Now returns the current instant.
func (c *Clock) Now() time.Time {
	return c.now()
}

// Location returns the clock's local time zone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// SwitchoverHour returns the configured rollover hour.
func (c *Clock) SwitchoverHour() int {
	return c.hour
}

// Start returns the instant an assignment beginning on startDate takes
// effect: the switchover hour on that date, local time. Contiguous weekly
// blocks therefore hand over at the switchover hour rather than midnight.
func (c *Clock) Start(startDate time.Time) time.Time {
	y, m, d := startDate.Date()
	return time.Date(y, m, d, c.hour, 0, 0, 0, c.loc)
}

// EffectiveEnd returns the instant an assignment ending on endDate stops
// being responsible: the following day at the switchover hour, local time.
func (c *Clock) EffectiveEnd(endDate time.Time) time.Time {
	y, m, d := endDate.Date()
	return time.Date(y, m, d+1, c.hour, 0, 0, 0, c.loc)
}

// Covers reports whether the assignment's [Start, EffectiveEnd) interval
// contains at.
func (c *Clock) Covers(assignment Assignment, at time.Time) bool {
	return !at.Before(c.Start(assignment.StartDate)) && at.Before(c.EffectiveEnd(assignment.EndDate))
}

// Select returns the assignment on call at the given instant. Overlapping
// assignments are permitted in storage, so among covering candidates the
// latest StartDate wins, with CreatedAt breaking ties in favour of the most
// recently created record. ok is false when nothing covers the instant.
func (c *Clock) Select(assignments []Assignment, at time.Time) (Assignment, bool) {
	covering := make([]Assignment, 0, 1)
	for _, assignment := range assignments {
		if c.Covers(assignment, at) {
			covering = append(covering, assignment)
		}
	}
	if len(covering) == 0 {
		return Assignment{}, false
	}

	sort.SliceStable(covering, func(i, j int) bool {
		if covering[i].StartDate.Equal(covering[j].StartDate) {
			return covering[i].CreatedAt.After(covering[j].CreatedAt)
		}
		return covering[i].StartDate.After(covering[j].StartDate)
	})

	return covering[0], true
}
