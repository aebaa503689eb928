package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/oncall-scheduler/internal/persistence"
)

var (
	userCounter       uint64
	rosterCounter     uint64
	assignmentCounter uint64
)

// UserOption mutates a generated user fixture.
type UserOption func(*persistence.User)

// NewUser returns a valid active user with generated identity fields.
func NewUser(opts ...UserOption) persistence.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := ReferenceTime()
	user := persistence.User{
		ID:                         id,
		FirstName:                  "Riley",
		LastName:                   fmt.Sprintf("Member%03d", idx),
		Email:                      fmt.Sprintf("%s@example.com", id),
		Phone:                      fmt.Sprintf("+1415555%04d", idx),
		Active:                     true,
		RemindersEnabled:           true,
		ChangeNotificationsEnabled: true,
		CreatedAt:                  created,
		UpdatedAt:                  created,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(u *persistence.User) { u.ID = id }
}

// WithUserName overrides the generated name.
func WithUserName(first, last string) UserOption {
	return func(u *persistence.User) {
		u.FirstName = first
		u.LastName = last
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(u *persistence.User) { u.Email = email }
}

// WithUserActive sets the active flag.
func WithUserActive(active bool) UserOption {
	return func(u *persistence.User) { u.Active = active }
}

// WithUserCalendarToken sets the calendar access token.
func WithUserCalendarToken(token string) UserOption {
	return func(u *persistence.User) { u.CalendarAccessToken = &token }
}

// WithUserNotificationPrefs sets both notification preference flags.
func WithUserNotificationPrefs(reminders, changes bool) UserOption {
	return func(u *persistence.User) {
		u.RemindersEnabled = reminders
		u.ChangeNotificationsEnabled = changes
	}
}

// RosterOption mutates a generated roster fixture.
type RosterOption func(*persistence.Roster)

// NewRoster returns a valid roster with a generated unique name.
func NewRoster(opts ...RosterOption) persistence.Roster {
	idx := atomic.AddUint64(&rosterCounter, 1)
	created := ReferenceTime()
	roster := persistence.Roster{
		ID:        fmt.Sprintf("roster-%03d", idx),
		Name:      fmt.Sprintf("Platform %03d", idx),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&roster)
	}
	return roster
}

// WithRosterID overrides the generated roster ID.
func WithRosterID(id string) RosterOption {
	return func(r *persistence.Roster) { r.ID = id }
}

// WithRosterName overrides the generated name.
func WithRosterName(name string) RosterOption {
	return func(r *persistence.Roster) { r.Name = name }
}

// WithRosterFallback sets the fallback user.
func WithRosterFallback(userID string) RosterOption {
	return func(r *persistence.Roster) { r.FallbackUserID = &userID }
}

// NewMembership returns a membership joining the user to the roster.
func NewMembership(userID, rosterID string, admin bool) persistence.Membership {
	created := ReferenceTime()
	return persistence.Membership{
		UserID:    userID,
		RosterID:  rosterID,
		Admin:     admin,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// AssignmentOption mutates a generated assignment fixture.
type AssignmentOption func(*persistence.Assignment)

// NewAssignment returns a one-week assignment for the user in the roster,
// starting on the Sunday before ReferenceTime.
func NewAssignment(rosterID, userID string, opts ...AssignmentOption) persistence.Assignment {
	idx := atomic.AddUint64(&assignmentCounter, 1)
	created := ReferenceTime()
	start := time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)
	assignment := persistence.Assignment{
		ID:        fmt.Sprintf("assignment-%03d", idx),
		RosterID:  rosterID,
		UserID:    userID,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 6),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&assignment)
	}
	return assignment
}

// WithAssignmentID overrides the generated assignment ID.
func WithAssignmentID(id string) AssignmentOption {
	return func(a *persistence.Assignment) { a.ID = id }
}

// WithAssignmentDates sets the date range.
func WithAssignmentDates(start, end time.Time) AssignmentOption {
	return func(a *persistence.Assignment) {
		a.StartDate = start
		a.EndDate = end
	}
}

// WithAssignmentTimestamps sets both record timestamps.
func WithAssignmentTimestamps(created, updated time.Time) AssignmentOption {
	return func(a *persistence.Assignment) {
		a.CreatedAt = created
		a.UpdatedAt = updated
	}
}
