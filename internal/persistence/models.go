package persistence

import "time"

// User represents a person who can be placed on call.
type User struct {
	ID                         string
	FirstName                  string
	LastName                   string
	Email                      string
	Phone                      string
	Active                     bool
	CalendarAccessToken        *string
	RemindersEnabled           bool
	ChangeNotificationsEnabled bool
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// FullName returns the user's display name as rendered in calendar feeds.
func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Roster represents a named group of users sharing one on-call rotation.
// The name is an external lookup key, unique modulo case.
type Roster struct {
	ID             string
	Name           string
	FallbackUserID *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Membership links a user to a roster. The (user, roster) pair is unique.
type Membership struct {
	UserID    string
	RosterID  string
	Admin     bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Assignment is a date range during which one user is responsible for a
// roster. StartDate and EndDate are calendar dates held at UTC midnight;
// both bounds are inclusive.
type Assignment struct {
	ID        string
	RosterID  string
	UserID    string
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
