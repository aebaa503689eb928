package application

import "time"

// Principal identifies the authenticated user invoking a service method.
// Roster-scoped privileges are resolved against memberships per call.
type Principal struct {
	UserID string
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	FirstName                  string
	LastName                   string
	Email                      string
	Phone                      string
	Active                     bool
	RemindersEnabled           bool
	ChangeNotificationsEnabled bool
}

// CreateUserParams wraps the data required to create a user. New users join
// the given roster immediately; the acting principal must administer it.
type CreateUserParams struct {
	Principal Principal
	RosterID  string
	Input     UserInput
}

// UpdateUserParams wraps the data required to update an existing user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// RosterInput captures caller provided roster fields.
type RosterInput struct {
	Name           string
	FallbackUserID *string
}

// CreateRosterParams wraps the data required to create a roster.
type CreateRosterParams struct {
	Principal Principal
	Input     RosterInput
}

// UpdateRosterParams wraps the data required to update a roster.
type UpdateRosterParams struct {
	Principal Principal
	RosterID  string
	Input     RosterInput
}

// MembershipParams wraps the data required to add or update a membership.
type MembershipParams struct {
	Principal Principal
	RosterID  string
	UserID    string
	Admin     bool
}

// AssignmentInput captures caller provided assignment fields. Dates are
// calendar dates; time-of-day components are discarded.
type AssignmentInput struct {
	UserID    string
	StartDate time.Time
	EndDate   time.Time
}

// CreateAssignmentParams wraps the data required to create an assignment.
type CreateAssignmentParams struct {
	Principal Principal
	RosterID  string
	Input     AssignmentInput
}

// UpdateAssignmentParams wraps the data required to update an assignment.
// ExpectedUpdatedAt carries the record version the caller last read; a
// mismatch fails with ErrConflict instead of silently overwriting.
type UpdateAssignmentParams struct {
	Principal         Principal
	AssignmentID      string
	Input             AssignmentInput
	ExpectedUpdatedAt time.Time
}

// ListAssignmentsParams narrows an assignment listing.
type ListAssignmentsParams struct {
	Principal       Principal
	RosterID        string
	UserID          string
	StartsOnOrAfter *time.Time
	EndsOnOrBefore  *time.Time
}

// GenerateRotationParams wraps the data required to generate a rotation.
type GenerateRotationParams struct {
	Principal      Principal
	RosterID       string
	UserIDs        []string
	StartDate      time.Time
	EndDate        time.Time
	StartingUserID string
}

// OnCallStatus describes who currently holds responsibility for a roster.
// Until is nil for fallback coverage, which has no scheduled end.
type OnCallStatus struct {
	UserID    string
	FirstName string
	LastName  string
	Until     *time.Time
	Fallback  bool
}
