package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByCalendarToken(ctx context.Context, token string) (User, error)
	CalendarTokenInUse(ctx context.Context, token string) (bool, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RosterRepository exposes CRUD operations for rosters.
type RosterRepository interface {
	CreateRoster(ctx context.Context, roster Roster) error
	UpdateRoster(ctx context.Context, roster Roster) error
	GetRoster(ctx context.Context, id string) (Roster, error)
	// GetRosterByName resolves a roster by name, case-insensitively.
	GetRosterByName(ctx context.Context, name string) (Roster, error)
	ListRosters(ctx context.Context) ([]Roster, error)
	DeleteRoster(ctx context.Context, id string) error
}

// MembershipRepository stores roster membership records.
type MembershipRepository interface {
	CreateMembership(ctx context.Context, membership Membership) error
	UpdateMembership(ctx context.Context, membership Membership) error
	GetMembership(ctx context.Context, userID, rosterID string) (Membership, error)
	ListMembershipsForRoster(ctx context.Context, rosterID string) ([]Membership, error)
	ListMembershipsForUser(ctx context.Context, userID string) ([]Membership, error)
	DeleteMembership(ctx context.Context, userID, rosterID string) error
}

// AssignmentFilter narrows assignment queries. Date bounds compare against
// the assignment's own date range: StartsOnOrAfter filters on StartDate,
// EndsOnOrBefore and EndsOnOrAfter on EndDate.
type AssignmentFilter struct {
	RosterID        string
	UserID          string
	StartsOnOrAfter *time.Time
	EndsOnOrBefore  *time.Time
	EndsOnOrAfter   *time.Time
}

// AssignmentRepository stores on-call assignments.
type AssignmentRepository interface {
	CreateAssignment(ctx context.Context, assignment Assignment) error
	// CreateAssignments persists the batch inside a single transaction:
	// either every assignment is committed or none are.
	CreateAssignments(ctx context.Context, assignments []Assignment) error
	// UpdateAssignment applies a conditional update. It returns ErrConflict
	// when the stored UpdatedAt differs from expectedUpdatedAt.
	UpdateAssignment(ctx context.Context, assignment Assignment, expectedUpdatedAt time.Time) error
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
	DeleteAssignment(ctx context.Context, id string) error
	// DeleteFutureAssignmentsForUser removes the user's assignments whose
	// StartDate is strictly after the reference date.
	DeleteFutureAssignmentsForUser(ctx context.Context, userID string, after time.Time) error
	// LatestEndDate reports the latest EndDate among the roster's
	// assignments; ok is false when the roster has none.
	LatestEndDate(ctx context.Context, rosterID string) (latest time.Time, ok bool, err error)
}
