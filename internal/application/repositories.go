package application

import (
	"context"
	"errors"
	"time"

	"github.com/example/oncall-scheduler/internal/persistence"
)

// The services consume narrow views of the persistence layer. The SQLite
// repositories satisfy these directly; tests substitute in-memory stores.

// UserRepository captures the persistence operations needed for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user persistence.User) error
	UpdateUser(ctx context.Context, user persistence.User) error
	GetUser(ctx context.Context, id string) (persistence.User, error)
	GetUserByCalendarToken(ctx context.Context, token string) (persistence.User, error)
	CalendarTokenInUse(ctx context.Context, token string) (bool, error)
	ListUsers(ctx context.Context) ([]persistence.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RosterRepository captures the persistence operations needed for rosters.
type RosterRepository interface {
	CreateRoster(ctx context.Context, roster persistence.Roster) error
	UpdateRoster(ctx context.Context, roster persistence.Roster) error
	GetRoster(ctx context.Context, id string) (persistence.Roster, error)
	GetRosterByName(ctx context.Context, name string) (persistence.Roster, error)
	ListRosters(ctx context.Context) ([]persistence.Roster, error)
	DeleteRoster(ctx context.Context, id string) error
}

// MembershipRepository captures the persistence operations for memberships.
type MembershipRepository interface {
	CreateMembership(ctx context.Context, membership persistence.Membership) error
	UpdateMembership(ctx context.Context, membership persistence.Membership) error
	GetMembership(ctx context.Context, userID, rosterID string) (persistence.Membership, error)
	ListMembershipsForRoster(ctx context.Context, rosterID string) ([]persistence.Membership, error)
	ListMembershipsForUser(ctx context.Context, userID string) ([]persistence.Membership, error)
	DeleteMembership(ctx context.Context, userID, rosterID string) error
}

// AssignmentRepository captures the persistence operations for assignments.
type AssignmentRepository interface {
	CreateAssignment(ctx context.Context, assignment persistence.Assignment) error
	CreateAssignments(ctx context.Context, assignments []persistence.Assignment) error
	UpdateAssignment(ctx context.Context, assignment persistence.Assignment, expectedUpdatedAt time.Time) error
	GetAssignment(ctx context.Context, id string) (persistence.Assignment, error)
	ListAssignments(ctx context.Context, filter persistence.AssignmentFilter) ([]persistence.Assignment, error)
	DeleteAssignment(ctx context.Context, id string) error
	DeleteFutureAssignmentsForUser(ctx context.Context, userID string, after time.Time) error
	LatestEndDate(ctx context.Context, rosterID string) (time.Time, bool, error)
}

// mapRepoError translates persistence sentinels into application errors.
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConflict):
		return ErrConflict
	}
	return err
}

func isMember(ctx context.Context, memberships MembershipRepository, userID, rosterID string) (bool, error) {
	_, err := memberships.GetMembership(ctx, userID, rosterID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isAdminIn(ctx context.Context, memberships MembershipRepository, userID, rosterID string) (bool, error) {
	membership, err := memberships.GetMembership(ctx, userID, rosterID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return membership.Admin, nil
}
