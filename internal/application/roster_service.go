package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/oncall-scheduler/internal/persistence"
)

// RosterService manages rosters and their memberships. The user who creates
// a roster becomes its first administrator; subsequent membership changes
// require administrator rights on that roster.
type RosterService struct {
	rosters     RosterRepository
	users       UserRepository
	memberships MembershipRepository
	now         func() time.Time
	idGenerator func() string
	logger      *slog.Logger
}

// NewRosterService wires dependencies for the roster service.
func NewRosterService(rosters RosterRepository, users UserRepository, memberships MembershipRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RosterService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RosterService{
		rosters:     rosters,
		users:       users,
		memberships: memberships,
		now:         now,
		idGenerator: idGenerator,
		logger:      defaultLogger(logger),
	}
}

func (s *RosterService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RosterService", operation, attrs...)
}

// CreateRoster persists a roster and enrolls the creator as its
// administrator.
func (s *RosterService) CreateRoster(ctx context.Context, params CreateRosterParams) (persistence.Roster, error) {
	if s == nil {
		return persistence.Roster{}, fmt.Errorf("RosterService is nil")
	}

	normalized := normalizeRosterInput(params.Input)
	if vErr, err := s.validateRosterInput(ctx, normalized); err != nil {
		return persistence.Roster{}, err
	} else if vErr.HasErrors() {
		return persistence.Roster{}, vErr
	}

	now := s.now()
	roster := persistence.Roster{
		ID:             s.idGenerator(),
		Name:           normalized.Name,
		FallbackUserID: normalized.FallbackUserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.rosters.CreateRoster(ctx, roster); err != nil {
		return persistence.Roster{}, mapRosterRepoError(err)
	}

	membership := persistence.Membership{
		UserID:    params.Principal.UserID,
		RosterID:  roster.ID,
		Admin:     true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.memberships.CreateMembership(ctx, membership); err != nil {
		return persistence.Roster{}, mapRepoError(err)
	}

	s.loggerWith(ctx, "CreateRoster", "roster_id", roster.ID).InfoContext(ctx, "roster created")
	return roster, nil
}

// UpdateRoster renames a roster or changes its fallback user. Administrators
// of the roster only.
func (s *RosterService) UpdateRoster(ctx context.Context, params UpdateRosterParams) (persistence.Roster, error) {
	if s == nil {
		return persistence.Roster{}, fmt.Errorf("RosterService is nil")
	}

	existing, err := s.rosters.GetRoster(ctx, params.RosterID)
	if err != nil {
		return persistence.Roster{}, mapRepoError(err)
	}

	admin, err := isAdminIn(ctx, s.memberships, params.Principal.UserID, existing.ID)
	if err != nil {
		return persistence.Roster{}, err
	}
	if !admin {
		return persistence.Roster{}, ErrUnauthorized
	}

	normalized := normalizeRosterInput(params.Input)
	if vErr, err := s.validateRosterInput(ctx, normalized); err != nil {
		return persistence.Roster{}, err
	} else if vErr.HasErrors() {
		return persistence.Roster{}, vErr
	}

	updated := existing
	updated.Name = normalized.Name
	updated.FallbackUserID = normalized.FallbackUserID
	updated.UpdatedAt = s.now()

	if err := s.rosters.UpdateRoster(ctx, updated); err != nil {
		return persistence.Roster{}, mapRosterRepoError(err)
	}
	return updated, nil
}

// DeleteRoster removes a roster. Administrators of the roster only. Rosters
// that still have assignments cannot be deleted.
func (s *RosterService) DeleteRoster(ctx context.Context, principal Principal, rosterID string) error {
	if s == nil {
		return fmt.Errorf("RosterService is nil")
	}

	if _, err := s.rosters.GetRoster(ctx, rosterID); err != nil {
		return mapRepoError(err)
	}

	admin, err := isAdminIn(ctx, s.memberships, principal.UserID, rosterID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrUnauthorized
	}

	if err := s.rosters.DeleteRoster(ctx, rosterID); err != nil {
		if errors.Is(err, persistence.ErrForeignKeyViolation) {
			vErr := &ValidationError{}
			vErr.add("assignments", "roster still has assignments")
			return vErr
		}
		return mapRepoError(err)
	}

	s.loggerWith(ctx, "DeleteRoster", "roster_id", rosterID).InfoContext(ctx, "roster deleted")
	return nil
}

// GetRoster returns a roster visible to any authenticated user.
func (s *RosterService) GetRoster(ctx context.Context, rosterID string) (persistence.Roster, error) {
	if s == nil {
		return persistence.Roster{}, fmt.Errorf("RosterService is nil")
	}

	roster, err := s.rosters.GetRoster(ctx, rosterID)
	if err != nil {
		return persistence.Roster{}, mapRepoError(err)
	}
	return roster, nil
}

// ListRosters returns all rosters ordered by name.
func (s *RosterService) ListRosters(ctx context.Context) ([]persistence.Roster, error) {
	if s == nil {
		return nil, fmt.Errorf("RosterService is nil")
	}

	rosters, err := s.rosters.ListRosters(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]persistence.Roster, len(rosters))
	copy(out, rosters)
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// ListMembers returns the users enrolled in a roster, ordered by last name.
func (s *RosterService) ListMembers(ctx context.Context, rosterID string) ([]persistence.User, error) {
	if s == nil {
		return nil, fmt.Errorf("RosterService is nil")
	}

	if _, err := s.rosters.GetRoster(ctx, rosterID); err != nil {
		return nil, mapRepoError(err)
	}

	memberships, err := s.memberships.ListMembershipsForRoster(ctx, rosterID)
	if err != nil {
		return nil, err
	}

	members := make([]persistence.User, 0, len(memberships))
	for _, membership := range memberships {
		user, err := s.users.GetUser(ctx, membership.UserID)
		if err != nil {
			return nil, mapRepoError(err)
		}
		members = append(members, user)
	}
	sort.Slice(members, func(i, j int) bool {
		return strings.ToLower(members[i].LastName) < strings.ToLower(members[j].LastName)
	})
	return members, nil
}

// AddMember enrolls a user in a roster. Administrators only.
func (s *RosterService) AddMember(ctx context.Context, params MembershipParams) error {
	if s == nil {
		return fmt.Errorf("RosterService is nil")
	}

	if _, err := s.rosters.GetRoster(ctx, params.RosterID); err != nil {
		return mapRepoError(err)
	}
	if _, err := s.users.GetUser(ctx, params.UserID); err != nil {
		return mapRepoError(err)
	}

	admin, err := isAdminIn(ctx, s.memberships, params.Principal.UserID, params.RosterID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrUnauthorized
	}

	now := s.now()
	membership := persistence.Membership{
		UserID:    params.UserID,
		RosterID:  params.RosterID,
		Admin:     params.Admin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.memberships.CreateMembership(ctx, membership); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			vErr := &ValidationError{}
			vErr.add("user_id", "user is already a member")
			return vErr
		}
		return mapRepoError(err)
	}

	s.loggerWith(ctx, "AddMember", "roster_id", params.RosterID, "user_id", params.UserID).InfoContext(ctx, "member added")
	return nil
}

// RemoveMember withdraws a user from a roster. Administrators only. The
// last administrator of a roster cannot be removed.
func (s *RosterService) RemoveMember(ctx context.Context, params MembershipParams) error {
	if s == nil {
		return fmt.Errorf("RosterService is nil")
	}

	admin, err := isAdminIn(ctx, s.memberships, params.Principal.UserID, params.RosterID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrUnauthorized
	}

	target, err := s.memberships.GetMembership(ctx, params.UserID, params.RosterID)
	if err != nil {
		return mapRepoError(err)
	}

	if target.Admin {
		last, err := s.lastAdmin(ctx, params.RosterID)
		if err != nil {
			return err
		}
		if last {
			vErr := &ValidationError{}
			vErr.add("user_id", "cannot remove the last administrator")
			return vErr
		}
	}

	if err := s.memberships.DeleteMembership(ctx, params.UserID, params.RosterID); err != nil {
		return mapRepoError(err)
	}

	s.loggerWith(ctx, "RemoveMember", "roster_id", params.RosterID, "user_id", params.UserID).InfoContext(ctx, "member removed")
	return nil
}

// SetAdmin grants or revokes administrator rights on a membership.
// Administrators only; the last administrator cannot be demoted.
func (s *RosterService) SetAdmin(ctx context.Context, params MembershipParams) error {
	if s == nil {
		return fmt.Errorf("RosterService is nil")
	}

	admin, err := isAdminIn(ctx, s.memberships, params.Principal.UserID, params.RosterID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrUnauthorized
	}

	target, err := s.memberships.GetMembership(ctx, params.UserID, params.RosterID)
	if err != nil {
		return mapRepoError(err)
	}

	if target.Admin && !params.Admin {
		last, err := s.lastAdmin(ctx, params.RosterID)
		if err != nil {
			return err
		}
		if last {
			vErr := &ValidationError{}
			vErr.add("user_id", "cannot demote the last administrator")
			return vErr
		}
	}

	target.Admin = params.Admin
	target.UpdatedAt = s.now()
	if err := s.memberships.UpdateMembership(ctx, target); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// lastAdmin reports whether the roster has exactly one administrator.
func (s *RosterService) lastAdmin(ctx context.Context, rosterID string) (bool, error) {
	memberships, err := s.memberships.ListMembershipsForRoster(ctx, rosterID)
	if err != nil {
		return false, err
	}
	admins := 0
	for _, membership := range memberships {
		if membership.Admin {
			admins++
		}
	}
	return admins <= 1, nil
}

func normalizeRosterInput(input RosterInput) RosterInput {
	normalized := RosterInput{Name: strings.TrimSpace(input.Name)}
	if input.FallbackUserID != nil {
		trimmed := strings.TrimSpace(*input.FallbackUserID)
		if trimmed != "" {
			normalized.FallbackUserID = &trimmed
		}
	}
	return normalized
}

func (s *RosterService) validateRosterInput(ctx context.Context, input RosterInput) (*ValidationError, error) {
	vErr := &ValidationError{}
	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	if input.FallbackUserID != nil {
		if _, err := s.users.GetUser(ctx, *input.FallbackUserID); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				vErr.add("fallback_user_id", "fallback user does not exist")
			} else {
				return nil, err
			}
		}
	}
	return vErr, nil
}

func mapRosterRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		vErr := &ValidationError{}
		vErr.add("name", "name is already taken")
		return vErr
	}
	return mapRepoError(err)
}
