package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/oncall-scheduler/internal/notification"
	"github.com/example/oncall-scheduler/internal/persistence"
	"github.com/example/oncall-scheduler/internal/rotation"
)

// ChangeDispatcher receives assignment mutations after they are persisted.
// Implementations never fail the calling operation.
type ChangeDispatcher interface {
	AssignmentCreated(ctx context.Context, snapshot notification.AssignmentSnapshot, actorID string)
	AssignmentUpdated(ctx context.Context, previousOwnerID string, snapshot notification.AssignmentSnapshot, actorID string)
	AssignmentDeleted(ctx context.Context, snapshot notification.AssignmentSnapshot, actorID string)
}

// AssignmentService manages on-call assignments and rotation generation.
// Roster administrators may manage any assignment in their roster; other
// members may only take an assignment over for themselves.
type AssignmentService struct {
	assignments AssignmentRepository
	rosters     RosterRepository
	users       UserRepository
	memberships MembershipRepository
	dispatcher  ChangeDispatcher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAssignmentService wires dependencies for the assignment service. A nil
// dispatcher disables notifications.
func NewAssignmentService(assignments AssignmentRepository, rosters RosterRepository, users UserRepository, memberships MembershipRepository, dispatcher ChangeDispatcher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AssignmentService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AssignmentService{
		assignments: assignments,
		rosters:     rosters,
		users:       users,
		memberships: memberships,
		dispatcher:  dispatcher,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *AssignmentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AssignmentService", operation, attrs...)
}

// CreateAssignment persists a single assignment and notifies the owner.
func (s *AssignmentService) CreateAssignment(ctx context.Context, params CreateAssignmentParams) (persistence.Assignment, error) {
	if s == nil {
		return persistence.Assignment{}, fmt.Errorf("AssignmentService is nil")
	}

	logger := s.loggerWith(ctx, "CreateAssignment", "roster_id", params.RosterID)

	roster, err := s.rosters.GetRoster(ctx, params.RosterID)
	if err != nil {
		return persistence.Assignment{}, mapRepoError(err)
	}

	allowed, err := s.canAssign(ctx, params.Principal, roster.ID, params.Input.UserID)
	if err != nil {
		return persistence.Assignment{}, err
	}
	if !allowed {
		logger.InfoContext(ctx, "assignment rejected", "error_kind", ErrorKind(ErrUnauthorized))
		return persistence.Assignment{}, ErrUnauthorized
	}

	input, vErr, err := s.validateAssignmentInput(ctx, roster.ID, params.Input)
	if err != nil {
		return persistence.Assignment{}, err
	}
	if vErr.HasErrors() {
		return persistence.Assignment{}, vErr
	}

	now := s.now()
	assignment := persistence.Assignment{
		ID:        s.idGenerator(),
		RosterID:  roster.ID,
		UserID:    input.UserID,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.assignments.CreateAssignment(ctx, assignment); err != nil {
		return persistence.Assignment{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "assignment created", "assignment_id", assignment.ID, "user_id", assignment.UserID)
	if s.dispatcher != nil {
		s.dispatcher.AssignmentCreated(ctx, s.snapshot(assignment, roster.Name), params.Principal.UserID)
	}
	return assignment, nil
}

// UpdateAssignment edits an assignment's owner or date range. The caller
// must present the UpdatedAt value they last read; an intervening edit
// fails with ErrConflict. The previous and new owners are notified
// according to whether ownership moved.
func (s *AssignmentService) UpdateAssignment(ctx context.Context, params UpdateAssignmentParams) (persistence.Assignment, error) {
	if s == nil {
		return persistence.Assignment{}, fmt.Errorf("AssignmentService is nil")
	}

	logger := s.loggerWith(ctx, "UpdateAssignment", "assignment_id", params.AssignmentID)

	existing, err := s.assignments.GetAssignment(ctx, params.AssignmentID)
	if err != nil {
		return persistence.Assignment{}, mapRepoError(err)
	}
	roster, err := s.rosters.GetRoster(ctx, existing.RosterID)
	if err != nil {
		return persistence.Assignment{}, mapRepoError(err)
	}

	allowed, err := s.canAssign(ctx, params.Principal, roster.ID, params.Input.UserID)
	if err != nil {
		return persistence.Assignment{}, err
	}
	if !allowed {
		logger.InfoContext(ctx, "assignment update rejected", "error_kind", ErrorKind(ErrUnauthorized))
		return persistence.Assignment{}, ErrUnauthorized
	}

	input, vErr, err := s.validateAssignmentInput(ctx, roster.ID, params.Input)
	if err != nil {
		return persistence.Assignment{}, err
	}
	if vErr.HasErrors() {
		return persistence.Assignment{}, vErr
	}

	updated := existing
	updated.UserID = input.UserID
	updated.StartDate = input.StartDate
	updated.EndDate = input.EndDate
	updated.UpdatedAt = s.now()

	if err := s.assignments.UpdateAssignment(ctx, updated, params.ExpectedUpdatedAt); err != nil {
		return persistence.Assignment{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "assignment updated", "user_id", updated.UserID, "previous_user_id", existing.UserID)
	if s.dispatcher != nil {
		s.dispatcher.AssignmentUpdated(ctx, existing.UserID, s.snapshot(updated, roster.Name), params.Principal.UserID)
	}
	return updated, nil
}

// DeleteAssignment removes an assignment. Roster administrators or the
// assignment's owner only. The owner is notified with the state the record
// had before removal.
func (s *AssignmentService) DeleteAssignment(ctx context.Context, principal Principal, assignmentID string) error {
	if s == nil {
		return fmt.Errorf("AssignmentService is nil")
	}

	existing, err := s.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return mapRepoError(err)
	}
	roster, err := s.rosters.GetRoster(ctx, existing.RosterID)
	if err != nil {
		return mapRepoError(err)
	}

	admin, err := isAdminIn(ctx, s.memberships, principal.UserID, roster.ID)
	if err != nil {
		return err
	}
	if !admin && principal.UserID != existing.UserID {
		return ErrUnauthorized
	}

	snapshot := s.snapshot(existing, roster.Name)
	if err := s.assignments.DeleteAssignment(ctx, assignmentID); err != nil {
		return mapRepoError(err)
	}

	s.loggerWith(ctx, "DeleteAssignment", "assignment_id", assignmentID).InfoContext(ctx, "assignment deleted")
	if s.dispatcher != nil {
		s.dispatcher.AssignmentDeleted(ctx, snapshot, principal.UserID)
	}
	return nil
}

// GetAssignment returns a single assignment.
func (s *AssignmentService) GetAssignment(ctx context.Context, assignmentID string) (persistence.Assignment, error) {
	if s == nil {
		return persistence.Assignment{}, fmt.Errorf("AssignmentService is nil")
	}

	assignment, err := s.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return persistence.Assignment{}, mapRepoError(err)
	}
	return assignment, nil
}

// ListAssignments returns assignments matching the filter, ordered by
// start date.
func (s *AssignmentService) ListAssignments(ctx context.Context, params ListAssignmentsParams) ([]persistence.Assignment, error) {
	if s == nil {
		return nil, fmt.Errorf("AssignmentService is nil")
	}

	if params.RosterID != "" {
		if _, err := s.rosters.GetRoster(ctx, params.RosterID); err != nil {
			return nil, mapRepoError(err)
		}
	}

	filter := persistence.AssignmentFilter{
		RosterID: params.RosterID,
		UserID:   params.UserID,
	}
	if params.StartsOnOrAfter != nil {
		date := rotation.Date(*params.StartsOnOrAfter)
		filter.StartsOnOrAfter = &date
	}
	if params.EndsOnOrBefore != nil {
		date := rotation.Date(*params.EndsOnOrBefore)
		filter.EndsOnOrBefore = &date
	}

	assignments, err := s.assignments.ListAssignments(ctx, filter)
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

// GenerateRotation produces a contiguous weekly rotation over the given
// users and persists all resulting assignments atomically. Roster
// administrators only. Every owner is notified of their new blocks.
func (s *AssignmentService) GenerateRotation(ctx context.Context, params GenerateRotationParams) ([]persistence.Assignment, error) {
	if s == nil {
		return nil, fmt.Errorf("AssignmentService is nil")
	}

	logger := s.loggerWith(ctx, "GenerateRotation", "roster_id", params.RosterID)

	roster, err := s.rosters.GetRoster(ctx, params.RosterID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	admin, err := isAdminIn(ctx, s.memberships, params.Principal.UserID, roster.ID)
	if err != nil {
		return nil, err
	}
	if !admin {
		logger.InfoContext(ctx, "rotation generation rejected", "error_kind", ErrorKind(ErrUnauthorized))
		return nil, ErrUnauthorized
	}

	vErr := &ValidationError{}
	for _, userID := range params.UserIDs {
		if err := s.checkOwner(ctx, roster.ID, userID, vErr, "user_ids"); err != nil {
			return nil, err
		}
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	drafts, err := rotation.Generate(params.UserIDs, params.StartDate, params.EndDate, params.StartingUserID)
	if err != nil {
		switch {
		case errors.Is(err, rotation.ErrNoUsers):
			vErr.add("user_ids", "at least one user is required")
		case errors.Is(err, rotation.ErrStartingUserNotMember):
			vErr.add("starting_user_id", "starting user must be among the rotation users")
		case errors.Is(err, rotation.ErrEndBeforeStart):
			vErr.add("end_date", "end date must not be before start date")
		default:
			return nil, err
		}
		return nil, vErr
	}

	now := s.now()
	assignments := make([]persistence.Assignment, 0, len(drafts))
	for _, draft := range drafts {
		assignments = append(assignments, persistence.Assignment{
			ID:        s.idGenerator(),
			RosterID:  roster.ID,
			UserID:    draft.UserID,
			StartDate: draft.StartDate,
			EndDate:   draft.EndDate,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if err := s.assignments.CreateAssignments(ctx, assignments); err != nil {
		return nil, mapRepoError(err)
	}

	logger.InfoContext(ctx, "rotation generated", "assignment_count", len(assignments))
	if s.dispatcher != nil {
		for _, assignment := range assignments {
			s.dispatcher.AssignmentCreated(ctx, s.snapshot(assignment, roster.Name), params.Principal.UserID)
		}
	}
	return assignments, nil
}

// AssignmentsStartingOn returns snapshots of every assignment beginning on
// the given calendar date, for reminder delivery.
func (s *AssignmentService) AssignmentsStartingOn(ctx context.Context, date time.Time) ([]notification.AssignmentSnapshot, error) {
	if s == nil {
		return nil, fmt.Errorf("AssignmentService is nil")
	}

	day := rotation.Date(date)
	filter := persistence.AssignmentFilter{StartsOnOrAfter: &day}
	assignments, err := s.assignments.ListAssignments(ctx, filter)
	if err != nil {
		return nil, err
	}

	rosterNames := make(map[string]string)
	snapshots := make([]notification.AssignmentSnapshot, 0, len(assignments))
	for _, assignment := range assignments {
		if !assignment.StartDate.Equal(day) {
			continue
		}
		name, ok := rosterNames[assignment.RosterID]
		if !ok {
			roster, err := s.rosters.GetRoster(ctx, assignment.RosterID)
			if err != nil {
				return nil, mapRepoError(err)
			}
			name = roster.Name
			rosterNames[assignment.RosterID] = name
		}
		snapshots = append(snapshots, s.snapshot(assignment, name))
	}
	return snapshots, nil
}

// canAssign permits roster administrators, and members taking an
// assignment over for themselves.
func (s *AssignmentService) canAssign(ctx context.Context, principal Principal, rosterID, ownerID string) (bool, error) {
	admin, err := isAdminIn(ctx, s.memberships, principal.UserID, rosterID)
	if err != nil {
		return false, err
	}
	if admin {
		return true, nil
	}
	if principal.UserID != ownerID {
		return false, nil
	}
	return isMember(ctx, s.memberships, principal.UserID, rosterID)
}

// validateAssignmentInput truncates the dates and checks the owner. The
// returned input carries the normalized dates.
func (s *AssignmentService) validateAssignmentInput(ctx context.Context, rosterID string, input AssignmentInput) (AssignmentInput, *ValidationError, error) {
	vErr := &ValidationError{}

	normalized := AssignmentInput{
		UserID:    input.UserID,
		StartDate: rotation.Date(input.StartDate),
		EndDate:   rotation.Date(input.EndDate),
	}

	if normalized.EndDate.Before(normalized.StartDate) {
		vErr.add("end_date", "end date must not be before start date")
	}
	if err := s.checkOwner(ctx, rosterID, normalized.UserID, vErr, "user_id"); err != nil {
		return AssignmentInput{}, nil, err
	}
	return normalized, vErr, nil
}

// checkOwner validates that a prospective owner exists, is active, and
// belongs to the roster.
func (s *AssignmentService) checkOwner(ctx context.Context, rosterID, userID string, vErr *ValidationError, field string) error {
	if userID == "" {
		vErr.add(field, "user is required")
		return nil
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			vErr.add(field, "user does not exist")
			return nil
		}
		return err
	}
	if !user.Active {
		vErr.add(field, "user is deactivated")
		return nil
	}
	member, err := isMember(ctx, s.memberships, userID, rosterID)
	if err != nil {
		return err
	}
	if !member {
		vErr.add(field, "user is not a member of the roster")
	}
	return nil
}

func (s *AssignmentService) snapshot(assignment persistence.Assignment, rosterName string) notification.AssignmentSnapshot {
	return notification.AssignmentSnapshot{
		ID:         assignment.ID,
		RosterID:   assignment.RosterID,
		RosterName: rosterName,
		OwnerID:    assignment.UserID,
		StartDate:  assignment.StartDate,
		EndDate:    assignment.EndDate,
	}
}
