package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/oncall-scheduler/internal/oncall"
	"github.com/example/oncall-scheduler/internal/persistence"
	"github.com/example/oncall-scheduler/internal/rotation"
)

// OnCallService answers "who is on call right now" for a roster and
// computes where the next generated rotation should begin.
type OnCallService struct {
	assignments AssignmentRepository
	rosters     RosterRepository
	users       UserRepository
	clock       *oncall.Clock
	logger      *slog.Logger
}

// NewOnCallService wires dependencies for on-call resolution.
func NewOnCallService(assignments AssignmentRepository, rosters RosterRepository, users UserRepository, clock *oncall.Clock, logger *slog.Logger) *OnCallService {
	if clock == nil {
		clock = oncall.NewClock(nil, oncall.DefaultSwitchoverHour, nil)
	}
	return &OnCallService{
		assignments: assignments,
		rosters:     rosters,
		users:       users,
		clock:       clock,
		logger:      defaultLogger(logger),
	}
}

// CurrentOnCall resolves the roster's current on-call holder. When no
// assignment covers the current instant the roster's fallback user, if
// configured, is reported with no end time. The result is nil when nobody
// is responsible.
func (s *OnCallService) CurrentOnCall(ctx context.Context, rosterID string) (*OnCallStatus, error) {
	if s == nil {
		return nil, fmt.Errorf("OnCallService is nil")
	}

	roster, err := s.rosters.GetRoster(ctx, rosterID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	now := s.clock.Now()
	stored, err := s.coveringCandidates(ctx, roster.ID, now)
	if err != nil {
		return nil, err
	}

	candidates := make([]oncall.Assignment, 0, len(stored))
	for _, assignment := range stored {
		candidates = append(candidates, oncall.Assignment{
			ID:        assignment.ID,
			UserID:    assignment.UserID,
			StartDate: assignment.StartDate,
			EndDate:   assignment.EndDate,
			CreatedAt: assignment.CreatedAt,
		})
	}

	if selected, ok := s.clock.Select(candidates, now); ok {
		user, err := s.users.GetUser(ctx, selected.UserID)
		if err != nil {
			return nil, mapRepoError(err)
		}
		until := s.clock.EffectiveEnd(selected.EndDate)
		return &OnCallStatus{
			UserID:    user.ID,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Until:     &until,
		}, nil
	}

	if roster.FallbackUserID == nil {
		return nil, nil
	}
	fallback, err := s.users.GetUser(ctx, *roster.FallbackUserID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return &OnCallStatus{
		UserID:    fallback.ID,
		FirstName: fallback.FirstName,
		LastName:  fallback.LastName,
		Fallback:  true,
	}, nil
}

// NextRotationStartDate returns the Sunday on which the next generated
// rotation should begin: the week after the roster's last scheduled day,
// or today when nothing is scheduled.
func (s *OnCallService) NextRotationStartDate(ctx context.Context, rosterID string) (time.Time, error) {
	if s == nil {
		return time.Time{}, fmt.Errorf("OnCallService is nil")
	}

	if _, err := s.rosters.GetRoster(ctx, rosterID); err != nil {
		return time.Time{}, mapRepoError(err)
	}

	latest, ok, err := s.assignments.LatestEndDate(ctx, rosterID)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return rotation.Date(s.clock.Now()), nil
	}
	return rotation.NextStart(latest), nil
}

// coveringCandidates fetches the assignments whose date range could cover
// the instant. Yesterday's assignment can still be responsible before the
// switchover hour, so the window reaches one day back.
func (s *OnCallService) coveringCandidates(ctx context.Context, rosterID string, at time.Time) ([]persistence.Assignment, error) {
	localDate := rotation.Date(at.In(s.clock.Location()))
	from := localDate.AddDate(0, 0, -1)
	filter := persistence.AssignmentFilter{
		RosterID:      rosterID,
		EndsOnOrAfter: &from,
	}
	return s.assignments.ListAssignments(ctx, filter)
}
