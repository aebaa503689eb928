package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/oncall-scheduler/internal/ics"
	"github.com/example/oncall-scheduler/internal/persistence"
)

// FeedService renders a roster's schedule as an iCalendar document. Access
// is granted by the requesting user's calendar token: an unknown token is
// indistinguishable from a missing feed, and a known user who does not
// belong to the roster is refused.
type FeedService struct {
	users       UserRepository
	rosters     RosterRepository
	memberships MembershipRepository
	assignments AssignmentRepository
	serializer  *ics.Serializer
	logger      *slog.Logger
}

// NewFeedService wires dependencies for calendar feed rendering.
func NewFeedService(users UserRepository, rosters RosterRepository, memberships MembershipRepository, assignments AssignmentRepository, serializer *ics.Serializer, logger *slog.Logger) *FeedService {
	return &FeedService{
		users:       users,
		rosters:     rosters,
		memberships: memberships,
		assignments: assignments,
		serializer:  serializer,
		logger:      defaultLogger(logger),
	}
}

// Feed returns the roster's full schedule as an iCalendar document. The
// roster is addressed by name, matched case-insensitively.
func (s *FeedService) Feed(ctx context.Context, token, rosterName string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("FeedService is nil")
	}

	logger := serviceLogger(ctx, s.logger, "FeedService", "Feed", "roster_name", rosterName)

	requester, err := s.users.GetUserByCalendarToken(ctx, token)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			logger.InfoContext(ctx, "feed request with unknown token")
			return nil, ErrNotFound
		}
		return nil, err
	}

	roster, err := s.rosters.GetRosterByName(ctx, rosterName)
	if err != nil {
		return nil, mapRepoError(err)
	}

	member, err := isMember(ctx, s.memberships, requester.ID, roster.ID)
	if err != nil {
		return nil, err
	}
	if !member {
		logger.InfoContext(ctx, "feed request refused", "user_id", requester.ID, "error_kind", ErrorKind(ErrUnauthorized))
		return nil, ErrUnauthorized
	}

	assignments, err := s.assignments.ListAssignments(ctx, persistence.AssignmentFilter{RosterID: roster.ID})
	if err != nil {
		return nil, err
	}

	owners := make(map[string]persistence.User, len(assignments))
	events := make([]ics.Event, 0, len(assignments))
	for _, assignment := range assignments {
		owner, ok := owners[assignment.UserID]
		if !ok {
			owner, err = s.users.GetUser(ctx, assignment.UserID)
			if err != nil {
				return nil, mapRepoError(err)
			}
			owners[assignment.UserID] = owner
		}
		events = append(events, ics.Event{
			ID:        assignment.ID,
			OwnerName: owner.FullName(),
			StartDate: assignment.StartDate,
			EndDate:   assignment.EndDate,
			UpdatedAt: assignment.UpdatedAt,
		})
	}

	return s.serializer.Serialize(events, roster.Name), nil
}
