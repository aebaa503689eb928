package testfixtures

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/oncall-scheduler/internal/persistence"
)

// Store is an in-memory implementation of the persistence repositories. It
// honours the same sentinel errors and uniqueness rules as the SQLite
// implementation, so services can be exercised without a database.
type Store struct {
	mu          sync.Mutex
	users       map[string]persistence.User
	rosters     map[string]persistence.Roster
	memberships map[string]persistence.Membership
	assignments map[string]persistence.Assignment
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:       make(map[string]persistence.User),
		rosters:     make(map[string]persistence.Roster),
		memberships: make(map[string]persistence.Membership),
		assignments: make(map[string]persistence.Assignment),
	}
}

// Seed loads records without validation, for arranging test state.
func (s *Store) Seed(users []persistence.User, rosters []persistence.Roster, memberships []persistence.Membership, assignments []persistence.Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		s.users[u.ID] = u
	}
	for _, r := range rosters {
		s.rosters[r.ID] = r
	}
	for _, m := range memberships {
		s.memberships[membershipKey(m.UserID, m.RosterID)] = m
	}
	for _, a := range assignments {
		s.assignments[a.ID] = a
	}
}

func membershipKey(userID, rosterID string) string {
	return userID + "/" + rosterID
}

// CreateUser stores a user, enforcing email uniqueness.
func (s *Store) CreateUser(_ context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return persistence.ErrDuplicate
		}
	}
	s.users[user.ID] = user
	return nil
}

// UpdateUser replaces a stored user, enforcing email uniqueness.
func (s *Store) UpdateUser(_ context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	for _, existing := range s.users {
		if existing.ID != user.ID && strings.EqualFold(existing.Email, user.Email) {
			return persistence.ErrDuplicate
		}
	}
	s.users[user.ID] = user
	return nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(_ context.Context, id string) (persistence.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

// GetUserByCalendarToken returns the user holding the exact token.
func (s *Store) GetUserByCalendarToken(_ context.Context, token string) (persistence.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	for _, user := range s.users {
		if user.CalendarAccessToken != nil && *user.CalendarAccessToken == token {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// CalendarTokenInUse reports whether any user already holds the token.
func (s *Store) CalendarTokenInUse(ctx context.Context, token string) (bool, error) {
	_, err := s.GetUserByCalendarToken(ctx, token)
	if err == persistence.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListUsers returns all users.
func (s *Store) ListUsers(_ context.Context) ([]persistence.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// DeleteUser removes a user unless assignments still reference them.
func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return persistence.ErrNotFound
	}
	for _, assignment := range s.assignments {
		if assignment.UserID == id {
			return persistence.ErrForeignKeyViolation
		}
	}
	for key, membership := range s.memberships {
		if membership.UserID == id {
			delete(s.memberships, key)
		}
	}
	delete(s.users, id)
	return nil
}

// CreateRoster stores a roster, enforcing case-insensitive name uniqueness.
func (s *Store) CreateRoster(_ context.Context, roster persistence.Roster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rosters[roster.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range s.rosters {
		if strings.EqualFold(existing.Name, roster.Name) {
			return persistence.ErrDuplicate
		}
	}
	s.rosters[roster.ID] = roster
	return nil
}

// UpdateRoster replaces a stored roster.
func (s *Store) UpdateRoster(_ context.Context, roster persistence.Roster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rosters[roster.ID]; !ok {
		return persistence.ErrNotFound
	}
	for _, existing := range s.rosters {
		if existing.ID != roster.ID && strings.EqualFold(existing.Name, roster.Name) {
			return persistence.ErrDuplicate
		}
	}
	s.rosters[roster.ID] = roster
	return nil
}

// GetRoster returns a roster by ID.
func (s *Store) GetRoster(_ context.Context, id string) (persistence.Roster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster, ok := s.rosters[id]
	if !ok {
		return persistence.Roster{}, persistence.ErrNotFound
	}
	return roster, nil
}

// GetRosterByName returns a roster by case-insensitive name match.
func (s *Store) GetRosterByName(_ context.Context, name string) (persistence.Roster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, roster := range s.rosters {
		if strings.EqualFold(roster.Name, name) {
			return roster, nil
		}
	}
	return persistence.Roster{}, persistence.ErrNotFound
}

// ListRosters returns all rosters.
func (s *Store) ListRosters(_ context.Context) ([]persistence.Roster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rosters := make([]persistence.Roster, 0, len(s.rosters))
	for _, roster := range s.rosters {
		rosters = append(rosters, roster)
	}
	sort.Slice(rosters, func(i, j int) bool { return rosters[i].ID < rosters[j].ID })
	return rosters, nil
}

// DeleteRoster removes a roster unless assignments still reference it.
func (s *Store) DeleteRoster(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rosters[id]; !ok {
		return persistence.ErrNotFound
	}
	for _, assignment := range s.assignments {
		if assignment.RosterID == id {
			return persistence.ErrForeignKeyViolation
		}
	}
	for key, membership := range s.memberships {
		if membership.RosterID == id {
			delete(s.memberships, key)
		}
	}
	delete(s.rosters, id)
	return nil
}

// CreateMembership stores a membership, enforcing one per user and roster.
func (s *Store) CreateMembership(_ context.Context, membership persistence.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey(membership.UserID, membership.RosterID)
	if _, ok := s.memberships[key]; ok {
		return persistence.ErrDuplicate
	}
	s.memberships[key] = membership
	return nil
}

// UpdateMembership replaces a stored membership.
func (s *Store) UpdateMembership(_ context.Context, membership persistence.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey(membership.UserID, membership.RosterID)
	if _, ok := s.memberships[key]; !ok {
		return persistence.ErrNotFound
	}
	s.memberships[key] = membership
	return nil
}

// GetMembership returns the membership for the user and roster pair.
func (s *Store) GetMembership(_ context.Context, userID, rosterID string) (persistence.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	membership, ok := s.memberships[membershipKey(userID, rosterID)]
	if !ok {
		return persistence.Membership{}, persistence.ErrNotFound
	}
	return membership, nil
}

// ListMembershipsForRoster returns the roster's memberships.
func (s *Store) ListMembershipsForRoster(_ context.Context, rosterID string) ([]persistence.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	memberships := make([]persistence.Membership, 0)
	for _, membership := range s.memberships {
		if membership.RosterID == rosterID {
			memberships = append(memberships, membership)
		}
	}
	sort.Slice(memberships, func(i, j int) bool { return memberships[i].UserID < memberships[j].UserID })
	return memberships, nil
}

// ListMembershipsForUser returns the user's memberships.
func (s *Store) ListMembershipsForUser(_ context.Context, userID string) ([]persistence.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	memberships := make([]persistence.Membership, 0)
	for _, membership := range s.memberships {
		if membership.UserID == userID {
			memberships = append(memberships, membership)
		}
	}
	sort.Slice(memberships, func(i, j int) bool { return memberships[i].RosterID < memberships[j].RosterID })
	return memberships, nil
}

// DeleteMembership removes the membership for the user and roster pair.
func (s *Store) DeleteMembership(_ context.Context, userID, rosterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey(userID, rosterID)
	if _, ok := s.memberships[key]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.memberships, key)
	return nil
}

// CreateAssignment stores a single assignment.
func (s *Store) CreateAssignment(_ context.Context, assignment persistence.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[assignment.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.assignments[assignment.ID] = assignment
	return nil
}

// CreateAssignments stores the batch or, on any duplicate, nothing.
func (s *Store) CreateAssignments(_ context.Context, assignments []persistence.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, assignment := range assignments {
		if _, ok := s.assignments[assignment.ID]; ok {
			return persistence.ErrDuplicate
		}
	}
	for _, assignment := range assignments {
		s.assignments[assignment.ID] = assignment
	}
	return nil
}

// UpdateAssignment replaces a stored assignment when the caller's expected
// version matches; otherwise ErrConflict.
func (s *Store) UpdateAssignment(_ context.Context, assignment persistence.Assignment, expectedUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.assignments[assignment.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if !existing.UpdatedAt.Equal(expectedUpdatedAt) {
		return persistence.ErrConflict
	}
	s.assignments[assignment.ID] = assignment
	return nil
}

// GetAssignment returns an assignment by ID.
func (s *Store) GetAssignment(_ context.Context, id string) (persistence.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	assignment, ok := s.assignments[id]
	if !ok {
		return persistence.Assignment{}, persistence.ErrNotFound
	}
	return assignment, nil
}

// ListAssignments returns assignments matching the filter, ordered by start
// date then ID.
func (s *Store) ListAssignments(_ context.Context, filter persistence.AssignmentFilter) ([]persistence.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	assignments := make([]persistence.Assignment, 0)
	for _, assignment := range s.assignments {
		if filter.RosterID != "" && assignment.RosterID != filter.RosterID {
			continue
		}
		if filter.UserID != "" && assignment.UserID != filter.UserID {
			continue
		}
		if filter.StartsOnOrAfter != nil && assignment.StartDate.Before(*filter.StartsOnOrAfter) {
			continue
		}
		if filter.EndsOnOrBefore != nil && assignment.EndDate.After(*filter.EndsOnOrBefore) {
			continue
		}
		if filter.EndsOnOrAfter != nil && assignment.EndDate.Before(*filter.EndsOnOrAfter) {
			continue
		}
		assignments = append(assignments, assignment)
	}
	sort.Slice(assignments, func(i, j int) bool {
		if assignments[i].StartDate.Equal(assignments[j].StartDate) {
			return assignments[i].ID < assignments[j].ID
		}
		return assignments[i].StartDate.Before(assignments[j].StartDate)
	})
	return assignments, nil
}

// DeleteAssignment removes an assignment by ID.
func (s *Store) DeleteAssignment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.assignments, id)
	return nil
}

// DeleteFutureAssignmentsForUser removes the user's assignments starting
// strictly after the reference date.
func (s *Store) DeleteFutureAssignmentsForUser(_ context.Context, userID string, after time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, assignment := range s.assignments {
		if assignment.UserID == userID && assignment.StartDate.After(after) {
			delete(s.assignments, id)
		}
	}
	return nil
}

// LatestEndDate reports the latest end date among the roster's assignments.
func (s *Store) LatestEndDate(_ context.Context, rosterID string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest time.Time
	found := false
	for _, assignment := range s.assignments {
		if assignment.RosterID != rosterID {
			continue
		}
		if !found || assignment.EndDate.After(latest) {
			latest = assignment.EndDate
			found = true
		}
	}
	return latest, found, nil
}
