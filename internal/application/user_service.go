package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/example/oncall-scheduler/internal/persistence"
	"github.com/example/oncall-scheduler/internal/rotation"
)

// UserService orchestrates validation, authorization, and persistence for
// on-call users, including the deactivation cascade and calendar token
// issuance.
type UserService struct {
	users       UserRepository
	memberships MembershipRepository
	assignments AssignmentRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, memberships MembershipRepository, assignments AssignmentRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:       users,
		memberships: memberships,
		assignments: assignments,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// CreateUser persists a new user and joins them to the given roster. Only
// an administrator of that roster may create users in it.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (persistence.User, error) {
	if s == nil {
		return persistence.User{}, fmt.Errorf("UserService is nil")
	}

	logger := s.loggerWith(ctx, "CreateUser", "roster_id", params.RosterID)

	admin, err := isAdminIn(ctx, s.memberships, params.Principal.UserID, params.RosterID)
	if err != nil {
		return persistence.User{}, err
	}
	if !admin {
		logger.InfoContext(ctx, "user creation rejected", "error_kind", ErrorKind(ErrUnauthorized))
		return persistence.User{}, ErrUnauthorized
	}

	normalized := normalizeUserInput(params.Input)
	if vErr := validateUserInput(normalized); vErr.HasErrors() {
		return persistence.User{}, vErr
	}

	now := s.now()
	user := persistence.User{
		ID:                         s.idGenerator(),
		FirstName:                  normalized.FirstName,
		LastName:                   normalized.LastName,
		Email:                      normalized.Email,
		Phone:                      normalized.Phone,
		Active:                     true,
		RemindersEnabled:           normalized.RemindersEnabled,
		ChangeNotificationsEnabled: normalized.ChangeNotificationsEnabled,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return persistence.User{}, mapUserRepoError(err)
	}

	membership := persistence.Membership{
		UserID:    user.ID,
		RosterID:  params.RosterID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.memberships.CreateMembership(ctx, membership); err != nil {
		return persistence.User{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "user created", "user_id", user.ID)
	return user, nil
}

// UpdateUser applies validation and authorization before updating a user.
// The user themselves or an administrator of a roster they belong to may
// edit them. Deactivating a user removes their future assignments; past and
// current assignments are preserved for history.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (persistence.User, error) {
	if s == nil {
		return persistence.User{}, fmt.Errorf("UserService is nil")
	}

	logger := s.loggerWith(ctx, "UpdateUser", "user_id", params.UserID)

	existing, err := s.users.GetUser(ctx, params.UserID)
	if err != nil {
		return persistence.User{}, mapRepoError(err)
	}

	allowed, err := s.canManage(ctx, params.Principal, existing.ID)
	if err != nil {
		return persistence.User{}, err
	}
	if !allowed {
		logger.InfoContext(ctx, "user update rejected", "error_kind", ErrorKind(ErrUnauthorized))
		return persistence.User{}, ErrUnauthorized
	}

	normalized := normalizeUserInput(params.Input)
	if vErr := validateUserInput(normalized); vErr.HasErrors() {
		return persistence.User{}, vErr
	}

	updated := existing
	updated.FirstName = normalized.FirstName
	updated.LastName = normalized.LastName
	updated.Email = normalized.Email
	updated.Phone = normalized.Phone
	updated.Active = normalized.Active
	updated.RemindersEnabled = normalized.RemindersEnabled
	updated.ChangeNotificationsEnabled = normalized.ChangeNotificationsEnabled
	updated.UpdatedAt = s.now()

	if err := s.users.UpdateUser(ctx, updated); err != nil {
		return persistence.User{}, mapUserRepoError(err)
	}

	if existing.Active && !updated.Active {
		today := rotation.Date(s.now())
		if err := s.assignments.DeleteFutureAssignmentsForUser(ctx, updated.ID, today); err != nil {
			return persistence.User{}, err
		}
		logger.InfoContext(ctx, "future assignments removed for deactivated user")
	}

	return updated, nil
}

// DeleteUser removes a user. The acting principal must administer at least
// one roster the user belongs to. Users who still own assignments cannot be
// deleted; deactivate them instead.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}

	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return mapRepoError(err)
	}

	allowed, err := s.adminForUser(ctx, principal, userID)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrUnauthorized
	}

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, persistence.ErrForeignKeyViolation) {
			vErr := &ValidationError{}
			vErr.add("assignments", "user still owns assignments")
			return vErr
		}
		return mapRepoError(err)
	}

	s.loggerWith(ctx, "DeleteUser", "user_id", userID).InfoContext(ctx, "user deleted")
	return nil
}

// ListUsers returns all users ordered by last name then first name.
func (s *UserService) ListUsers(ctx context.Context) ([]persistence.User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]persistence.User, len(users))
	copy(out, users)
	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].LastName, out[j].LastName) {
			return strings.ToLower(out[i].FirstName) < strings.ToLower(out[j].FirstName)
		}
		return strings.ToLower(out[i].LastName) < strings.ToLower(out[j].LastName)
	})
	return out, nil
}

// EnsureCalendarToken returns the user's feed token, generating and
// persisting one on first need. The user themselves or an administrator of
// one of their rosters may request it.
func (s *UserService) EnsureCalendarToken(ctx context.Context, principal Principal, userID string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("UserService is nil")
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return "", mapRepoError(err)
	}

	allowed, err := s.canManage(ctx, principal, userID)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", ErrUnauthorized
	}

	if user.CalendarAccessToken != nil && *user.CalendarAccessToken != "" {
		return *user.CalendarAccessToken, nil
	}

	token, err := generateCalendarToken(ctx, s.users)
	if err != nil {
		return "", err
	}

	user.CalendarAccessToken = &token
	user.UpdatedAt = s.now()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return "", mapUserRepoError(err)
	}

	s.loggerWith(ctx, "EnsureCalendarToken", "user_id", userID).InfoContext(ctx, "calendar token issued")
	return token, nil
}

// ValidateActor resolves a claimed user id into a principal. Unknown ids map
// to ErrNotFound and deactivated users to ErrUnauthorized, so callers can
// reject both before any request handling runs.
func (s *UserService) ValidateActor(ctx context.Context, userID string) (Principal, error) {
	if s == nil {
		return Principal{}, fmt.Errorf("UserService is nil")
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return Principal{}, mapRepoError(err)
	}
	if !user.Active {
		return Principal{}, ErrUnauthorized
	}
	return Principal{UserID: user.ID}, nil
}

// canManage permits the user themselves or an admin of a shared roster.
func (s *UserService) canManage(ctx context.Context, principal Principal, userID string) (bool, error) {
	if principal.UserID == userID {
		return true, nil
	}
	return s.adminForUser(ctx, principal, userID)
}

// adminForUser reports whether the principal administers any roster the
// target user belongs to.
func (s *UserService) adminForUser(ctx context.Context, principal Principal, userID string) (bool, error) {
	memberships, err := s.memberships.ListMembershipsForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, membership := range memberships {
		admin, err := isAdminIn(ctx, s.memberships, principal.UserID, membership.RosterID)
		if err != nil {
			return false, err
		}
		if admin {
			return true, nil
		}
	}
	return false, nil
}

func normalizeUserInput(input UserInput) UserInput {
	return UserInput{
		FirstName:                  strings.TrimSpace(input.FirstName),
		LastName:                   strings.TrimSpace(input.LastName),
		Email:                      strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:                      strings.TrimSpace(input.Phone),
		Active:                     input.Active,
		RemindersEnabled:           input.RemindersEnabled,
		ChangeNotificationsEnabled: input.ChangeNotificationsEnabled,
	}
}

func validateUserInput(input UserInput) *ValidationError {
	vErr := &ValidationError{}

	if input.FirstName == "" {
		vErr.add("first_name", "first name is required")
	}
	if input.LastName == "" {
		vErr.add("last_name", "last name is required")
	}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}

	if input.Phone != "" && !validPhone(input.Phone) {
		vErr.add("phone", "phone must be + followed by digits")
	}

	return vErr
}

func validPhone(phone string) bool {
	if len(phone) < 2 || phone[0] != '+' {
		return false
	}
	for _, r := range phone[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func mapUserRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		vErr := &ValidationError{}
		vErr.add("email", "email is already taken")
		return vErr
	}
	return mapRepoError(err)
}
