package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/oncall-scheduler/internal/persistence"
	"github.com/example/oncall-scheduler/internal/testfixtures"
)

func TestCreateUserRequiresRosterAdmin(t *testing.T) {
	t.Parallel()

	env := newServiceEnv()
	admin := testfixtures.NewUser()
	member := testfixtures.NewUser()
	roster := testfixtures.NewRoster()
	env.store.Seed(
		[]persistence.User{admin, member},
		[]persistence.Roster{roster},
		[]persistence.Membership{
			testfixtures.NewMembership(admin.ID, roster.ID, true),
			testfixtures.NewMembership(member.ID, roster.ID, false),
		},
		nil,
	)
	service := env.userService()

	input := UserInput{FirstName: "Jordan", LastName: "Reyes", Email: "jordan@example.com", RemindersEnabled: true, ChangeNotificationsEnabled: true}

	_, err := service.CreateUser(context.Background(), CreateUserParams{
		Principal: Principal{UserID: member.ID},
		RosterID:  roster.ID,
		Input:     input,
	})
	require.ErrorIs(t, err, ErrUnauthorized)

	created, err := service.CreateUser(context.Background(), CreateUserParams{
		Principal: Principal{UserID: admin.ID},
		RosterID:  roster.ID,
		Input:     input,
	})
	require.NoError(t, err)
	assert.True(t, created.Active)
	assert.Equal(t, "jordan@example.com", created.Email)

	membership, err := env.store.GetMembership(context.Background(), created.ID, roster.ID)
	require.NoError(t, err)
	assert.False(t, membership.Admin)
}

func TestCreateUserValidation(t *testing.T) {
	t.Parallel()

	env := newServiceEnv()
	admin := testfixtures.NewUser()
	roster := testfixtures.NewRoster()
	env.store.Seed(
		[]persistence.User{admin},
		[]persistence.Roster{roster},
		[]persistence.Membership{testfixtures.NewMembership(admin.ID, roster.ID, true)},
		nil,
	)
	service := env.userService()
	principal := Principal{UserID: admin.ID}

	tests := []struct {
		name  string
		input UserInput
		field string
	}{
		{"missing first name", UserInput{LastName: "Reyes", Email: "a@example.com"}, "first_name"},
		{"missing last name", UserInput{FirstName: "Jordan", Email: "a@example.com"}, "last_name"},
		{"missing email", UserInput{FirstName: "Jordan", LastName: "Reyes"}, "email"},
		{"invalid email", UserInput{FirstName: "Jordan", LastName: "Reyes", Email: "not-an-email"}, "email"},
		{"invalid phone", UserInput{FirstName: "Jordan", LastName: "Reyes", Email: "a@example.com", Phone: "555-1234"}, "phone"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := service.CreateUser(context.Background(), CreateUserParams{Principal: principal, RosterID: roster.ID, Input: tc.input})
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.FieldErrors, tc.field)
		})
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	t.Parallel()

	env := newServiceEnv()
	admin := testfixtures.NewUser(testfixtures.WithUserEmail("taken@example.com"))
	roster := testfixtures.NewRoster()
	env.store.Seed(
		[]persistence.User{admin},
		[]persistence.Roster{roster},
		[]persistence.Membership{testfixtures.NewMembership(admin.ID, roster.ID, true)},
		nil,
	)
	service := env.userService()

	_, err := service.CreateUser(context.Background(), CreateUserParams{
		Principal: Principal{UserID: admin.ID},
		RosterID:  roster.ID,
		Input:     UserInput{FirstName: "Jordan", LastName: "Reyes", Email: "TAKEN@example.com"},
	})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "email")
}

func TestUpdateUserSelfAndAdmin(t *testing.T) {
	t.Parallel()

	env := newServiceEnv()
	admin := testfixtures.NewUser()
	member := testfixtures.NewUser()
	outsider := testfixtures.NewUser()
	roster := testfixtures.NewRoster()
	env.store.Seed(
		[]persistence.User{admin, member, outsider},
		[]persistence.Roster{roster},
		[]persistence.Membership{
			testfixtures.NewMembership(admin.ID, roster.ID, true),
			testfixtures.NewMembership(member.ID, roster.ID, false),
		},
		nil,
	)
	service := env.userService()

	input := UserInput{
		FirstName: member.FirstName,
		LastName:  member.LastName,
		Email:     member.Email,
		Active:    true,
	}

	_, err := service.UpdateUser(context.Background(), UpdateUserParams{Principal: Principal{UserID: outsider.ID}, UserID: member.ID, Input: input})
	require.ErrorIs(t, err, ErrUnauthorized)

	input.Phone = "+14155550100"
	updated, err := service.UpdateUser(context.Background(), UpdateUserParams{Principal: Principal{UserID: member.ID}, UserID: member.ID, Input: input})
	require.NoError(t, err)
	assert.Equal(t, "+14155550100", updated.Phone)

	input.Phone = "+14155550111"
	updated, err = service.UpdateUser(context.Background(), UpdateUserParams{Principal: Principal{UserID: admin.ID}, UserID: member.ID, Input: input})
	require.NoError(t, err)
	assert.Equal(t, "+14155550111", updated.Phone)
}

func TestDeactivationRemovesFutureAssignments(t *testing.T) {
	t.Parallel()

	env := newServiceEnv()
	admin := testfixtures.NewUser()
	member := testfixtures.NewUser()
	roster := testfixtures.NewRoster()

	// Clock reads 2024-03-04; the current block must survive, the future
	// one must go.
	current := testfixtures.NewAssignment(roster.ID, member.ID,
		testfixtures.WithAssignmentDates(date(2024, 3, 3), date(2024, 3, 9)))
	future := testfixtures.NewAssignment(roster.ID, member.ID,
		testfixtures.WithAssignmentDates(date(2024, 3, 10), date(2024, 3, 16)))
	otherOwner := testfixtures.NewAssignment(roster.ID, admin.ID,
		testfixtures.WithAssignmentDates(date(2024, 3, 17), date(2024, 3, 23)))

	env.store.Seed(
		[]persistence.User{admin, member},
		[]persistence.Roster{roster},
		[]persistence.Membership{
			testfixtures.NewMembership(admin.ID, roster.ID, true),
			testfixtures.NewMembership(member.ID, roster.ID, false),
		},
		[]persistence.Assignment{current, future, otherOwner},
	)
	service := env.userService()

	_, err := service.UpdateUser(context.Background(), UpdateUserParams{
		Principal: Principal{UserID: admin.ID},
		UserID:    member.ID,
		Input: UserInput{
			FirstName: member.FirstName,
			LastName:  member.LastName,
			Email:     member.Email,
			Active:    false,
		},
	})
	require.NoError(t, err)

	remaining, err := env.store.ListAssignments(context.Background(), persistence.AssignmentFilter{RosterID: roster.ID})
	require.NoError(t, err)
	ids := make([]string, 0, len(remaining))
	for _, a := range remaining {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []string{current.ID, otherOwner.ID}, ids)
}

func TestDeleteUserWithAssignments(t *testing.T) {
	t.Parallel()

	env := newServiceEnv()
	admin := testfixtures.NewUser()
	member := testfixtures.NewUser()
	roster := testfixtures.NewRoster()
	assignment := testfixtures.NewAssignment(roster.ID, member.ID)
	env.store.Seed(
		[]persistence.User{admin, member},
		[]persistence.Roster{roster},
		[]persistence.Membership{
			testfixtures.NewMembership(admin.ID, roster.ID, true),
			testfixtures.NewMembership(member.ID, roster.ID, false),
		},
		[]persistence.Assignment{assignment},
	)
	service := env.userService()

	err := service.DeleteUser(context.Background(), Principal{UserID: admin.ID}, member.ID)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "assignments")

	require.NoError(t, env.store.DeleteAssignment(context.Background(), assignment.ID))
	require.NoError(t, service.DeleteUser(context.Background(), Principal{UserID: admin.ID}, member.ID))

	_, err = env.store.GetUser(context.Background(), member.ID)
	assert.True(t, errors.Is(err, persistence.ErrNotFound))
}

func TestEnsureCalendarToken(t *testing.T) {
	t.Parallel()

	env := newServiceEnv()
	admin := testfixtures.NewUser()
	member := testfixtures.NewUser()
	outsider := testfixtures.NewUser()
	roster := testfixtures.NewRoster()
	env.store.Seed(
		[]persistence.User{admin, member, outsider},
		[]persistence.Roster{roster},
		[]persistence.Membership{
			testfixtures.NewMembership(admin.ID, roster.ID, true),
			testfixtures.NewMembership(member.ID, roster.ID, false),
		},
		nil,
	)
	service := env.userService()

	_, err := service.EnsureCalendarToken(context.Background(), Principal{UserID: outsider.ID}, member.ID)
	require.ErrorIs(t, err, ErrUnauthorized)

	token, err := service.EnsureCalendarToken(context.Background(), Principal{UserID: member.ID}, member.ID)
	require.NoError(t, err)
	assert.Len(t, token, 32)

	// Repeated calls return the stored token instead of rotating it.
	again, err := service.EnsureCalendarToken(context.Background(), Principal{UserID: admin.ID}, member.ID)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	stored, err := env.store.GetUserByCalendarToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, member.ID, stored.ID)
}
