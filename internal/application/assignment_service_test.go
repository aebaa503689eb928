package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/oncall-scheduler/internal/persistence"
	"github.com/example/oncall-scheduler/internal/testfixtures"
)

type assignmentFixture struct {
	env        *serviceEnv
	service    *AssignmentService
	dispatcher *recordingDispatcher
	admin      persistence.User
	member     persistence.User
	other      persistence.User
	roster     persistence.Roster
}

func newAssignmentFixture(t *testing.T) *assignmentFixture {
	t.Helper()

	env := newServiceEnv()
	admin := testfixtures.NewUser()
	member := testfixtures.NewUser()
	other := testfixtures.NewUser()
	roster := testfixtures.NewRoster()
	env.store.Seed(
		[]persistence.User{admin, member, other},
		[]persistence.Roster{roster},
		[]persistence.Membership{
			testfixtures.NewMembership(admin.ID, roster.ID, true),
			testfixtures.NewMembership(member.ID, roster.ID, false),
			testfixtures.NewMembership(other.ID, roster.ID, false),
		},
		nil,
	)
	dispatcher := &recordingDispatcher{}
	return &assignmentFixture{
		env:        env,
		service:    env.assignmentService(dispatcher),
		dispatcher: dispatcher,
		admin:      admin,
		member:     member,
		other:      other,
		roster:     roster,
	}
}

func TestCreateAssignmentByAdmin(t *testing.T) {
	t.Parallel()

	f := newAssignmentFixture(t)
	created, err := f.service.CreateAssignment(context.Background(), CreateAssignmentParams{
		Principal: Principal{UserID: f.admin.ID},
		RosterID:  f.roster.ID,
		Input: AssignmentInput{
			UserID:    f.member.ID,
			StartDate: date(2024, 3, 10),
			EndDate:   date(2024, 3, 16),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, f.member.ID, created.UserID)

	records := f.dispatcher.all()
	require.Len(t, records, 1)
	assert.Equal(t, "created", records[0].event)
	assert.Equal(t, f.admin.ID, records[0].actorID)
	assert.Equal(t, f.member.ID, records[0].snapshot.OwnerID)
	assert.Equal(t, f.roster.Name, records[0].snapshot.RosterName)
}

func TestMembersMayOnlyTakeOwnershipForThemselves(t *testing.T) {
	t.Parallel()

	f := newAssignmentFixture(t)
	input := AssignmentInput{UserID: f.other.ID, StartDate: date(2024, 3, 10), EndDate: date(2024, 3, 16)}

	_, err := f.service.CreateAssignment(context.Background(), CreateAssignmentParams{
		Principal: Principal{UserID: f.member.ID},
		RosterID:  f.roster.ID,
		Input:     input,
	})
	require.ErrorIs(t, err, ErrUnauthorized)

	input.UserID = f.member.ID
	_, err = f.service.CreateAssignment(context.Background(), CreateAssignmentParams{
		Principal: Principal{UserID: f.member.ID},
		RosterID:  f.roster.ID,
		Input:     input,
	})
	require.NoError(t, err)
}

func TestCreateAssignmentValidation(t *testing.T) {
	t.Parallel()

	f := newAssignmentFixture(t)
	outsider := testfixtures.NewUser()
	inactive := testfixtures.NewUser(testfixtures.WithUserActive(false))
	f.env.store.Seed([]persistence.User{outsider, inactive},
		nil,
		[]persistence.Membership{testfixtures.NewMembership(inactive.ID, f.roster.ID, false)},
		nil,
	)
	principal := Principal{UserID: f.admin.ID}

	tests := []struct {
		name  string
		input AssignmentInput
		field string
	}{
		{
			"end before start",
			AssignmentInput{UserID: f.member.ID, StartDate: date(2024, 3, 16), EndDate: date(2024, 3, 10)},
			"end_date",
		},
		{
			"owner not a member",
			AssignmentInput{UserID: outsider.ID, StartDate: date(2024, 3, 10), EndDate: date(2024, 3, 16)},
			"user_id",
		},
		{
			"owner deactivated",
			AssignmentInput{UserID: inactive.ID, StartDate: date(2024, 3, 10), EndDate: date(2024, 3, 16)},
			"user_id",
		},
		{
			"owner missing",
			AssignmentInput{StartDate: date(2024, 3, 10), EndDate: date(2024, 3, 16)},
			"user_id",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := f.service.CreateAssignment(context.Background(), CreateAssignmentParams{Principal: principal, RosterID: f.roster.ID, Input: tc.input})
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.FieldErrors, tc.field)
		})
	}
}

func TestUpdateAssignmentReassignsOwnership(t *testing.T) {
	t.Parallel()

	f := newAssignmentFixture(t)
	assignment := testfixtures.NewAssignment(f.roster.ID, f.member.ID)
	f.env.store.Seed(nil, nil, nil, []persistence.Assignment{assignment})

	updated, err := f.service.UpdateAssignment(context.Background(), UpdateAssignmentParams{
		Principal:    Principal{UserID: f.admin.ID},
		AssignmentID: assignment.ID,
		Input: AssignmentInput{
			UserID:    f.other.ID,
			StartDate: assignment.StartDate,
			EndDate:   assignment.EndDate,
		},
		ExpectedUpdatedAt: assignment.UpdatedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, f.other.ID, updated.UserID)

	records := f.dispatcher.all()
	require.Len(t, records, 1)
	assert.Equal(t, "updated", records[0].event)
	assert.Equal(t, f.member.ID, records[0].previousOwner)
	assert.Equal(t, f.other.ID, records[0].snapshot.OwnerID)
}

func TestUpdateAssignmentDetectsConcurrentEdit(t *testing.T) {
	t.Parallel()

	f := newAssignmentFixture(t)
	assignment := testfixtures.NewAssignment(f.roster.ID, f.member.ID)
	f.env.store.Seed(nil, nil, nil, []persistence.Assignment{assignment})

	stale := assignment.UpdatedAt.Add(-time.Minute)
	_, err := f.service.UpdateAssignment(context.Background(), UpdateAssignmentParams{
		Principal:    Principal{UserID: f.admin.ID},
		AssignmentID: assignment.ID,
		Input: AssignmentInput{
			UserID:    f.member.ID,
			StartDate: assignment.StartDate,
			EndDate:   assignment.EndDate,
		},
		ExpectedUpdatedAt: stale,
	})
	require.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, f.dispatcher.all())
}

func TestDeleteAssignment(t *testing.T) {
	t.Parallel()

	f := newAssignmentFixture(t)
	assignment := testfixtures.NewAssignment(f.roster.ID, f.member.ID)
	f.env.store.Seed(nil, nil, nil, []persistence.Assignment{assignment})

	err := f.service.DeleteAssignment(context.Background(), Principal{UserID: f.other.ID}, assignment.ID)
	require.ErrorIs(t, err, ErrUnauthorized)

	// The owner may delete their own assignment; the snapshot is taken
	// before removal.
	require.NoError(t, f.service.DeleteAssignment(context.Background(), Principal{UserID: f.member.ID}, assignment.ID))

	records := f.dispatcher.all()
	require.Len(t, records, 1)
	assert.Equal(t, "deleted", records[0].event)
	assert.Equal(t, f.member.ID, records[0].snapshot.OwnerID)
	assert.Equal(t, assignment.StartDate, records[0].snapshot.StartDate)

	_, err = f.service.GetAssignment(context.Background(), assignment.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGenerateRotation(t *testing.T) {
	t.Parallel()

	f := newAssignmentFixture(t)
	params := GenerateRotationParams{
		Principal:      Principal{UserID: f.admin.ID},
		RosterID:       f.roster.ID,
		UserIDs:        []string{f.admin.ID, f.member.ID, f.other.ID},
		StartDate:      date(2024, 3, 3),
		EndDate:        date(2024, 3, 23),
		StartingUserID: f.member.ID,
	}

	assignments, err := f.service.GenerateRotation(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, assignments, 3)

	// Rotation order starts at the chosen user and wraps.
	assert.Equal(t, f.member.ID, assignments[0].UserID)
	assert.Equal(t, f.other.ID, assignments[1].UserID)
	assert.Equal(t, f.admin.ID, assignments[2].UserID)

	// Blocks are contiguous weeks.
	for i, a := range assignments {
		assert.Equal(t, params.StartDate.AddDate(0, 0, i*7), a.StartDate)
		assert.Equal(t, params.StartDate.AddDate(0, 0, i*7+6), a.EndDate)
	}

	records := f.dispatcher.all()
	assert.Len(t, records, 3)
}

func TestGenerateRotationAuthorizationAndValidation(t *testing.T) {
	t.Parallel()

	f := newAssignmentFixture(t)

	_, err := f.service.GenerateRotation(context.Background(), GenerateRotationParams{
		Principal:      Principal{UserID: f.member.ID},
		RosterID:       f.roster.ID,
		UserIDs:        []string{f.member.ID},
		StartDate:      date(2024, 3, 3),
		EndDate:        date(2024, 3, 9),
		StartingUserID: f.member.ID,
	})
	require.ErrorIs(t, err, ErrUnauthorized)

	var vErr *ValidationError
	_, err = f.service.GenerateRotation(context.Background(), GenerateRotationParams{
		Principal:      Principal{UserID: f.admin.ID},
		RosterID:       f.roster.ID,
		UserIDs:        []string{f.member.ID},
		StartDate:      date(2024, 3, 9),
		EndDate:        date(2024, 3, 3),
		StartingUserID: f.member.ID,
	})
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "end_date")

	_, err = f.service.GenerateRotation(context.Background(), GenerateRotationParams{
		Principal:      Principal{UserID: f.admin.ID},
		RosterID:       f.roster.ID,
		UserIDs:        []string{f.member.ID},
		StartDate:      date(2024, 3, 3),
		EndDate:        date(2024, 3, 9),
		StartingUserID: f.other.ID,
	})
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "starting_user_id")

	assert.Empty(t, f.dispatcher.all())
}

func TestAssignmentsStartingOn(t *testing.T) {
	t.Parallel()

	f := newAssignmentFixture(t)
	today := testfixtures.NewAssignment(f.roster.ID, f.member.ID,
		testfixtures.WithAssignmentDates(date(2024, 3, 10), date(2024, 3, 16)))
	nextWeek := testfixtures.NewAssignment(f.roster.ID, f.other.ID,
		testfixtures.WithAssignmentDates(date(2024, 3, 17), date(2024, 3, 23)))
	f.env.store.Seed(nil, nil, nil, []persistence.Assignment{today, nextWeek})

	snapshots, err := f.service.AssignmentsStartingOn(context.Background(), time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, today.ID, snapshots[0].ID)
	assert.Equal(t, f.member.ID, snapshots[0].OwnerID)
	assert.Equal(t, f.roster.Name, snapshots[0].RosterName)
}
