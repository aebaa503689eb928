package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/oncall-scheduler/internal/persistence"
)

func seedRosterWithUsers(t *testing.T, storage *Storage) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, storage.CreateUser(ctx, testUser("u1")))
	require.NoError(t, storage.CreateUser(ctx, testUser("u2")))
	require.NoError(t, storage.CreateRoster(ctx, testRoster("r1", "Payments")))
	require.NoError(t, storage.CreateRoster(ctx, testRoster("r2", "Search")))
}

func TestAssignmentRepository_BatchCreateIsAtomic(t *testing.T) {
	t.Parallel()

	storage := openTestStorage(t)
	ctx := context.Background()
	seedRosterWithUsers(t, storage)

	require.NoError(t, storage.CreateAssignment(ctx, testAssignment("a1", "r1", "u1", day(t, "2024-03-03"), day(t, "2024-03-09"))))

	// The second entry collides with a1, so the whole batch must fail.
	batch := []persistence.Assignment{
		testAssignment("a2", "r1", "u2", day(t, "2024-03-10"), day(t, "2024-03-16")),
		testAssignment("a1", "r1", "u1", day(t, "2024-03-17"), day(t, "2024-03-23")),
	}
	err := storage.CreateAssignments(ctx, batch)
	assert.ErrorIs(t, err, persistence.ErrDuplicate)

	stored, err := storage.ListAssignments(ctx, persistence.AssignmentFilter{RosterID: "r1"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "a1", stored[0].ID)

	ok := []persistence.Assignment{
		testAssignment("a2", "r1", "u2", day(t, "2024-03-10"), day(t, "2024-03-16")),
		testAssignment("a3", "r1", "u1", day(t, "2024-03-17"), day(t, "2024-03-23")),
	}
	require.NoError(t, storage.CreateAssignments(ctx, ok))

	stored, err = storage.ListAssignments(ctx, persistence.AssignmentFilter{RosterID: "r1"})
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestAssignmentRepository_UpdateDetectsConflicts(t *testing.T) {
	t.Parallel()

	storage := openTestStorage(t)
	ctx := context.Background()
	seedRosterWithUsers(t, storage)

	assignment := testAssignment("a1", "r1", "u1", day(t, "2024-03-03"), day(t, "2024-03-09"))
	require.NoError(t, storage.CreateAssignment(ctx, assignment))

	updated := assignment
	updated.UserID = "u2"
	updated.UpdatedAt = assignment.UpdatedAt.Add(time.Minute)
	require.NoError(t, storage.UpdateAssignment(ctx, updated, assignment.UpdatedAt))

	// Retrying with the stale version must fail.
	stale := updated
	stale.UserID = "u1"
	err := storage.UpdateAssignment(ctx, stale, assignment.UpdatedAt)
	assert.ErrorIs(t, err, persistence.ErrConflict)

	got, err := storage.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "u2", got.UserID)
	assert.True(t, got.UpdatedAt.Equal(updated.UpdatedAt))
}

func TestAssignmentRepository_RejectsInvertedDates(t *testing.T) {
	t.Parallel()

	storage := openTestStorage(t)
	ctx := context.Background()
	seedRosterWithUsers(t, storage)

	bad := testAssignment("a1", "r1", "u1", day(t, "2024-03-09"), day(t, "2024-03-03"))
	err := storage.CreateAssignment(ctx, bad)
	assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
}

func TestAssignmentRepository_ListFilters(t *testing.T) {
	t.Parallel()

	storage := openTestStorage(t)
	ctx := context.Background()
	seedRosterWithUsers(t, storage)

	require.NoError(t, storage.CreateAssignments(ctx, []persistence.Assignment{
		testAssignment("a1", "r1", "u1", day(t, "2024-03-03"), day(t, "2024-03-09")),
		testAssignment("a2", "r1", "u2", day(t, "2024-03-10"), day(t, "2024-03-16")),
		testAssignment("a3", "r2", "u1", day(t, "2024-03-03"), day(t, "2024-03-09")),
	}))

	byRoster, err := storage.ListAssignments(ctx, persistence.AssignmentFilter{RosterID: "r1"})
	require.NoError(t, err)
	require.Len(t, byRoster, 2)
	assert.Equal(t, "a1", byRoster[0].ID)
	assert.Equal(t, "a2", byRoster[1].ID)

	byUser, err := storage.ListAssignments(ctx, persistence.AssignmentFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	from := day(t, "2024-03-10")
	upcoming, err := storage.ListAssignments(ctx, persistence.AssignmentFilter{RosterID: "r1", StartsOnOrAfter: &from})
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "a2", upcoming[0].ID)

	ending, err := storage.ListAssignments(ctx, persistence.AssignmentFilter{RosterID: "r1", EndsOnOrAfter: &from})
	require.NoError(t, err)
	require.Len(t, ending, 1)
	assert.Equal(t, "a2", ending[0].ID)
}

func TestAssignmentRepository_DeleteFutureForUser(t *testing.T) {
	t.Parallel()

	storage := openTestStorage(t)
	ctx := context.Background()
	seedRosterWithUsers(t, storage)

	require.NoError(t, storage.CreateAssignments(ctx, []persistence.Assignment{
		testAssignment("current", "r1", "u1", day(t, "2024-03-03"), day(t, "2024-03-09")),
		testAssignment("future", "r1", "u1", day(t, "2024-03-10"), day(t, "2024-03-16")),
		testAssignment("other", "r1", "u2", day(t, "2024-03-17"), day(t, "2024-03-23")),
	}))

	require.NoError(t, storage.DeleteFutureAssignmentsForUser(ctx, "u1", day(t, "2024-03-04")))

	stored, err := storage.ListAssignments(ctx, persistence.AssignmentFilter{RosterID: "r1"})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "current", stored[0].ID)
	assert.Equal(t, "other", stored[1].ID)
}

func TestAssignmentRepository_LatestEndDate(t *testing.T) {
	t.Parallel()

	storage := openTestStorage(t)
	ctx := context.Background()
	seedRosterWithUsers(t, storage)

	_, ok, err := storage.LatestEndDate(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, storage.CreateAssignments(ctx, []persistence.Assignment{
		testAssignment("a1", "r1", "u1", day(t, "2024-03-03"), day(t, "2024-03-09")),
		testAssignment("a2", "r1", "u2", day(t, "2024-03-10"), day(t, "2024-03-16")),
	}))

	latest, ok, err := storage.LatestEndDate(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, day(t, "2024-03-16"), latest)
}

func TestAssignmentRepository_ForeignKeys(t *testing.T) {
	t.Parallel()

	storage := openTestStorage(t)
	ctx := context.Background()
	seedRosterWithUsers(t, storage)

	orphan := testAssignment("a1", "r1", "ghost", day(t, "2024-03-03"), day(t, "2024-03-09"))
	err := storage.CreateAssignment(ctx, orphan)
	assert.ErrorIs(t, err, persistence.ErrForeignKeyViolation)
}
