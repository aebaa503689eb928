package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/oncall-scheduler/internal/persistence"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	t.Parallel()

	storage := openTestStorage(t)
	ctx := context.Background()

	user := testUser("u1")
	user.Phone = "+14155550100"
	token := "feed-token-1"
	user.CalendarAccessToken = &token
	require.NoError(t, storage.CreateUser(ctx, user))

	got, err := storage.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)
	assert.Equal(t, user.Phone, got.Phone)
	assert.True(t, got.Active)
	require.NotNil(t, got.CalendarAccessToken)
	assert.Equal(t, token, *got.CalendarAccessToken)
	assert.True(t, got.CreatedAt.Equal(user.CreatedAt))

	_, err = storage.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestUserRepository_EmailUniqueIgnoresCase(t *testing.T) {
	t.Parallel()

	storage := openTestStorage(t)
	ctx := context.Background()

	first := testUser("u1")
	first.Email = "shared@example.com"
	require.NoError(t, storage.CreateUser(ctx, first))

	second := testUser("u2")
	second.Email = "SHARED@example.com"
	err := storage.CreateUser(ctx, second)
	assert.ErrorIs(t, err, persistence.ErrDuplicate)
}

func TestUserRepository_CalendarTokenLookup(t *testing.T) {
	t.Parallel()

	storage := openTestStorage(t)
	ctx := context.Background()

	user := testUser("u1")
	token := "abcdef0123456789"
	user.CalendarAccessToken = &token
	require.NoError(t, storage.CreateUser(ctx, user))
	require.NoError(t, storage.CreateUser(ctx, testUser("u2")))

	got, err := storage.GetUserByCalendarToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	// The match is exact, never a prefix.
	_, err = storage.GetUserByCalendarToken(ctx, token[:8])
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	inUse, err := storage.CalendarTokenInUse(ctx, token)
	require.NoError(t, err)
	assert.True(t, inUse)

	inUse, err = storage.CalendarTokenInUse(ctx, "unused")
	require.NoError(t, err)
	assert.False(t, inUse)
}

func TestUserRepository_DeleteGuardsAssignments(t *testing.T) {
	t.Parallel()

	storage := openTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.CreateUser(ctx, testUser("u1")))
	require.NoError(t, storage.CreateRoster(ctx, testRoster("r1", "Payments")))
	require.NoError(t, storage.CreateAssignment(ctx, testAssignment("a1", "r1", "u1", day(t, "2024-03-03"), day(t, "2024-03-09"))))

	err := storage.DeleteUser(ctx, "u1")
	assert.ErrorIs(t, err, persistence.ErrForeignKeyViolation)

	require.NoError(t, storage.DeleteAssignment(ctx, "a1"))
	require.NoError(t, storage.DeleteUser(ctx, "u1"))

	_, err = storage.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestUserRepository_Update(t *testing.T) {
	t.Parallel()

	storage := openTestStorage(t)
	ctx := context.Background()

	user := testUser("u1")
	require.NoError(t, storage.CreateUser(ctx, user))

	user.FirstName = "Jordan"
	user.Active = false
	user.RemindersEnabled = false
	require.NoError(t, storage.UpdateUser(ctx, user))

	got, err := storage.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Jordan", got.FirstName)
	assert.False(t, got.Active)
	assert.False(t, got.RemindersEnabled)

	missing := testUser("ghost")
	assert.ErrorIs(t, storage.UpdateUser(ctx, missing), persistence.ErrNotFound)
}
