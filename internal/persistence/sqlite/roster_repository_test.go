package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/oncall-scheduler/internal/persistence"
)

func TestRosterRepository_NameLookupIgnoresCase(t *testing.T) {
	t.Parallel()

	storage := openTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.CreateRoster(ctx, testRoster("r1", "Payments")))

	got, err := storage.GetRosterByName(ctx, "payments")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, "Payments", got.Name)

	_, err = storage.GetRosterByName(ctx, "search")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	err = storage.CreateRoster(ctx, testRoster("r2", "PAYMENTS"))
	assert.ErrorIs(t, err, persistence.ErrDuplicate)
}

func TestRosterRepository_FallbackUser(t *testing.T) {
	t.Parallel()

	storage := openTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.CreateUser(ctx, testUser("u1")))

	roster := testRoster("r1", "Payments")
	fallback := "u1"
	roster.FallbackUserID = &fallback
	require.NoError(t, storage.CreateRoster(ctx, roster))

	got, err := storage.GetRoster(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got.FallbackUserID)
	assert.Equal(t, "u1", *got.FallbackUserID)

	// An unknown fallback user is rejected by the foreign key.
	bad := testRoster("r2", "Search")
	ghost := "ghost"
	bad.FallbackUserID = &ghost
	assert.ErrorIs(t, storage.CreateRoster(ctx, bad), persistence.ErrForeignKeyViolation)
}

func TestMembershipRepository_RoundTrip(t *testing.T) {
	t.Parallel()

	storage := openTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.CreateUser(ctx, testUser("u1")))
	require.NoError(t, storage.CreateUser(ctx, testUser("u2")))
	require.NoError(t, storage.CreateRoster(ctx, testRoster("r1", "Payments")))

	now := testUser("u1").CreatedAt
	membership := persistence.Membership{UserID: "u1", RosterID: "r1", Admin: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, storage.CreateMembership(ctx, membership))
	require.NoError(t, storage.CreateMembership(ctx, persistence.Membership{UserID: "u2", RosterID: "r1", CreatedAt: now, UpdatedAt: now}))

	err := storage.CreateMembership(ctx, membership)
	assert.ErrorIs(t, err, persistence.ErrDuplicate)

	got, err := storage.GetMembership(ctx, "u1", "r1")
	require.NoError(t, err)
	assert.True(t, got.Admin)

	got.Admin = false
	require.NoError(t, storage.UpdateMembership(ctx, got))
	got, err = storage.GetMembership(ctx, "u1", "r1")
	require.NoError(t, err)
	assert.False(t, got.Admin)

	forRoster, err := storage.ListMembershipsForRoster(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, forRoster, 2)

	forUser, err := storage.ListMembershipsForUser(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, forUser, 1)
	assert.Equal(t, "r1", forUser[0].RosterID)

	require.NoError(t, storage.DeleteMembership(ctx, "u2", "r1"))
	_, err = storage.GetMembership(ctx, "u2", "r1")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}
