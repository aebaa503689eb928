package application

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/oncall-scheduler/internal/ics"
	"github.com/example/oncall-scheduler/internal/oncall"
	"github.com/example/oncall-scheduler/internal/persistence"
	"github.com/example/oncall-scheduler/internal/testfixtures"
)

func newFeedFixture(t *testing.T) (*serviceEnv, *FeedService) {
	t.Helper()

	env := newServiceEnv()
	clock := oncall.NewClock(env.clock.NowFunc(), 8, time.UTC)
	serializer := ics.NewSerializer(clock, "")
	return env, NewFeedService(env.store, env.store, env.store, env.store, serializer, nil)
}

func TestFeedRequiresKnownToken(t *testing.T) {
	t.Parallel()

	env, service := newFeedFixture(t)
	roster := testfixtures.NewRoster(testfixtures.WithRosterName("Payments"))
	env.store.Seed(nil, []persistence.Roster{roster}, nil, nil)

	_, err := service.Feed(context.Background(), "unknown-token", "Payments")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = service.Feed(context.Background(), "", "Payments")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFeedRefusesNonMembers(t *testing.T) {
	t.Parallel()

	env, service := newFeedFixture(t)
	outsider := testfixtures.NewUser(testfixtures.WithUserCalendarToken("outsider-token"))
	roster := testfixtures.NewRoster(testfixtures.WithRosterName("Payments"))
	env.store.Seed([]persistence.User{outsider}, []persistence.Roster{roster}, nil, nil)

	_, err := service.Feed(context.Background(), "outsider-token", "Payments")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestFeedRendersRosterSchedule(t *testing.T) {
	t.Parallel()

	env, service := newFeedFixture(t)
	member := testfixtures.NewUser(
		testfixtures.WithUserName("Avery", "Ng"),
		testfixtures.WithUserCalendarToken("member-token"),
	)
	colleague := testfixtures.NewUser(testfixtures.WithUserName("Sam", "Ortiz"))
	roster := testfixtures.NewRoster(testfixtures.WithRosterName("Payments"))
	other := testfixtures.NewRoster(testfixtures.WithRosterName("Search"))

	week1 := testfixtures.NewAssignment(roster.ID, member.ID,
		testfixtures.WithAssignmentDates(date(2024, 3, 3), date(2024, 3, 9)))
	week2 := testfixtures.NewAssignment(roster.ID, colleague.ID,
		testfixtures.WithAssignmentDates(date(2024, 3, 10), date(2024, 3, 16)))
	elsewhere := testfixtures.NewAssignment(other.ID, colleague.ID)

	env.store.Seed(
		[]persistence.User{member, colleague},
		[]persistence.Roster{roster, other},
		[]persistence.Membership{
			testfixtures.NewMembership(member.ID, roster.ID, false),
			testfixtures.NewMembership(colleague.ID, roster.ID, false),
			testfixtures.NewMembership(colleague.ID, other.ID, false),
		},
		[]persistence.Assignment{week1, week2, elsewhere},
	)

	// The roster name match is case-insensitive.
	body, err := service.Feed(context.Background(), "member-token", "payments")
	require.NoError(t, err)
	out := string(body)

	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n"))
	assert.Contains(t, out, "X-WR-CALNAME:Payments\r\n")
	assert.Contains(t, out, "SUMMARY:Avery Ng\r\n")
	assert.Contains(t, out, "SUMMARY:Sam Ortiz\r\n")
	assert.Contains(t, out, "UID:"+week1.ID+"@oncall-scheduler\r\n")
	// Only the requested roster's assignments appear.
	assert.NotContains(t, out, elsewhere.ID)
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))
}
