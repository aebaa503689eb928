package notification

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentNotification struct {
	RecipientID string
	Kind        EventKind
	ActorID     string
	Snapshot    AssignmentSnapshot
}

type notifierStub struct {
	sent    []sentNotification
	failFor map[string]error
}

func (n *notifierStub) Send(_ context.Context, recipientID string, kind EventKind, actorID string, snapshot AssignmentSnapshot) error {
	if err, ok := n.failFor[recipientID]; ok {
		return err
	}
	n.sent = append(n.sent, sentNotification{recipientID, kind, actorID, snapshot})
	return nil
}

type prefsStub struct {
	changesDisabled   map[string]bool
	remindersDisabled map[string]bool
	err               error
}

func (p *prefsStub) ChangeNotificationsEnabled(_ context.Context, userID string) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	return !p.changesDisabled[userID], nil
}

func (p *prefsStub) RemindersEnabled(_ context.Context, userID string) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	return !p.remindersDisabled[userID], nil
}

func snapshot(owner string) AssignmentSnapshot {
	return AssignmentSnapshot{
		ID:         "a1",
		RosterID:   "r1",
		RosterName: "Transit IT",
		OwnerID:    owner,
		StartDate:  time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher_AssignmentCreated(t *testing.T) {
	t.Parallel()

	stub := &notifierStub{}
	d := NewDispatcher(stub, nil, slog.Default())

	d.AssignmentCreated(context.Background(), snapshot("u1"), "admin")

	require.Len(t, stub.sent, 1)
	assert.Equal(t, "u1", stub.sent[0].RecipientID)
	assert.Equal(t, KindNewAssignment, stub.sent[0].Kind)
	assert.Equal(t, "admin", stub.sent[0].ActorID)
}

func TestDispatcher_UpdateWithSameOwner(t *testing.T) {
	t.Parallel()

	stub := &notifierStub{}
	d := NewDispatcher(stub, nil, slog.Default())

	d.AssignmentUpdated(context.Background(), "u1", snapshot("u1"), "admin")

	require.Len(t, stub.sent, 1)
	assert.Equal(t, "u1", stub.sent[0].RecipientID)
	assert.Equal(t, KindChangedAssignment, stub.sent[0].Kind)
}

func TestDispatcher_UpdateWithNewOwner(t *testing.T) {
	t.Parallel()

	stub := &notifierStub{}
	d := NewDispatcher(stub, nil, slog.Default())

	d.AssignmentUpdated(context.Background(), "u1", snapshot("u2"), "admin")

	require.Len(t, stub.sent, 2)
	assert.Equal(t, "u2", stub.sent[0].RecipientID)
	assert.Equal(t, KindNewAssignment, stub.sent[0].Kind)
	assert.Equal(t, "u1", stub.sent[1].RecipientID)
	assert.Equal(t, KindDeletedAssignment, stub.sent[1].Kind)
}

func TestDispatcher_UpdateDeliveriesAreIndependent(t *testing.T) {
	t.Parallel()

	stub := &notifierStub{failFor: map[string]error{"u2": errors.New("smtp down")}}
	d := NewDispatcher(stub, nil, slog.Default())

	// The new owner's delivery fails; the previous owner must still hear.
	d.AssignmentUpdated(context.Background(), "u1", snapshot("u2"), "admin")

	require.Len(t, stub.sent, 1)
	assert.Equal(t, "u1", stub.sent[0].RecipientID)
	assert.Equal(t, KindDeletedAssignment, stub.sent[0].Kind)
}

func TestDispatcher_AssignmentDeleted(t *testing.T) {
	t.Parallel()

	stub := &notifierStub{}
	d := NewDispatcher(stub, nil, slog.Default())

	d.AssignmentDeleted(context.Background(), snapshot("u1"), "admin")

	require.Len(t, stub.sent, 1)
	assert.Equal(t, KindDeletedAssignment, stub.sent[0].Kind)
	assert.Equal(t, snapshot("u1").StartDate, stub.sent[0].Snapshot.StartDate)
}

func TestDispatcher_RespectsChangeNotificationOptOut(t *testing.T) {
	t.Parallel()

	stub := &notifierStub{}
	prefs := &prefsStub{changesDisabled: map[string]bool{"u1": true}}
	d := NewDispatcher(stub, prefs, slog.Default())

	d.AssignmentUpdated(context.Background(), "u1", snapshot("u2"), "admin")

	// u1 opted out; the new owner is still notified.
	require.Len(t, stub.sent, 1)
	assert.Equal(t, "u2", stub.sent[0].RecipientID)
}

func TestDispatcher_SendsWhenPreferenceLookupFails(t *testing.T) {
	t.Parallel()

	stub := &notifierStub{}
	prefs := &prefsStub{err: errors.New("store down")}
	d := NewDispatcher(stub, prefs, slog.Default())

	d.AssignmentCreated(context.Background(), snapshot("u1"), "admin")

	require.Len(t, stub.sent, 1)
}

func TestDispatcher_ReminderRespectsOptOut(t *testing.T) {
	t.Parallel()

	stub := &notifierStub{}
	prefs := &prefsStub{remindersDisabled: map[string]bool{"u1": true}}
	d := NewDispatcher(stub, prefs, slog.Default())

	d.AssignmentReminder(context.Background(), snapshot("u1"))
	assert.Empty(t, stub.sent)

	d.AssignmentReminder(context.Background(), snapshot("u2"))
	require.Len(t, stub.sent, 1)
	assert.Equal(t, KindUpcomingAssignment, stub.sent[0].Kind)
}

func TestReminder_Run(t *testing.T) {
	t.Parallel()

	stub := &notifierStub{}
	d := NewDispatcher(stub, nil, slog.Default())
	source := &assignmentSourceStub{snapshots: []AssignmentSnapshot{snapshot("u1"), snapshot("u2")}}
	reminder := NewReminder(source, d, func() time.Time { return time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC) }, slog.Default())

	require.NoError(t, reminder.Run(context.Background()))
	assert.Len(t, stub.sent, 2)
}

func TestReminder_RunPropagatesSourceError(t *testing.T) {
	t.Parallel()

	stub := &notifierStub{}
	d := NewDispatcher(stub, nil, slog.Default())
	source := &assignmentSourceStub{err: errors.New("query failed")}
	reminder := NewReminder(source, d, nil, slog.Default())

	assert.Error(t, reminder.Run(context.Background()))
	assert.Empty(t, stub.sent)
}

type assignmentSourceStub struct {
	snapshots []AssignmentSnapshot
	err       error
}

func (s *assignmentSourceStub) AssignmentsStartingOn(context.Context, time.Time) ([]AssignmentSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshots, nil
}
