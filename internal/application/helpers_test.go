package application

import (
	"context"
	"sync"
	"time"

	"github.com/example/oncall-scheduler/internal/notification"
	"github.com/example/oncall-scheduler/internal/testfixtures"
)

// serviceEnv bundles the in-memory store and deterministic inputs shared by
// the service tests.
type serviceEnv struct {
	store *testfixtures.Store
	clock *testfixtures.Clock
	ids   *testfixtures.IDGenerator
}

func newServiceEnv() *serviceEnv {
	return &serviceEnv{
		store: testfixtures.NewStore(),
		clock: testfixtures.NewClock(time.Time{}),
		ids:   testfixtures.NewIDGenerator("gen"),
	}
}

func (e *serviceEnv) userService() *UserService {
	return NewUserService(e.store, e.store, e.store, e.ids.NextFunc(), e.clock.NowFunc(), nil)
}

func (e *serviceEnv) rosterService() *RosterService {
	return NewRosterService(e.store, e.store, e.store, e.ids.NextFunc(), e.clock.NowFunc(), nil)
}

func (e *serviceEnv) assignmentService(dispatcher ChangeDispatcher) *AssignmentService {
	return NewAssignmentService(e.store, e.store, e.store, e.store, dispatcher, e.ids.NextFunc(), e.clock.NowFunc(), nil)
}

// dispatchRecord captures one dispatcher invocation.
type dispatchRecord struct {
	event         string
	actorID       string
	previousOwner string
	snapshot      notification.AssignmentSnapshot
}

// recordingDispatcher captures dispatcher calls for assertions.
type recordingDispatcher struct {
	mu      sync.Mutex
	records []dispatchRecord
}

func (d *recordingDispatcher) AssignmentCreated(_ context.Context, snapshot notification.AssignmentSnapshot, actorID string) {
	d.record(dispatchRecord{event: "created", actorID: actorID, snapshot: snapshot})
}

func (d *recordingDispatcher) AssignmentUpdated(_ context.Context, previousOwnerID string, snapshot notification.AssignmentSnapshot, actorID string) {
	d.record(dispatchRecord{event: "updated", actorID: actorID, previousOwner: previousOwnerID, snapshot: snapshot})
}

func (d *recordingDispatcher) AssignmentDeleted(_ context.Context, snapshot notification.AssignmentSnapshot, actorID string) {
	d.record(dispatchRecord{event: "deleted", actorID: actorID, snapshot: snapshot})
}

func (d *recordingDispatcher) record(r dispatchRecord) {
	d.mu.Lock()
	d.records = append(d.records, r)
	d.mu.Unlock()
}

func (d *recordingDispatcher) all() []dispatchRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]dispatchRecord, len(d.records))
	copy(out, d.records)
	return out
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
