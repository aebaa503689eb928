// Package notification decides who must be told about assignment changes
// and hands delivery to a pluggable sender. Delivery failures are logged and
// swallowed: a notification that cannot be sent never blocks the
// administrative action that caused it.
package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/oncall-scheduler/internal/logging"
)

// EventKind labels the change a recipient is being told about.
type EventKind string

const (
	// KindNewAssignment tells a user they are newly responsible.
	KindNewAssignment EventKind = "new_assignment"
	// KindChangedAssignment tells a user their assignment's dates moved.
	KindChangedAssignment EventKind = "changed_assignment"
	// KindDeletedAssignment tells a user they are no longer responsible.
	KindDeletedAssignment EventKind = "deleted_assignment"
	// KindUpcomingAssignment reminds a user their assignment starts today.
	KindUpcomingAssignment EventKind = "upcoming_assignment"
)

// AssignmentSnapshot carries the assignment details a notification needs.
// Deletions pass the snapshot taken before the record is removed, so the
// owner and date range are still valid.
type AssignmentSnapshot struct {
	ID         string
	RosterID   string
	RosterName string
	OwnerID    string
	StartDate  time.Time
	EndDate    time.Time
}

// Notifier delivers one notification to one recipient. Implementations own
// the transport (webhook, email, log).
type Notifier interface {
	Send(ctx context.Context, recipientID string, kind EventKind, actorID string, snapshot AssignmentSnapshot) error
}

// Preferences reports a recipient's notification settings.
type Preferences interface {
	ChangeNotificationsEnabled(ctx context.Context, userID string) (bool, error)
	RemindersEnabled(ctx context.Context, userID string) (bool, error)
}

// Dispatcher computes (recipient, event-kind) pairs for assignment
// mutations and invokes the notifier once per recipient.
type Dispatcher struct {
	notifier Notifier
	prefs    Preferences
	logger   *slog.Logger
}

// NewDispatcher wires a dispatcher. A nil prefs disables preference checks;
// a nil logger falls back to slog.Default.
func NewDispatcher(notifier Notifier, prefs Preferences, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{notifier: notifier, prefs: prefs, logger: logger}
}

// AssignmentCreated notifies the new owner.
func (d *Dispatcher) AssignmentCreated(ctx context.Context, snapshot AssignmentSnapshot, actorID string) {
	d.deliverChange(ctx, snapshot.OwnerID, KindNewAssignment, actorID, snapshot)
}

// AssignmentUpdated compares the previous owner to the current one. An
// unchanged owner hears about the edit; a reassignment tells the new owner
// they are responsible and the previous owner that they are not. Both
// deliveries are attempted independently.
func (d *Dispatcher) AssignmentUpdated(ctx context.Context, previousOwnerID string, snapshot AssignmentSnapshot, actorID string) {
	if previousOwnerID == snapshot.OwnerID {
		d.deliverChange(ctx, snapshot.OwnerID, KindChangedAssignment, actorID, snapshot)
		return
	}
	d.deliverChange(ctx, snapshot.OwnerID, KindNewAssignment, actorID, snapshot)
	d.deliverChange(ctx, previousOwnerID, KindDeletedAssignment, actorID, snapshot)
}

// AssignmentDeleted notifies the owner. Callers invoke this before removing
// the record.
func (d *Dispatcher) AssignmentDeleted(ctx context.Context, snapshot AssignmentSnapshot, actorID string) {
	d.deliverChange(ctx, snapshot.OwnerID, KindDeletedAssignment, actorID, snapshot)
}

// AssignmentReminder notifies the owner that their assignment starts today.
func (d *Dispatcher) AssignmentReminder(ctx context.Context, snapshot AssignmentSnapshot) {
	if d == nil || d.notifier == nil {
		return
	}
	if d.prefs != nil {
		enabled, err := d.prefs.RemindersEnabled(ctx, snapshot.OwnerID)
		if err != nil {
			d.loggerFor(ctx).WarnContext(ctx, "reminder preference lookup failed, sending anyway",
				"recipient_id", snapshot.OwnerID, "error", err)
		} else if !enabled {
			return
		}
	}
	d.send(ctx, snapshot.OwnerID, KindUpcomingAssignment, "", snapshot)
}

func (d *Dispatcher) deliverChange(ctx context.Context, recipientID string, kind EventKind, actorID string, snapshot AssignmentSnapshot) {
	if d == nil || d.notifier == nil || recipientID == "" {
		return
	}
	if d.prefs != nil {
		enabled, err := d.prefs.ChangeNotificationsEnabled(ctx, recipientID)
		if err != nil {
			d.loggerFor(ctx).WarnContext(ctx, "notification preference lookup failed, sending anyway",
				"recipient_id", recipientID, "error", err)
		} else if !enabled {
			d.loggerFor(ctx).InfoContext(ctx, "recipient opted out of change notifications",
				"recipient_id", recipientID, "event_kind", string(kind))
			return
		}
	}
	d.send(ctx, recipientID, kind, actorID, snapshot)
}

func (d *Dispatcher) send(ctx context.Context, recipientID string, kind EventKind, actorID string, snapshot AssignmentSnapshot) {
	if err := d.notifier.Send(ctx, recipientID, kind, actorID, snapshot); err != nil {
		d.loggerFor(ctx).ErrorContext(ctx, "notification delivery failed",
			"recipient_id", recipientID,
			"event_kind", string(kind),
			"assignment_id", snapshot.ID,
			"error", err,
		)
		return
	}
	d.loggerFor(ctx).InfoContext(ctx, "notification delivered",
		"recipient_id", recipientID,
		"event_kind", string(kind),
		"assignment_id", snapshot.ID,
	)
}

func (d *Dispatcher) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return d.logger
}
