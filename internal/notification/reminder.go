package notification

import (
	"context"
	"log/slog"
	"time"
)

// AssignmentSource supplies the assignments whose responsibility begins on a
// given calendar date.
type AssignmentSource interface {
	AssignmentsStartingOn(ctx context.Context, date time.Time) ([]AssignmentSnapshot, error)
}

// Reminder notifies users whose assignment starts today. It runs from a cron
// schedule in the binary's wiring; the synchronous request path never waits
// on it.
type Reminder struct {
	source     AssignmentSource
	dispatcher *Dispatcher
	now        func() time.Time
	logger     *slog.Logger
}

// NewReminder wires a Reminder.
func NewReminder(source AssignmentSource, dispatcher *Dispatcher, now func() time.Time, logger *slog.Logger) *Reminder {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reminder{source: source, dispatcher: dispatcher, now: now, logger: logger}
}

// Run dispatches one reminder per assignment starting today. Lookup errors
// abort the run; individual delivery failures are already swallowed by the
// dispatcher.
func (r *Reminder) Run(ctx context.Context) error {
	if r == nil || r.source == nil || r.dispatcher == nil {
		return nil
	}

	today := r.now()
	snapshots, err := r.source.AssignmentsStartingOn(ctx, today)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to load assignments for reminders", "error", err)
		return err
	}

	for _, snapshot := range snapshots {
		r.dispatcher.AssignmentReminder(ctx, snapshot)
	}

	r.logger.InfoContext(ctx, "reminder run completed", "assignments", len(snapshots))
	return nil
}
