// Package rotation generates contiguous weekly on-call assignments from an
// ordered user list. It performs no persistence and no notification; callers
// persist the drafts and dispatch notifications themselves.
package rotation

import (
	"errors"
	"time"
)

// ErrNoUsers is returned when the rotation has no members.
var ErrNoUsers = errors.New("rotation: at least one user is required")

// ErrStartingUserNotMember is returned when the starting user is not part of
// the ordered user list.
var ErrStartingUserNotMember = errors.New("rotation: starting user must be in the rotation")

// ErrEndBeforeStart is returned when the requested range is inverted.
var ErrEndBeforeStart = errors.New("rotation: end date must not precede start date")

// BlockLength is the fixed length of a rotation block in days.
const BlockLength = 7

// Draft is a generated assignment that has not been persisted yet. Dates are
// calendar dates at UTC midnight, both bounds inclusive.
type Draft struct {
	UserID    string
	StartDate time.Time
	EndDate   time.Time
}

// Generate partitions [start, end] into contiguous 7-day blocks beginning at
// start, clipping the final block to end, and assigns block i to
// userIDs[(offset+i) mod n] where offset is the position of startingUserID.
// The drafts jointly cover exactly [start, end] with no gap and no overlap.
func Generate(userIDs []string, start, end time.Time, startingUserID string) ([]Draft, error) {
	if len(userIDs) == 0 {
		return nil, ErrNoUsers
	}

	offset := -1
	for i, id := range userIDs {
		if id == startingUserID {
			offset = i
			break
		}
	}
	if offset < 0 {
		return nil, ErrStartingUserNotMember
	}

	start = Date(start)
	end = Date(end)
	if end.Before(start) {
		return nil, ErrEndBeforeStart
	}

	n := len(userIDs)
	drafts := make([]Draft, 0, daysBetween(start, end)/BlockLength+1)
	for i := 0; ; i++ {
		blockStart := start.AddDate(0, 0, i*BlockLength)
		if blockStart.After(end) {
			break
		}
		blockEnd := blockStart.AddDate(0, 0, BlockLength-1)
		if blockEnd.After(end) {
			blockEnd = end
		}
		drafts = append(drafts, Draft{
			UserID:    userIDs[(offset+i)%n],
			StartDate: blockStart,
			EndDate:   blockEnd,
		})
	}

	return drafts, nil
}

// NextStart returns the date a new rotation would sensibly begin after an
// existing schedule: the first day of the week one week beyond latestEnd.
// Weeks start on Sunday, matching the generator UI's calendar.
func NextStart(latestEnd time.Time) time.Time {
	d := Date(latestEnd).AddDate(0, 0, BlockLength)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// Date truncates t to a calendar date at UTC midnight.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(start, end time.Time) int {
	return int(end.Sub(start) / (24 * time.Hour))
}
