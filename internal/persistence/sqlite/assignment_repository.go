package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/oncall-scheduler/internal/persistence"
)

const assignmentColumns = "id, roster_id, user_id, start_date, end_date, created_at, updated_at"

// AssignmentRepository implements persistence.AssignmentRepository using SQLite.
type AssignmentRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewAssignmentRepository creates a new SQLite assignment repository.
func NewAssignmentRepository(pool *ConnectionPool) *AssignmentRepository {
	return &AssignmentRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateAssignment inserts a single assignment.
func (r *AssignmentRepository) CreateAssignment(ctx context.Context, assignment persistence.Assignment) error {
	if assignment.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx,
		"INSERT INTO assignments ("+assignmentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		assignment.ID,
		assignment.RosterID,
		assignment.UserID,
		formatDate(assignment.StartDate),
		formatDate(assignment.EndDate),
		formatTimestamp(assignment.CreatedAt),
		formatTimestamp(assignment.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// CreateAssignments persists the batch inside a single transaction: either
// every assignment is committed or none are.
func (r *AssignmentRepository) CreateAssignments(ctx context.Context, assignments []persistence.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, assignment := range assignments {
			if assignment.ID == "" {
				return persistence.ErrConstraintViolation
			}
			_, err := r.helper.ExecTx(tx,
				"INSERT INTO assignments ("+assignmentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
				assignment.ID,
				assignment.RosterID,
				assignment.UserID,
				formatDate(assignment.StartDate),
				formatDate(assignment.EndDate),
				formatTimestamp(assignment.CreatedAt),
				formatTimestamp(assignment.UpdatedAt),
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
}

// UpdateAssignment replaces an assignment only when the stored updated_at
// matches the caller's expected value; a mismatch reports ErrConflict.
func (r *AssignmentRepository) UpdateAssignment(ctx context.Context, assignment persistence.Assignment, expectedUpdatedAt time.Time) error {
	if assignment.ID == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var storedUpdatedAt string
		err := r.helper.QueryRowTx(tx, "SELECT updated_at FROM assignments WHERE id = ?", assignment.ID).Scan(&storedUpdatedAt)
		if err != nil {
			return r.mapper.MapError(err)
		}

		stored, err := parseTimestamp(storedUpdatedAt)
		if err != nil {
			return err
		}
		if !stored.Equal(expectedUpdatedAt) {
			return persistence.ErrConflict
		}

		_, err = r.helper.ExecTx(tx,
			"UPDATE assignments SET roster_id = ?, user_id = ?, start_date = ?, end_date = ?, updated_at = ? WHERE id = ?",
			assignment.RosterID,
			assignment.UserID,
			formatDate(assignment.StartDate),
			formatDate(assignment.EndDate),
			formatTimestamp(assignment.UpdatedAt),
			assignment.ID,
		)
		return r.mapper.MapError(err)
	})
}

// GetAssignment retrieves an assignment by ID.
func (r *AssignmentRepository) GetAssignment(ctx context.Context, id string) (persistence.Assignment, error) {
	if id == "" {
		return persistence.Assignment{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, "SELECT "+assignmentColumns+" FROM assignments WHERE id = ?", id)
	return r.scanAssignment(row)
}

// ListAssignments returns assignments matching the filter, ordered by start
// date then ID.
func (r *AssignmentRepository) ListAssignments(ctx context.Context, filter persistence.AssignmentFilter) ([]persistence.Assignment, error) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 4)

	if filter.RosterID != "" {
		conditions = append(conditions, "roster_id = ?")
		args = append(args, filter.RosterID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.StartsOnOrAfter != nil {
		conditions = append(conditions, "start_date >= ?")
		args = append(args, formatDate(*filter.StartsOnOrAfter))
	}
	if filter.EndsOnOrBefore != nil {
		conditions = append(conditions, "end_date <= ?")
		args = append(args, formatDate(*filter.EndsOnOrBefore))
	}
	if filter.EndsOnOrAfter != nil {
		conditions = append(conditions, "end_date >= ?")
		args = append(args, formatDate(*filter.EndsOnOrAfter))
	}

	query := "SELECT " + assignmentColumns + " FROM assignments"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_date ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var assignments []persistence.Assignment
	for rows.Next() {
		assignment, err := r.scanAssignmentRow(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return assignments, nil
}

// DeleteAssignment removes an assignment by ID.
func (r *AssignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM assignments WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteFutureAssignmentsForUser removes the user's assignments whose start
// date is strictly after the reference date.
func (r *AssignmentRepository) DeleteFutureAssignmentsForUser(ctx context.Context, userID string, after time.Time) error {
	if userID == "" {
		return nil
	}
	_, err := r.helper.Exec(ctx,
		"DELETE FROM assignments WHERE user_id = ? AND start_date > ?",
		userID, formatDate(after))
	return r.mapper.MapError(err)
}

// LatestEndDate reports the latest end date among the roster's assignments;
// ok is false when the roster has none.
func (r *AssignmentRepository) LatestEndDate(ctx context.Context, rosterID string) (time.Time, bool, error) {
	var latest sql.NullString
	err := r.helper.QueryRow(ctx, "SELECT MAX(end_date) FROM assignments WHERE roster_id = ?", rosterID).Scan(&latest)
	if err != nil {
		return time.Time{}, false, r.mapper.MapError(err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	date, err := parseDate(latest.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return date, true, nil
}

func (r *AssignmentRepository) scanAssignment(row *sql.Row) (persistence.Assignment, error) {
	return r.scanAssignmentRow(row)
}

func (r *AssignmentRepository) scanAssignmentRow(scanner rowScanner) (persistence.Assignment, error) {
	var assignment persistence.Assignment
	var startStr, endStr, createdAtStr, updatedAtStr string

	err := scanner.Scan(
		&assignment.ID,
		&assignment.RosterID,
		&assignment.UserID,
		&startStr,
		&endStr,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Assignment{}, r.mapper.MapError(err)
	}

	if assignment.StartDate, err = parseDate(startStr); err != nil {
		return persistence.Assignment{}, err
	}
	if assignment.EndDate, err = parseDate(endStr); err != nil {
		return persistence.Assignment{}, err
	}
	if assignment.CreatedAt, err = parseTimestamp(createdAtStr); err != nil {
		return persistence.Assignment{}, err
	}
	if assignment.UpdatedAt, err = parseTimestamp(updatedAtStr); err != nil {
		return persistence.Assignment{}, err
	}
	return assignment, nil
}
