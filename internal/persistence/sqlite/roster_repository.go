package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/oncall-scheduler/internal/persistence"
)

const rosterColumns = "id, name, fallback_user_id, created_at, updated_at"

// RosterRepository implements persistence.RosterRepository using SQLite.
type RosterRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewRosterRepository creates a new SQLite roster repository.
func NewRosterRepository(pool *ConnectionPool) *RosterRepository {
	return &RosterRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateRoster inserts a new roster.
func (r *RosterRepository) CreateRoster(ctx context.Context, roster persistence.Roster) error {
	if roster.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx,
		"INSERT INTO rosters ("+rosterColumns+") VALUES (?, ?, ?, ?, ?)",
		roster.ID,
		roster.Name,
		roster.FallbackUserID,
		formatTimestamp(roster.CreatedAt),
		formatTimestamp(roster.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateRoster replaces a stored roster's attributes.
func (r *RosterRepository) UpdateRoster(ctx context.Context, roster persistence.Roster) error {
	if roster.ID == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx,
		"UPDATE rosters SET name = ?, fallback_user_id = ?, updated_at = ? WHERE id = ?",
		roster.Name,
		roster.FallbackUserID,
		formatTimestamp(roster.UpdatedAt),
		roster.ID,
	)
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

// GetRoster retrieves a roster by ID.
func (r *RosterRepository) GetRoster(ctx context.Context, id string) (persistence.Roster, error) {
	if id == "" {
		return persistence.Roster{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, "SELECT "+rosterColumns+" FROM rosters WHERE id = ?", id)
	return r.scanRoster(row)
}

// GetRosterByName retrieves a roster by name. The name column collates
// case-insensitively, so Payments and payments address the same roster.
func (r *RosterRepository) GetRosterByName(ctx context.Context, name string) (persistence.Roster, error) {
	if name == "" {
		return persistence.Roster{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, "SELECT "+rosterColumns+" FROM rosters WHERE name = ? COLLATE NOCASE", name)
	return r.scanRoster(row)
}

// ListRosters returns all rosters ordered by name.
func (r *RosterRepository) ListRosters(ctx context.Context) ([]persistence.Roster, error) {
	rows, err := r.helper.Query(ctx, "SELECT "+rosterColumns+" FROM rosters ORDER BY name COLLATE NOCASE ASC, id ASC")
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var rosters []persistence.Roster
	for rows.Next() {
		roster, err := r.scanRosterRow(rows)
		if err != nil {
			return nil, err
		}
		rosters = append(rosters, roster)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rosters, nil
}

// DeleteRoster removes a roster and its memberships. Rosters still
// referenced by assignments fail with ErrForeignKeyViolation.
func (r *RosterRepository) DeleteRoster(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var assignmentCount int
		if err := r.helper.QueryRowTx(tx, "SELECT COUNT(*) FROM assignments WHERE roster_id = ?", id).Scan(&assignmentCount); err != nil {
			return r.mapper.MapError(err)
		}
		if assignmentCount > 0 {
			return persistence.ErrForeignKeyViolation
		}

		if _, err := r.helper.ExecTx(tx, "DELETE FROM memberships WHERE roster_id = ?", id); err != nil {
			return r.mapper.MapError(err)
		}

		result, err := r.helper.ExecTx(tx, "DELETE FROM rosters WHERE id = ?", id)
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
	})
}

func (r *RosterRepository) scanRoster(row *sql.Row) (persistence.Roster, error) {
	return r.scanRosterRow(row)
}

func (r *RosterRepository) scanRosterRow(scanner rowScanner) (persistence.Roster, error) {
	var roster persistence.Roster
	var fallback sql.NullString
	var createdAtStr, updatedAtStr string

	err := scanner.Scan(
		&roster.ID,
		&roster.Name,
		&fallback,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Roster{}, r.mapper.MapError(err)
	}

	if fallback.Valid {
		roster.FallbackUserID = &fallback.String
	}
	if roster.CreatedAt, err = parseTimestamp(createdAtStr); err != nil {
		return persistence.Roster{}, err
	}
	if roster.UpdatedAt, err = parseTimestamp(updatedAtStr); err != nil {
		return persistence.Roster{}, err
	}
	return roster, nil
}
