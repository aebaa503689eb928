package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/oncall-scheduler/internal/persistence"
)

const membershipColumns = "user_id, roster_id, admin, created_at, updated_at"

// MembershipRepository implements persistence.MembershipRepository using SQLite.
type MembershipRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewMembershipRepository creates a new SQLite membership repository.
func NewMembershipRepository(pool *ConnectionPool) *MembershipRepository {
	return &MembershipRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateMembership inserts a membership; one per user and roster pair.
func (r *MembershipRepository) CreateMembership(ctx context.Context, membership persistence.Membership) error {
	if membership.UserID == "" || membership.RosterID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx,
		"INSERT INTO memberships ("+membershipColumns+") VALUES (?, ?, ?, ?, ?)",
		membership.UserID,
		membership.RosterID,
		membership.Admin,
		formatTimestamp(membership.CreatedAt),
		formatTimestamp(membership.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateMembership replaces a stored membership's attributes.
func (r *MembershipRepository) UpdateMembership(ctx context.Context, membership persistence.Membership) error {
	result, err := r.helper.Exec(ctx,
		"UPDATE memberships SET admin = ?, updated_at = ? WHERE user_id = ? AND roster_id = ?",
		membership.Admin,
		formatTimestamp(membership.UpdatedAt),
		membership.UserID,
		membership.RosterID,
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

// GetMembership retrieves the membership for the user and roster pair.
func (r *MembershipRepository) GetMembership(ctx context.Context, userID, rosterID string) (persistence.Membership, error) {
	if userID == "" || rosterID == "" {
		return persistence.Membership{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx,
		"SELECT "+membershipColumns+" FROM memberships WHERE user_id = ? AND roster_id = ?",
		userID, rosterID)
	return r.scanMembership(row)
}

// ListMembershipsForRoster returns the roster's memberships ordered by user.
func (r *MembershipRepository) ListMembershipsForRoster(ctx context.Context, rosterID string) ([]persistence.Membership, error) {
	return r.list(ctx, "SELECT "+membershipColumns+" FROM memberships WHERE roster_id = ? ORDER BY user_id ASC", rosterID)
}

// ListMembershipsForUser returns the user's memberships ordered by roster.
func (r *MembershipRepository) ListMembershipsForUser(ctx context.Context, userID string) ([]persistence.Membership, error) {
	return r.list(ctx, "SELECT "+membershipColumns+" FROM memberships WHERE user_id = ? ORDER BY roster_id ASC", userID)
}

// DeleteMembership removes the membership for the user and roster pair.
func (r *MembershipRepository) DeleteMembership(ctx context.Context, userID, rosterID string) error {
	result, err := r.helper.Exec(ctx,
		"DELETE FROM memberships WHERE user_id = ? AND roster_id = ?",
		userID, rosterID)
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

func (r *MembershipRepository) list(ctx context.Context, query string, arg string) ([]persistence.Membership, error) {
	rows, err := r.helper.Query(ctx, query, arg)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var memberships []persistence.Membership
	for rows.Next() {
		membership, err := r.scanMembershipRow(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, membership)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return memberships, nil
}

func (r *MembershipRepository) scanMembership(row *sql.Row) (persistence.Membership, error) {
	return r.scanMembershipRow(row)
}

func (r *MembershipRepository) scanMembershipRow(scanner rowScanner) (persistence.Membership, error) {
	var membership persistence.Membership
	var createdAtStr, updatedAtStr string

	err := scanner.Scan(
		&membership.UserID,
		&membership.RosterID,
		&membership.Admin,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Membership{}, r.mapper.MapError(err)
	}

	if membership.CreatedAt, err = parseTimestamp(createdAtStr); err != nil {
		return persistence.Membership{}, err
	}
	if membership.UpdatedAt, err = parseTimestamp(updatedAtStr); err != nil {
		return persistence.Membership{}, err
	}
	return membership, nil
}
