package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/oncall-scheduler/internal/persistence"
)

const userColumns = "id, first_name, last_name, email, phone, active, calendar_access_token, reminders_enabled, change_notifications_enabled, created_at, updated_at"

// UserRepository implements persistence.UserRepository using SQLite.
type UserRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateUser inserts a new user.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.helper.Exec(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Phone,
		user.Active,
		user.CalendarAccessToken,
		user.RemindersEnabled,
		user.ChangeNotificationsEnabled,
		formatTimestamp(user.CreatedAt),
		formatTimestamp(user.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateUser replaces a stored user's attributes.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" {
		return persistence.ErrNotFound
	}

	query := `
		UPDATE users
		SET first_name = ?, last_name = ?, email = ?, phone = ?, active = ?,
			calendar_access_token = ?, reminders_enabled = ?, change_notifications_enabled = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.helper.Exec(ctx, query,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Phone,
		user.Active,
		user.CalendarAccessToken,
		user.RemindersEnabled,
		user.ChangeNotificationsEnabled,
		formatTimestamp(user.UpdatedAt),
		user.ID,
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

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return r.scanUser(row)
}

// GetUserByCalendarToken retrieves the user holding the exact token value.
func (r *UserRepository) GetUserByCalendarToken(ctx context.Context, token string) (persistence.User, error) {
	if token == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE calendar_access_token = ?", token)
	return r.scanUser(row)
}

// CalendarTokenInUse reports whether any user already holds the token.
func (r *UserRepository) CalendarTokenInUse(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	var count int
	err := r.helper.QueryRow(ctx, "SELECT COUNT(*) FROM users WHERE calendar_access_token = ?", token).Scan(&count)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	return count > 0, nil
}

// ListUsers returns all users ordered by last name, first name, then ID.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := r.helper.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY last_name ASC, first_name ASC, id ASC")
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := r.scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return users, nil
}

// DeleteUser removes a user and their memberships. Users still referenced
// by assignments fail with ErrForeignKeyViolation.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var assignmentCount int
		if err := r.helper.QueryRowTx(tx, "SELECT COUNT(*) FROM assignments WHERE user_id = ?", id).Scan(&assignmentCount); err != nil {
			return r.mapper.MapError(err)
		}
		if assignmentCount > 0 {
			return persistence.ErrForeignKeyViolation
		}

		if _, err := r.helper.ExecTx(tx, "DELETE FROM memberships WHERE user_id = ?", id); err != nil {
			return r.mapper.MapError(err)
		}

		result, err := r.helper.ExecTx(tx, "DELETE FROM users WHERE id = ?", id)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scanUser(row *sql.Row) (persistence.User, error) {
	return r.scanUserRow(row)
}

func (r *UserRepository) scanUserRow(scanner rowScanner) (persistence.User, error) {
	var user persistence.User
	var token sql.NullString
	var createdAtStr, updatedAtStr string

	err := scanner.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Phone,
		&user.Active,
		&token,
		&user.RemindersEnabled,
		&user.ChangeNotificationsEnabled,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}

	if token.Valid {
		user.CalendarAccessToken = &token.String
	}
	if user.CreatedAt, err = parseTimestamp(createdAtStr); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTimestamp(updatedAtStr); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}
