package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations lists schema changes in application order. Applied versions
// are recorded in schema_migrations and never rerun.
var migrations = []struct {
	version int
	name    string
	stmts   []string
}{
	{
		version: 1,
		name:    "create users",
		stmts: []string{
			`CREATE TABLE users (
				id TEXT PRIMARY KEY,
				first_name TEXT NOT NULL,
				last_name TEXT NOT NULL,
				email TEXT NOT NULL UNIQUE COLLATE NOCASE,
				phone TEXT NOT NULL DEFAULT '',
				active INTEGER NOT NULL DEFAULT 1,
				calendar_access_token TEXT UNIQUE,
				reminders_enabled INTEGER NOT NULL DEFAULT 1,
				change_notifications_enabled INTEGER NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	},
	{
		version: 2,
		name:    "create rosters",
		stmts: []string{
			`CREATE TABLE rosters (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL UNIQUE COLLATE NOCASE,
				fallback_user_id TEXT REFERENCES users(id),
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	},
	{
		version: 3,
		name:    "create memberships",
		stmts: []string{
			`CREATE TABLE memberships (
				user_id TEXT NOT NULL REFERENCES users(id),
				roster_id TEXT NOT NULL REFERENCES rosters(id),
				admin INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				PRIMARY KEY (user_id, roster_id)
			)`,
			`CREATE INDEX idx_memberships_roster ON memberships(roster_id)`,
		},
	},
	{
		version: 4,
		name:    "create assignments",
		stmts: []string{
			`CREATE TABLE assignments (
				id TEXT PRIMARY KEY,
				roster_id TEXT NOT NULL REFERENCES rosters(id),
				user_id TEXT NOT NULL REFERENCES users(id),
				start_date TEXT NOT NULL,
				end_date TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				CHECK (start_date <= end_date)
			)`,
			`CREATE INDEX idx_assignments_roster_dates ON assignments(roster_id, start_date, end_date)`,
			`CREATE INDEX idx_assignments_user ON assignments(user_id, start_date)`,
		},
	},
}

// Migrate brings the schema up to the latest version. It is safe to call on
// every startup.
func Migrate(ctx context.Context, pool *ConnectionPool) error {
	if _, err := pool.DB().ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := pool.DB().QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("failed to iterate schema_migrations: %w", err)
	}
	_ = rows.Close()

	for _, migration := range migrations {
		if applied[migration.version] {
			continue
		}
		migration := migration
		err := pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, stmt := range migration.stmts {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("migration %d (%s): %w", migration.version, migration.name, err)
				}
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", migration.version, migration.name); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}
