package sqlite

import (
	"context"
)

// Storage bundles the SQLite-backed repositories behind one handle. It
// satisfies every repository interface in the persistence package.
type Storage struct {
	*UserRepository
	*RosterRepository
	*MembershipRepository
	*AssignmentRepository

	pool *ConnectionPool
}

// Open connects to the database at the given DSN and returns a Storage.
// Callers run Migrate before first use and Close on shutdown.
func Open(dsn string) (*Storage, error) {
	pool, err := NewConnectionPool(dsn)
	if err != nil {
		return nil, err
	}

	return &Storage{
		UserRepository:       NewUserRepository(pool),
		RosterRepository:     NewRosterRepository(pool),
		MembershipRepository: NewMembershipRepository(pool),
		AssignmentRepository: NewAssignmentRepository(pool),
		pool:                 pool,
	}, nil
}

// Migrate brings the schema up to the latest version.
func (s *Storage) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.pool)
}

// Ping tests the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
