package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a uniqueness constraint is violated.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a CHECK constraint fails.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced record is missing
	// or still referenced.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrConflict is returned by conditional updates when the record changed
	// since the caller last read it.
	ErrConflict = errors.New("persistence: conflicting update")
)
