package session

import "errors"

var (
	// ErrNotFound is returned when no live session matches a lookup:
	// unknown token hash, unknown visible id, expired row, or a token whose
	// hash was already rotated away. Callers must not distinguish those
	// cases to clients.
	ErrNotFound = errors.New("session not found")

	// ErrForbidden is returned when the session exists but belongs to a
	// different account. The row is left intact.
	ErrForbidden = errors.New("session belongs to another account")

	// ErrConflict is returned when a uniqueness constraint is violated,
	// in practice two rows racing for the same refresh token hash.
	ErrConflict = errors.New("session conflict")

	// ErrConfig is returned by NewService for unusable configuration or
	// missing collaborators.
	ErrConfig = errors.New("invalid session config")
)
