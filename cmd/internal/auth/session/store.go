package session

import (
	"context"
	"time"
)

// Queries is the set of session store operations. A Postgres
// implementation backs production; an in-memory one serves tests and
// DB-less development.
//
// Token-keyed operations take the storage hash, never the raw token;
// hashing happens in the service layer.
type Queries interface {
	// Create inserts a new session row.
	Create(ctx context.Context, p CreateParams) (*Session, error)

	// FindByTokenHash returns the live session holding hash. Rows whose
	// expiry is at or before now are treated as absent even when the
	// sweeper has not removed them yet.
	FindByTokenHash(ctx context.Context, hash string, now time.Time) (*Session, error)

	// Touch updates last_active_at on the session holding hash.
	Touch(ctx context.Context, hash string, now time.Time) error

	// Rotate replaces oldHash with newHash and moves the expiry window, in
	// one update keyed by oldHash. ErrNotFound means the old token was
	// already rotated away (or never existed) and nothing changed; callers
	// treat that as a replayed token.
	Rotate(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (*Session, error)

	// ListByAccount returns the account's sessions, most recently active
	// first.
	ListByAccount(ctx context.Context, accountID string) ([]Session, error)

	// DeleteByPublicID removes one session owned by accountID. A session
	// owned by someone else fails ErrForbidden and is left intact; an
	// unknown id fails ErrNotFound.
	DeleteByPublicID(ctx context.Context, accountID, publicID string) error

	// DeleteByTokenHash removes the session holding hash, reporting
	// ErrNotFound when there is none.
	DeleteByTokenHash(ctx context.Context, hash string) error

	// DeleteOthers removes every session of the account except the one
	// holding keepHash, returning how many were deleted.
	DeleteOthers(ctx context.Context, accountID, keepHash string) (int64, error)

	// DeleteAllForAccount removes every session of the account.
	DeleteAllForAccount(ctx context.Context, accountID string) (int64, error)

	// EvictOverCap deletes the account's least recently active sessions
	// until at most keep remain, returning how many were deleted.
	EvictOverCap(ctx context.Context, accountID string, keep int) (int64, error)

	// SweepExpired deletes up to limit rows whose expiry is at or before
	// now. A second sweep over the same data deletes zero rows.
	SweepExpired(ctx context.Context, now time.Time, limit int) (int64, error)

	// LockAccount serializes writers for one account for the duration of
	// the surrounding transaction. Implementations without transactions
	// may make it a no-op as long as InTx itself serializes.
	LockAccount(ctx context.Context, accountID string) error
}

// Store adds transaction control on top of Queries. InTx runs fn with a
// Queries bound to one transaction, committing when fn returns nil and
// rolling back otherwise. Implementations may retry fn after transient
// serialization failures, so fn must tolerate running more than once.
type Store interface {
	Queries

	InTx(ctx context.Context, fn func(q Queries) error) error
}
