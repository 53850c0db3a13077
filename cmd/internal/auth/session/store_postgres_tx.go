package session

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// txAttempts bounds retries of a transaction that failed with a
// serialization or deadlock error.
const txAttempts = 3

// InTx runs fn inside a REPEATABLE READ transaction and retries it on
// serialization failures, so fn must tolerate running more than once.
// Calling InTx on an already transaction-scoped store just runs fn.
func (s *PostgresStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	if s.pool == nil {
		return fn(s)
	}

	var lastErr error
	for attempt := 0; attempt < txAttempts; attempt++ {
		err := s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryableTxError(err) || ctx.Err() != nil {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&PostgresStore{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// LockAccount takes a transaction-scoped advisory lock keyed by the
// account id, serializing the create-then-evict sequence across logins of
// the same account. Outside a transaction the lock would outlive the
// request, so the pool-backed store refuses the call.
func (s *PostgresStore) LockAccount(ctx context.Context, accountID string) error {
	if s.pool != nil {
		return errors.New("lock account: requires a transaction")
	}
	_, err := s.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, accountID)
	return err
}

// 40001 serialization_failure, 40P01 deadlock_detected.
func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
