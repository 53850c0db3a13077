package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads account rows from PostgreSQL.
//
// The pgx pool is owned by the caller; this store must NOT close it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("account: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// GetByID returns the account row regardless of active state.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Account, error) {
	const op = "account.GetByID"

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing id"}
	}

	var (
		out  Account
		name *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, role, is_active, created_at
		   FROM accounts
		  WHERE id = $1`,
		id,
	).Scan(&out.ID, &out.Email, &name, &out.Role, &out.IsActive, &out.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, OpError{Op: op, Kind: ErrNotFound}
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out.Name = name
	return &out, nil
}

// GetAuthByEmail looks up login credentials by normalized email.
func (s *PostgresStore) GetAuthByEmail(ctx context.Context, email string) (*Auth, error) {
	const op = "account.GetAuthByEmail"

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	norm := NormalizeEmail(email)
	if norm == "" {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing email"}
	}

	var (
		out  Auth
		name *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, role, is_active, created_at, password_hash
		   FROM accounts
		  WHERE email_norm = $1`,
		norm,
	).Scan(&out.ID, &out.Email, &name, &out.Role, &out.IsActive, &out.CreatedAt, &out.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, OpError{Op: op, Kind: ErrNotFound}
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out.Name = name
	return &out, nil
}
