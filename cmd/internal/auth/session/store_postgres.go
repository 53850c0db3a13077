package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// pgQuerier is the subset of pgx shared by pools and transactions, so the
// same query code serves both paths.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore implements Store over the auth_sessions table.
type PostgresStore struct {
	db   pgQuerier
	pool *pgxpool.Pool // nil when scoped to a transaction
}

// NewPostgresStore returns a pool-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool, pool: pool}
}

const sessionColumns = `
		id, public_id, account_id, refresh_token_hash,
		browser, os, device_name, user_agent, ip::text,
		created_at, last_active_at, expires_at`

func (s *PostgresStore) Create(ctx context.Context, p CreateParams) (*Session, error) {
	id := ulid.Make().String()

	var ip any
	if p.IP != nil && len(*p.IP) > 0 {
		ip = *p.IP
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO auth_sessions (
			id, public_id, account_id, refresh_token_hash,
			browser, os, device_name, user_agent, ip,
			created_at, last_active_at, expires_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $10, $11
		)
	`, id, p.PublicID, p.AccountID, p.RefreshTokenHash,
		nullIfEmpty(p.Device.Browser), nullIfEmpty(p.Device.OS), nullIfEmpty(p.Device.Name),
		p.UserAgent, ip, p.Now, p.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &Session{
		ID:               id,
		PublicID:         p.PublicID,
		AccountID:        p.AccountID,
		RefreshTokenHash: p.RefreshTokenHash,
		Device:           p.Device,
		UserAgent:        p.UserAgent,
		IP:               p.IP,
		CreatedAt:        p.Now,
		LastActiveAt:     p.Now,
		ExpiresAt:        p.ExpiresAt,
	}, nil
}

func (s *PostgresStore) FindByTokenHash(ctx context.Context, hash string, now time.Time) (*Session, error) {
	row := s.db.QueryRow(ctx, `
		SELECT`+sessionColumns+`
		FROM auth_sessions
		WHERE refresh_token_hash = $1
		  AND expires_at > $2
	`, hash, now)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find session by token hash: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) Touch(ctx context.Context, hash string, now time.Time) error {
	ct, err := s.db.Exec(ctx, `
		UPDATE auth_sessions
		SET last_active_at = $2
		WHERE refresh_token_hash = $1
	`, hash, now)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Rotate is the commit point of a refresh. Keying the update by the old
// hash makes concurrent rotations of the same token race safely: exactly
// one update matches, the loser sees zero rows and fails ErrNotFound.
func (s *PostgresStore) Rotate(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (*Session, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE auth_sessions
		SET refresh_token_hash = $2,
		    expires_at = $3
		WHERE refresh_token_hash = $1
		RETURNING`+sessionColumns+`
	`, oldHash, newHash, expiresAt)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("rotate session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) ListByAccount(ctx context.Context, accountID string) ([]Session, error) {
	rows, err := s.db.Query(ctx, `
		SELECT`+sessionColumns+`
		FROM auth_sessions
		WHERE account_id = $1
		ORDER BY last_active_at DESC, id DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		out = append(out, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteByPublicID(ctx context.Context, accountID, publicID string) error {
	// Ownership is checked before deleting so a cross-account attempt is
	// reported as ErrForbidden rather than silently treated as absent.
	var owner string
	err := s.db.QueryRow(ctx, `
		SELECT account_id
		FROM auth_sessions
		WHERE public_id = $1
	`, publicID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete session by public id: %w", err)
	}
	if owner != accountID {
		return ErrForbidden
	}

	// account_id repeats in the predicate so a racing ownership change can
	// never turn this into a cross-account delete.
	ct, err := s.db.Exec(ctx, `
		DELETE FROM auth_sessions
		WHERE public_id = $1
		  AND account_id = $2
	`, publicID, accountID)
	if err != nil {
		return fmt.Errorf("delete session by public id: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteByTokenHash(ctx context.Context, hash string) error {
	ct, err := s.db.Exec(ctx, `
		DELETE FROM auth_sessions
		WHERE refresh_token_hash = $1
	`, hash)
	if err != nil {
		return fmt.Errorf("delete session by token hash: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteOthers(ctx context.Context, accountID, keepHash string) (int64, error) {
	ct, err := s.db.Exec(ctx, `
		DELETE FROM auth_sessions
		WHERE account_id = $1
		  AND refresh_token_hash <> $2
	`, accountID, keepHash)
	if err != nil {
		return 0, fmt.Errorf("delete other sessions: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (s *PostgresStore) DeleteAllForAccount(ctx context.Context, accountID string) (int64, error) {
	ct, err := s.db.Exec(ctx, `
		DELETE FROM auth_sessions
		WHERE account_id = $1
	`, accountID)
	if err != nil {
		return 0, fmt.Errorf("delete account sessions: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (s *PostgresStore) EvictOverCap(ctx context.Context, accountID string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	ct, err := s.db.Exec(ctx, `
		DELETE FROM auth_sessions
		WHERE account_id = $1
		  AND id IN (
			SELECT id
			FROM auth_sessions
			WHERE account_id = $1
			ORDER BY last_active_at DESC, id DESC
			OFFSET $2
		  )
	`, accountID, keep)
	if err != nil {
		return 0, fmt.Errorf("evict sessions over cap: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (s *PostgresStore) SweepExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	if limit < 1 {
		limit = DefaultSweepBatchSize
	}
	ct, err := s.db.Exec(ctx, `
		DELETE FROM auth_sessions
		WHERE id IN (
			SELECT id
			FROM auth_sessions
			WHERE expires_at <= $1
			ORDER BY expires_at
			LIMIT $2
		)
	`, now, limit)
	if err != nil {
		return 0, fmt.Errorf("sweep expired sessions: %w", err)
	}
	return ct.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var (
		s       Session
		browser *string
		osName  *string
		device  *string
		ipText  *string
	)
	err := row.Scan(
		&s.ID, &s.PublicID, &s.AccountID, &s.RefreshTokenHash,
		&browser, &osName, &device, &s.UserAgent, &ipText,
		&s.CreatedAt, &s.LastActiveAt, &s.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	if browser != nil {
		s.Device.Browser = *browser
	}
	if osName != nil {
		s.Device.OS = *osName
	}
	if device != nil {
		s.Device.Name = *device
	}
	if ipText != nil {
		if parsed := net.ParseIP(strings.TrimSpace(*ipText)); parsed != nil {
			s.IP = &parsed
		}
	}
	return &s, nil
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
