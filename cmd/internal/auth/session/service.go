package session

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prroha/fullstack-starter-sub003/cmd/internal/auth/token"
	sectoken "github.com/prroha/fullstack-starter-sub003/cmd/security/token"
)

// maxRawTokenLen is a sanity bound on tokens accepted from the outside;
// anything longer is treated as unknown without touching the store.
const maxRawTokenLen = 4096

// Service composes the token issuer and the session store into the
// lifecycle operations handlers call. Methods take the current time
// explicitly so expiry behavior is deterministic under test.
type Service struct {
	cfg    Config
	tokens *token.Issuer
	store  Store
	hasher *sectoken.Hasher
}

// NewService wires a session service. All collaborators are required.
func NewService(cfg Config, store Store, tokens *token.Issuer, hasher *sectoken.Hasher) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if store == nil || tokens == nil || hasher == nil {
		return nil, ErrConfig
	}
	return &Service{cfg: cfg, tokens: tokens, store: store, hasher: hasher}, nil
}

// LoginParams describes an already-authenticated login. Credential
// checking happens before this package is involved.
type LoginParams struct {
	AccountID string
	Email     string

	// UserAgent and IP describe the client for session listings.
	UserAgent string
	IP        *net.IP

	// DeviceName optionally overrides the classified device label, e.g. a
	// client-chosen "work laptop".
	DeviceName string
}

// Issued is the outcome of a login or refresh: the visible session id and
// the freshly minted token pair.
type Issued struct {
	SessionID string
	AccountID string
	Pair      token.Pair
}

// Login records a session for the account and mints its token pair. The
// create-then-evict sequence runs under the account lock so concurrent
// logins cannot overshoot the session cap. Passing a Queries joins the
// caller's transaction; passing nil runs one here.
func (s *Service) Login(ctx context.Context, q Queries, p LoginParams, now time.Time) (*Issued, error) {
	if p.AccountID == "" {
		return nil, errors.New("login: missing account id")
	}

	publicID := uuid.NewString()
	pair, err := s.tokens.IssuePair(token.AccountClaims{
		ID:        p.AccountID,
		Email:     p.Email,
		SessionID: publicID,
	}, now)
	if err != nil {
		return nil, err
	}

	dev := ClassifyDevice(p.UserAgent)
	if name := strings.TrimSpace(p.DeviceName); name != "" {
		dev.Name = name
	}
	var uaPtr *string
	if rawUA := strings.TrimSpace(p.UserAgent); rawUA != "" {
		uaPtr = &rawUA
	}

	params := CreateParams{
		PublicID:         publicID,
		AccountID:        p.AccountID,
		RefreshTokenHash: s.hasher.Hash(pair.Refresh),
		Device:           dev,
		UserAgent:        uaPtr,
		IP:               p.IP,
		Now:              now,
		ExpiresAt:        pair.RefreshExpiresAt,
	}

	// evicted is reset inside the closure: InTx may retry it, and only the
	// final successful run counts.
	var evicted int64
	create := func(q Queries) error {
		evicted = 0
		if err := q.LockAccount(ctx, p.AccountID); err != nil {
			return err
		}
		if _, err := q.Create(ctx, params); err != nil {
			return err
		}
		n, err := q.EvictOverCap(ctx, p.AccountID, s.cfg.MaxSessionsPerAccount)
		if err != nil {
			return err
		}
		evicted = n
		return nil
	}

	if q != nil {
		err = create(q)
	} else {
		err = s.store.InTx(ctx, create)
	}
	if err != nil {
		return nil, err
	}
	if evicted > 0 {
		evictedTotal.Add(float64(evicted))
	}

	return &Issued{SessionID: publicID, AccountID: p.AccountID, Pair: pair}, nil
}

// Refresh rotates a refresh token: verify the token itself, find the live
// session holding its hash, mint a fresh pair, rotate the row to the new
// hash, and touch activity.
//
// A token that was already rotated away verifies fine but no longer
// matches a row; that fails ErrNotFound without extending anything, which
// is the whole replay defense. Token-level failures propagate unchanged
// (token.ErrExpired, token.ErrMalformed, token.ErrWrongClass).
func (s *Service) Refresh(ctx context.Context, rawRefresh string, now time.Time) (*Issued, error) {
	rawRefresh = strings.TrimSpace(rawRefresh)
	if rawRefresh == "" || len(rawRefresh) > maxRawTokenLen {
		return nil, ErrNotFound
	}

	claims, err := s.tokens.Verify(rawRefresh, token.ClassRefresh, now)
	if err != nil {
		return nil, err
	}

	oldHash := s.hasher.Hash(rawRefresh)
	sess, err := s.store.FindByTokenHash(ctx, oldHash, now)
	if err != nil {
		return nil, err
	}
	if sess.AccountID != claims.AccountID() {
		// The token verifies but names a different account than the row.
		// Treat it as unknown rather than leaking whose row it hit.
		return nil, ErrNotFound
	}

	pair, err := s.tokens.IssuePair(token.AccountClaims{
		ID:        sess.AccountID,
		Email:     claims.Email,
		SessionID: sess.PublicID,
	}, now)
	if err != nil {
		return nil, err
	}

	rotated, err := s.store.Rotate(ctx, oldHash, s.hasher.Hash(pair.Refresh), pair.RefreshExpiresAt)
	if err != nil {
		return nil, err
	}
	if err := s.store.Touch(ctx, rotated.RefreshTokenHash, now); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return &Issued{SessionID: rotated.PublicID, AccountID: rotated.AccountID, Pair: pair}, nil
}

// Logout deletes the session holding the token's hash. Unknown, malformed
// and already-logged-out tokens are a no-op: logout is idempotent and
// never fails the client for a stale token.
func (s *Service) Logout(ctx context.Context, rawRefresh string) error {
	rawRefresh = strings.TrimSpace(rawRefresh)
	if rawRefresh == "" || len(rawRefresh) > maxRawTokenLen {
		return nil
	}
	err := s.store.DeleteByTokenHash(ctx, s.hasher.Hash(rawRefresh))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// RevokeOne deletes one of the account's sessions by its visible id.
// Cross-account attempts fail ErrForbidden and leave the row intact.
func (s *Service) RevokeOne(ctx context.Context, accountID, publicID string) error {
	if strings.TrimSpace(publicID) == "" {
		return ErrNotFound
	}
	return s.store.DeleteByPublicID(ctx, accountID, publicID)
}

// RevokeOthers deletes every session of the account except the one the
// caller is on, identified by its current refresh token. The current
// token must name a live session of this account or nothing is deleted.
func (s *Service) RevokeOthers(ctx context.Context, accountID, currentRaw string, now time.Time) (int64, error) {
	currentRaw = strings.TrimSpace(currentRaw)
	if currentRaw == "" || len(currentRaw) > maxRawTokenLen {
		return 0, ErrNotFound
	}
	keep := s.hasher.Hash(currentRaw)
	sess, err := s.store.FindByTokenHash(ctx, keep, now)
	if err != nil {
		return 0, err
	}
	if sess.AccountID != accountID {
		return 0, ErrForbidden
	}
	return s.store.DeleteOthers(ctx, accountID, keep)
}

// RevokeAllForAccount deletes every session of the account, e.g. after a
// password change or deactivation.
func (s *Service) RevokeAllForAccount(ctx context.Context, accountID string) (int64, error) {
	return s.store.DeleteAllForAccount(ctx, accountID)
}

// List returns the account's sessions, most recently active first.
func (s *Service) List(ctx context.Context, accountID string) ([]Session, error) {
	return s.store.ListByAccount(ctx, accountID)
}

// CurrentSessionID reports which listed session the given claims are on,
// matching by the visible id carried in the token.
func CurrentSessionID(claims *token.Claims) string {
	if claims == nil {
		return ""
	}
	return claims.SessionID
}

// SweepExpired removes expired rows in batches until a short batch or
// cancellation. Safe to run while the app serves traffic and safe to run
// twice: rows already gone simply no longer match.
func (s *Service) SweepExpired(ctx context.Context, now time.Time, batchSize int) (int64, error) {
	if batchSize < 1 {
		batchSize = DefaultSweepBatchSize
	}
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.store.SweepExpired(ctx, now, batchSize)
		if err != nil {
			return total, err
		}
		if n > 0 {
			sweptTotal.Add(float64(n))
		}
		total += n
		if n < int64(batchSize) {
			return total, nil
		}
	}
}
