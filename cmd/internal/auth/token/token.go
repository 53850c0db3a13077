package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// MinMasterSecretBytes is the smallest master secret NewIssuer accepts.
const MinMasterSecretBytes = 32

// Config is the issuer's configuration surface. The master secret is
// injected here by the caller; this package never reads the environment.
type Config struct {
	MasterSecret    []byte
	Issuer          string
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
}

// DefaultConfig returns the lifetime defaults. MasterSecret and Issuer
// must be filled in by the caller.
func DefaultConfig() Config {
	return Config{
		AccessLifetime:  DefaultAccessLifetime,
		RefreshLifetime: DefaultRefreshLifetime,
	}
}

// AccountClaims is the issuance input: who the token is for.
type AccountClaims struct {
	ID        string
	Email     string
	SessionID string
}

// Claims is the verified payload of a signed token. Subject carries the
// account identifier.
type Claims struct {
	Email     string `json:"email"`
	Class     Class  `json:"class"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// AccountID returns the subject account identifier.
func (c *Claims) AccountID() string { return c.Subject }

// Pair is the access/refresh token pair minted by a login or refresh.
// ExpiresIn is the access token lifetime in seconds, for client display.
type Pair struct {
	Access           string
	Refresh          string
	ExpiresIn        int64
	RefreshExpiresAt time.Time
}

// Issuer mints and verifies tokens for both classes. Both class keys are
// derived once at construction; the master secret itself is not retained.
type Issuer struct {
	issuer          string
	accessLifetime  time.Duration
	refreshLifetime time.Duration
	accessKey       []byte
	refreshKey      []byte
}

// NewIssuer validates cfg and derives the per-class signing keys.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.MasterSecret) < MinMasterSecretBytes {
		return nil, ErrSecretTooShort
	}
	if cfg.AccessLifetime <= 0 || cfg.RefreshLifetime <= 0 {
		return nil, errors.New("token: lifetimes must be positive")
	}
	return &Issuer{
		issuer:          cfg.Issuer,
		accessLifetime:  cfg.AccessLifetime,
		refreshLifetime: cfg.RefreshLifetime,
		accessKey:       DeriveKey(cfg.MasterSecret, ClassAccess),
		refreshKey:      DeriveKey(cfg.MasterSecret, ClassRefresh),
	}, nil
}

// AccessLifetime returns the configured access token lifetime.
func (i *Issuer) AccessLifetime() time.Duration { return i.accessLifetime }

// RefreshLifetime returns the configured refresh token lifetime.
func (i *Issuer) RefreshLifetime() time.Duration { return i.refreshLifetime }

func (i *Issuer) key(class Class) []byte {
	switch class {
	case ClassAccess:
		return i.accessKey
	case ClassRefresh:
		return i.refreshKey
	default:
		return nil
	}
}

func (i *Issuer) lifetime(class Class) time.Duration {
	if class == ClassRefresh {
		return i.refreshLifetime
	}
	return i.accessLifetime
}

// Issue signs a token of the given class for the account, expiring after
// the class lifetime counted from now. Every token carries a fresh ULID
// as its id, so two issuances never produce the same string even within
// one clock second; refresh rotation depends on that.
func (i *Issuer) Issue(ac AccountClaims, class Class, now time.Time) (string, error) {
	key := i.key(class)
	if key == nil {
		return "", fmt.Errorf("issue: unknown token class %q", class)
	}
	claims := Claims{
		Email:     ac.Email,
		Class:     class,
		SessionID: ac.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   ac.ID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.lifetime(class))),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(key)
}

// IssuePair mints an access/refresh pair carrying the same account claims.
func (i *Issuer) IssuePair(ac AccountClaims, now time.Time) (Pair, error) {
	access, err := i.Issue(ac, ClassAccess, now)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.Issue(ac, ClassRefresh, now)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		Access:           access,
		Refresh:          refresh,
		ExpiresIn:        int64(i.accessLifetime / time.Second),
		RefreshExpiresAt: now.Add(i.refreshLifetime).UTC(),
	}, nil
}

// Verify checks a token against the expected class's key and reports one of
// ErrExpired, ErrMalformed or ErrWrongClass on failure. A class mismatch is
// detected either by the signature failing against the expected key while
// the embedded class differs, or by a verified token whose class field does
// not match. Validation is evaluated against the supplied now.
func (i *Issuer) Verify(tokenStr string, expected Class, now time.Time) (*Claims, error) {
	key := i.key(expected)
	if key == nil {
		return nil, fmt.Errorf("verify: unknown token class %q", expected)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	parser := jwt.NewParser(opts...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return key, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		// A token minted for the other class fails the signature check
		// against this class's key. Peek at the unverified class so the
		// caller can tell confusion from garbage.
		if cl, ok := unverifiedClass(tokenStr); ok && cl != "" && cl != expected {
			return nil, ErrWrongClass
		}
		return nil, ErrMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	default:
		return nil, ErrMalformed
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrMalformed
	}
	if claims.Class != expected {
		return nil, ErrWrongClass
	}
	return claims, nil
}

// unverifiedClass decodes the class claim without signature verification.
// Only used to pick the right error kind; never to accept a token.
func unverifiedClass(tokenStr string) (Class, bool) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return "", false
	}
	return claims.Class, true
}
