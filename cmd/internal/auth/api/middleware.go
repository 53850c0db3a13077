package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prroha/fullstack-starter-sub003/cmd/internal/account"
	"github.com/prroha/fullstack-starter-sub003/cmd/internal/auth/token"
)

// Gate denial codes. These are contract strings: clients branch on them,
// so they never change spelling.
const (
	CodeAuthRequired      = "AUTH_REQUIRED"
	CodeInvalidAuthFormat = "INVALID_AUTH_FORMAT"
	CodeTokenMissing      = "TOKEN_MISSING"
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeUserNotFound      = "USER_NOT_FOUND"
	CodeUserDeactivated   = "USER_DEACTIVATED"
	CodeAdminRequired     = "ADMIN_REQUIRED"
	CodeServerError       = "SERVER_ERROR"
)

// Authenticated is what the gate attaches to the request context: the
// verified access claims and the account they name, freshly loaded.
type Authenticated struct {
	Claims  *token.Claims
	Account *account.Account
}

type gateCtxKey struct{}

// FromContext returns the gate's result for this request, if any.
func FromContext(ctx context.Context) (Authenticated, bool) {
	v, ok := ctx.Value(gateCtxKey{}).(Authenticated)
	return v, ok
}

func withAuthenticated(ctx context.Context, a Authenticated) context.Context {
	return context.WithValue(ctx, gateCtxKey{}, a)
}

// Gate authenticates requests from an access token and the account it
// names. The account is loaded on every request so deactivation takes
// effect mid-session; the session store is never consulted here, so the
// access path stays one DB read.
type Gate struct {
	log      *slog.Logger
	verifier *token.Issuer
	accounts account.Store
	cfg      Config
}

// NewGate wires the authentication gate.
func NewGate(log *slog.Logger, verifier *token.Issuer, accounts account.Store, cfg Config) (*Gate, error) {
	if verifier == nil || accounts == nil {
		return nil, errors.New("gate: nil verifier or account store")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gate{log: log, verifier: verifier, accounts: accounts, cfg: cfg.normalized()}, nil
}

// Require rejects unauthenticated requests and otherwise runs next with
// the Authenticated result attached to the context.
func (g *Gate) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, denial := g.authenticate(r)
		if denial != nil {
			g.deny(w, denial)
			return
		}
		next(w, r.WithContext(withAuthenticated(r.Context(), auth)))
	}
}

// RequireAdmin is Require plus a role check.
func (g *Gate) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, denial := g.authenticate(r)
		if denial != nil {
			g.deny(w, denial)
			return
		}
		if auth.Account.Role != account.RoleAdmin {
			g.deny(w, &gateDenial{status: http.StatusForbidden, code: CodeAdminRequired, msg: "admin role required"})
			return
		}
		next(w, r.WithContext(withAuthenticated(r.Context(), auth)))
	}
}

// Optional runs the same machine but proceeds unauthenticated on any
// failure; handlers distinguish the two via FromContext.
func (g *Gate) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, denial := g.authenticate(r)
		if denial != nil {
			next(w, r)
			return
		}
		next(w, r.WithContext(withAuthenticated(r.Context(), auth)))
	}
}

type gateDenial struct {
	status int
	code   string
	msg    string
}

func (g *Gate) authenticate(r *http.Request) (Authenticated, *gateDenial) {
	raw, denial := g.extractToken(r)
	if denial != nil {
		return Authenticated{}, denial
	}

	claims, err := g.verifier.Verify(raw, token.ClassAccess, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			return Authenticated{}, &gateDenial{status: http.StatusUnauthorized, code: CodeTokenExpired, msg: "access token expired"}
		case errors.Is(err, token.ErrWrongClass):
			// A verifiable token of the wrong class is a misuse signal,
			// not ordinary staleness.
			tokenWrongClassTotal.Inc()
			g.log.Warn("auth.gate.wrong_class", "path", r.URL.Path)
			return Authenticated{}, &gateDenial{status: http.StatusUnauthorized, code: CodeInvalidToken, msg: "invalid access token"}
		default:
			return Authenticated{}, &gateDenial{status: http.StatusUnauthorized, code: CodeInvalidToken, msg: "invalid access token"}
		}
	}

	acct, err := g.accounts.GetByID(r.Context(), claims.AccountID())
	if err != nil {
		if account.IsNotFound(err) {
			return Authenticated{}, &gateDenial{status: http.StatusUnauthorized, code: CodeUserNotFound, msg: "account not found"}
		}
		g.log.Error("auth.gate.account_lookup.fail", "err", err)
		return Authenticated{}, &gateDenial{status: http.StatusServiceUnavailable, code: CodeServerError, msg: "account lookup failed"}
	}
	if !acct.IsActive {
		return Authenticated{}, &gateDenial{status: http.StatusForbidden, code: CodeUserDeactivated, msg: "account deactivated"}
	}

	return Authenticated{Claims: claims, Account: acct}, nil
}

// extractToken prefers the access cookie, then the Authorization header.
func (g *Gate) extractToken(r *http.Request) (string, *gateDenial) {
	if c, err := r.Cookie(g.cfg.AccessCookieName); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v, nil
		}
	}

	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", &gateDenial{status: http.StatusUnauthorized, code: CodeAuthRequired, msg: "authentication required"}
	}
	sp := strings.IndexByte(raw, ' ')
	if sp < 0 {
		if strings.EqualFold(raw, "Bearer") {
			return "", &gateDenial{status: http.StatusUnauthorized, code: CodeTokenMissing, msg: "bearer token is empty"}
		}
		return "", &gateDenial{status: http.StatusUnauthorized, code: CodeInvalidAuthFormat, msg: "authorization header must use the Bearer scheme"}
	}
	scheme, rest := raw[:sp], strings.TrimSpace(raw[sp+1:])
	if !strings.EqualFold(scheme, "Bearer") {
		return "", &gateDenial{status: http.StatusUnauthorized, code: CodeInvalidAuthFormat, msg: "authorization header must use the Bearer scheme"}
	}
	if rest == "" {
		return "", &gateDenial{status: http.StatusUnauthorized, code: CodeTokenMissing, msg: "bearer token is empty"}
	}
	return rest, nil
}

// deny writes the gate's error shape directly rather than going through
// the handlers' JSON path, so gate responses cannot drift with it.
func (g *Gate) deny(w http.ResponseWriter, d *gateDenial) {
	gateDeniedTotal.WithLabelValues(d.code).Inc()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(d.status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: apiError{Code: d.code, Message: d.msg}})
}
