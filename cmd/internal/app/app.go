// Package app wires the server runtime: config, logging, the database
// pool, and the auth HTTP surface.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prroha/fullstack-starter-sub003/cmd/internal/account"
	"github.com/prroha/fullstack-starter-sub003/cmd/internal/auth/api"
	"github.com/prroha/fullstack-starter-sub003/cmd/internal/auth/session"
	"github.com/prroha/fullstack-starter-sub003/cmd/internal/auth/token"
	sectoken "github.com/prroha/fullstack-starter-sub003/cmd/security/token"
)

// Store is the app-level lifecycle handle for whatever persistence mode
// the process runs in; it exists so DB resources close gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore backs the DB-less mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// App owns the HTTP server wiring and the auth handler's dependencies.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	auth *api.Handler
}

// New constructs a fully wired App from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	issuer, err := token.NewIssuer(token.Config{
		MasterSecret:    []byte(strings.TrimSpace(cfg.AuthMasterSecret)),
		Issuer:          cfg.AuthIssuer,
		AccessLifetime:  cfg.AccessTokenTTL(),
		RefreshLifetime: cfg.RefreshTokenTTL(),
	})
	if err != nil {
		return nil, err
	}

	hasher, err := sectoken.NewHasher([]byte(strings.TrimSpace(cfg.SessionTokenHashKey)))
	if err != nil {
		return nil, err
	}

	st, pool, dbEnabled, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	authCfg := api.Config{
		TrustProxy:        cfg.TrustProxy,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		AccessCookieName:  cfg.AccessCookieName,
		RefreshCookieName: cfg.RefreshCookieName,
		CSRFCookieName:    cfg.CSRFCookieName,
		CSRFHeaderName:    cfg.CSRFHeaderName,
		CookieDomain:      cfg.CookieDomain,
		CookieSecure:      cfg.CookieSecure,
	}

	deps := api.Deps{DBEnabled: dbEnabled}
	if dbEnabled {
		accounts, err := account.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}

		sessions, err := session.NewService(
			session.Config{MaxSessionsPerAccount: cfg.MaxSessionsPerAccount},
			session.NewPostgresStore(pool),
			issuer,
			hasher,
		)
		if err != nil {
			pool.Close()
			return nil, err
		}

		gate, err := api.NewGate(log, issuer, accounts, authCfg)
		if err != nil {
			pool.Close()
			return nil, err
		}

		deps.Gate = gate
		deps.Accounts = accounts
		deps.Sessions = sessions
		deps.Audit = api.NewAuditor(log, pool)
	}

	auth, err := api.NewHandler(log, authCfg, deps)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		dbPool:    pool,
		dbEnabled: dbEnabled,
		auth:      auth,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or a
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.auth)

	handler := WithRequestLogging(
		WithSecurityHeaders(
			WithCORS(
				WithRecovery(mux, a.log),
				a.cfg, a.log,
			),
		),
		a.log,
	)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.HTTPReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.HTTPReadTimeout, 10*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.HTTPWriteTimeout, 20*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.HTTPIdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.HTTPMaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"url", runtimeBaseURL(a.cfg.HTTPAddr),
		"db_enabled", a.dbEnabled,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between Postgres-backed persistence and the DB-less
// degraded mode, in which session endpoints answer 503.
func newStore(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Info("db.disabled.auth_unavailable")
		return nopStore{}, nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, err
	}

	log.Info("db.enabled.postgres")
	return dbStore{pool: pool}, pool, true, nil
}

// runtimeBaseURL renders the listen address as a clickable URL for the
// startup log; wildcard binds map to the loopback address.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
