package app

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prroha/fullstack-starter-sub003/cmd/internal/auth/session"
	"github.com/prroha/fullstack-starter-sub003/cmd/internal/auth/token"
	"github.com/prroha/fullstack-starter-sub003/cmd/internal/db/migrate"
	sectoken "github.com/prroha/fullstack-starter-sub003/cmd/security/token"
)

// Run is the entrypoint behind cmd/server. It returns an error instead
// of exiting so defers stay effective.
func Run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	log := NewLogger(cfg.LogLevel, cfg.LogFormat)

	a, err := New(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.Run(ctx)
}

// RunSweeper is the entrypoint behind cmd/sweeper. With SWEEP_INTERVAL
// unset or zero it runs one pass and exits; otherwise it loops on a
// ticker until signalled.
func RunSweeper() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	log := NewLogger(cfg.LogLevel, cfg.LogFormat)

	if err := ValidateSecurityConfig(cfg); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("sweeper: DATABASE_URL is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	issuer, err := token.NewIssuer(token.Config{
		MasterSecret:    []byte(strings.TrimSpace(cfg.AuthMasterSecret)),
		Issuer:          cfg.AuthIssuer,
		AccessLifetime:  cfg.AccessTokenTTL(),
		RefreshLifetime: cfg.RefreshTokenTTL(),
	})
	if err != nil {
		return err
	}
	hasher, err := sectoken.NewHasher([]byte(strings.TrimSpace(cfg.SessionTokenHashKey)))
	if err != nil {
		return err
	}
	svc, err := session.NewService(
		session.Config{MaxSessionsPerAccount: cfg.MaxSessionsPerAccount},
		session.NewPostgresStore(pool),
		issuer,
		hasher,
	)
	if err != nil {
		return err
	}

	pass := func(ctx context.Context) error {
		deleted, err := svc.SweepExpired(ctx, time.Now().UTC(), cfg.SweepBatchSize)
		if err != nil {
			return err
		}
		log.Info("sweeper.pass", "deleted", deleted)
		return nil
	}

	if cfg.SweepInterval <= 0 {
		return pass(ctx)
	}

	log.Info("sweeper.start", "interval", cfg.SweepInterval.String())
	if err := pass(ctx); err != nil {
		log.Error("sweeper.pass.fail", "err", err)
	}

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("sweeper.stop", "reason", "context_done")
			return nil
		case <-ticker.C:
			if err := pass(ctx); err != nil {
				log.Error("sweeper.pass.fail", "err", err)
			}
		}
	}
}

// RunMigrate is the entrypoint behind cmd/migrate. A schema already at
// the target version counts as success.
func RunMigrate(direction string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("migrate: DATABASE_URL is required")
	}

	if err := migrate.Run(cfg.DatabaseURL, direction); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
