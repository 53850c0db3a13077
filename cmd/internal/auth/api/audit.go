package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Auditor records security events in audit_log, best effort: inserts never
// fail the request, failures are logged and dropped. A nil Auditor or nil
// pool is a no-op, which is how the DB-less mode runs.
type Auditor struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewAuditor(log *slog.Logger, pool *pgxpool.Pool) *Auditor {
	if log == nil {
		log = slog.Default()
	}
	return &Auditor{log: log, pool: pool}
}

func (a *Auditor) LoginSuccess(ctx context.Context, accountID *string, sessionID string, ip net.IP, ua, email string) {
	a.insert(ctx, "auth.login.success", accountID, &sessionID, ip, ua, map[string]any{
		"email": email,
	})
}

func (a *Auditor) LoginFailed(ctx context.Context, accountID *string, ip net.IP, ua, email, reason string) {
	a.insert(ctx, "auth.login.failed", accountID, nil, ip, ua, map[string]any{
		"email":  email,
		"reason": reason,
	})
}

func (a *Auditor) RefreshSuccess(ctx context.Context, sessionID string, ip net.IP, ua string) {
	a.insert(ctx, "auth.refresh.success", nil, &sessionID, ip, ua, nil)
}

func (a *Auditor) RefreshRejected(ctx context.Context, ip net.IP, ua, reason string) {
	a.insert(ctx, "auth.refresh.rejected", nil, nil, ip, ua, map[string]any{
		"reason": reason,
	})
}

func (a *Auditor) Logout(ctx context.Context, ip net.IP, ua string) {
	a.insert(ctx, "auth.logout", nil, nil, ip, ua, nil)
}

func (a *Auditor) LogoutAll(ctx context.Context, accountID string, revoked int64, ip net.IP, ua string) {
	a.insert(ctx, "auth.logout_all", &accountID, nil, ip, ua, map[string]any{
		"revoked": revoked,
	})
}

func (a *Auditor) SessionRevoked(ctx context.Context, accountID, sessionID string, ip net.IP, ua string) {
	a.insert(ctx, "auth.session.revoked", &accountID, &sessionID, ip, ua, nil)
}

func (a *Auditor) OthersRevoked(ctx context.Context, accountID string, revoked int64, ip net.IP, ua string) {
	a.insert(ctx, "auth.session.revoked_others", &accountID, nil, ip, ua, map[string]any{
		"revoked": revoked,
	})
}

func (a *Auditor) SweepRun(ctx context.Context, accountID string, deleted int64) {
	a.insert(ctx, "auth.sessions.swept", &accountID, nil, nil, "", map[string]any{
		"deleted": deleted,
	})
}

func (a *Auditor) insert(ctx context.Context, action string, accountID, sessionID *string, ip net.IP, ua string, meta map[string]any) {
	if a == nil || a.pool == nil {
		return
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	var ipVal any
	if ip != nil {
		ipVal = ip.String()
	}

	var metaVal *string
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := a.pool.Exec(ctx, `
		INSERT INTO audit_log (
			account_id, session_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, $3, now(), $4, $5, $6::jsonb)
	`, accountID, sessionID, action, ipVal, trimOrNil(ua), metaVal)
	if err != nil {
		a.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
