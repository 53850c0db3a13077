package api

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prroha/fullstack-starter-sub003/cmd/internal/account"
	"github.com/prroha/fullstack-starter-sub003/cmd/internal/auth/session"
	"github.com/prroha/fullstack-starter-sub003/cmd/internal/auth/token"
	"github.com/prroha/fullstack-starter-sub003/cmd/security/password"
)

// Handler wires the auth HTTP endpoints to the account store and session
// service.
type Handler struct {
	log *slog.Logger
	cfg Config

	dbEnabled bool

	gate     *Gate
	accounts account.Store
	sessions *session.Service
	audit    *Auditor

	pwCfg     password.Config
	dummyHash string
}

// Deps carries the handler's collaborators. Gate, Accounts and Sessions
// may be nil only when DBEnabled is false; every DB-backed route then
// answers 503.
type Deps struct {
	DBEnabled bool
	Gate      *Gate
	Accounts  account.Store
	Sessions  *session.Service
	Audit     *Auditor
	Password  password.Config
}

// NewHandler constructs the auth handler.
func NewHandler(log *slog.Logger, cfg Config, deps Deps) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if deps.DBEnabled && (deps.Gate == nil || deps.Accounts == nil || deps.Sessions == nil) {
		return nil, errors.New("auth: db enabled but gate, accounts or sessions missing")
	}

	h := &Handler{
		log:       log,
		cfg:       cfg.normalized(),
		dbEnabled: deps.DBEnabled,
		gate:      deps.Gate,
		accounts:  deps.Accounts,
		sessions:  deps.Sessions,
		audit:     deps.Audit,
		pwCfg:     deps.Password,
	}
	if h.audit == nil {
		h.audit = NewAuditor(log, nil)
	}
	if h.pwCfg.Params.MemoryKiB == 0 {
		h.pwCfg = password.DefaultConfig()
	}

	// Dummy hash for timing-resistant login checks.
	if hash, err := account.HashPassword(h.pwCfg, "dummy-password-for-timing-only"); err == nil {
		h.dummyHash = hash
	}

	return h, nil
}

// Register wires the auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/auth/logout_all", h.gated(h.handleLogoutAll))
	mux.HandleFunc("/auth/session", h.gatedOptional(h.handleSessionState))
	mux.HandleFunc("/auth/sessions", h.gated(h.handleSessionsList))
	mux.HandleFunc("/auth/sessions/revoke", h.gated(h.handleSessionsRevoke))
	mux.HandleFunc("/auth/sessions/revoke_others", h.gated(h.handleSessionsRevokeOthers))
	mux.HandleFunc("/me", h.gated(h.handleMe))
	mux.HandleFunc("/admin/sessions/sweep", h.gatedAdmin(h.handleAdminSweep))
}

// gated applies the auth gate when the DB-backed surface is live; without
// a database every protected route answers 503 before authentication.
func (h *Handler) gated(next http.HandlerFunc) http.HandlerFunc {
	if !h.dbEnabled || h.gate == nil {
		return h.handleDBUnavailable
	}
	return h.gate.Require(next)
}

func (h *Handler) gatedAdmin(next http.HandlerFunc) http.HandlerFunc {
	if !h.dbEnabled || h.gate == nil {
		return h.handleDBUnavailable
	}
	return h.gate.RequireAdmin(next)
}

func (h *Handler) gatedOptional(next http.HandlerFunc) http.HandlerFunc {
	if !h.dbEnabled || h.gate == nil {
		return next
	}
	return h.gate.Optional(next)
}

func (h *Handler) handleDBUnavailable(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured")
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.dbEnabled {
		h.handleDBUnavailable(w, r)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	email := strings.TrimSpace(req.Email)
	pwd := strings.TrimSpace(req.Password)
	if email == "" || pwd == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	auth, err := h.accounts.GetAuthByEmail(ctx, email)
	if err != nil {
		if account.IsNotFound(err) {
			// Timing resistance: an unknown email costs a verify too.
			if h.dummyHash != "" {
				_, _ = account.VerifyPassword(h.pwCfg, h.dummyHash, pwd)
			}
			h.audit.LoginFailed(ctx, nil, ip, ua, email, "not_found")
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		h.log.Error("auth.login.lookup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	okPw, err := account.VerifyPassword(h.pwCfg, auth.PasswordHash, pwd)
	if err != nil || !okPw {
		h.audit.LoginFailed(ctx, &auth.Account.ID, ip, ua, email, "bad_password")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}
	if !auth.Account.IsActive {
		h.audit.LoginFailed(ctx, &auth.Account.ID, ip, ua, email, "inactive")
		writeError(w, http.StatusForbidden, "account_inactive", "account is deactivated")
		return
	}

	issued, err := h.sessions.Login(ctx, nil, session.LoginParams{
		AccountID:  auth.Account.ID,
		Email:      auth.Account.Email,
		UserAgent:  ua,
		IP:         ipPtr(ip),
		DeviceName: req.DeviceName,
	}, now)
	if err != nil {
		h.log.Error("auth.login.issue.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.audit.LoginSuccess(ctx, &auth.Account.ID, issued.SessionID, ip, ua, email)
	if _, err := h.setSessionCookies(w, issued, now); err != nil {
		h.log.Error("auth.login.cookie.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Account: toAccountResponse(auth.Account),
		Session: toSessionTokens(issued),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.dbEnabled {
		h.handleDBUnavailable(w, r)
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}
	refreshToken := strings.TrimSpace(req.RefreshToken)
	fromCookie := false
	if cookieToken, ok := h.refreshTokenFromCookie(r); ok {
		fromCookie = true
		if refreshToken == "" {
			refreshToken = cookieToken
		}
	}
	if refreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}
	if fromCookie && !h.csrfDoubleSubmitValid(r) {
		writeError(w, http.StatusForbidden, "csrf_invalid", "missing or invalid csrf token")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	issued, err := h.sessions.Refresh(ctx, refreshToken, now)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			// Verified token without a matching row: replayed after
			// rotation, revoked, or evicted.
			h.log.Warn("auth.refresh.rejected", "reason", "unknown_or_replayed")
			h.audit.RefreshRejected(ctx, ip, ua, "unknown_or_replayed")
			writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "invalid or expired refresh token")
		case errors.Is(err, token.ErrExpired), errors.Is(err, token.ErrMalformed), errors.Is(err, token.ErrWrongClass):
			h.audit.RefreshRejected(ctx, ip, ua, "invalid_token")
			writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "invalid or expired refresh token")
		default:
			h.log.Error("auth.refresh.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.audit.RefreshSuccess(ctx, issued.SessionID, ip, ua)
	if _, err := h.setSessionCookies(w, issued, now); err != nil {
		h.log.Error("auth.refresh.cookie.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{Session: toSessionTokens(issued)})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.dbEnabled {
		h.handleDBUnavailable(w, r)
		return
	}

	var req logoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}
	refreshToken := strings.TrimSpace(req.RefreshToken)
	fromCookie := false
	if cookieToken, ok := h.refreshTokenFromCookie(r); ok {
		fromCookie = true
		if refreshToken == "" {
			refreshToken = cookieToken
		}
	}
	if fromCookie && !h.csrfDoubleSubmitValid(r) {
		writeError(w, http.StatusForbidden, "csrf_invalid", "missing or invalid csrf token")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	// Idempotent: unknown or absent tokens still log the client out.
	if refreshToken != "" {
		if err := h.sessions.Logout(ctx, refreshToken); err != nil {
			h.log.Error("auth.logout.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
	}

	h.audit.Logout(ctx, ip, ua)
	h.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	auth, ok := FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	n, err := h.sessions.RevokeAllForAccount(ctx, auth.Account.ID)
	if err != nil {
		h.log.Error("auth.logout_all.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("auth.logout_all", "account_id", auth.Account.ID, "revoked", n)
	h.audit.LogoutAll(ctx, auth.Account.ID, n, ip, ua)
	h.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	auth, ok := FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Account: toAccountResponse(*auth.Account)})
}

func (h *Handler) handleSessionState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	auth, ok := FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, sessionStateResponse{Authenticated: false})
		return
	}
	acct := toAccountResponse(*auth.Account)
	writeJSON(w, http.StatusOK, sessionStateResponse{Authenticated: true, Account: &acct})
}

func (h *Handler) handleSessionsList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	auth, ok := FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	sessions, err := h.sessions.List(r.Context(), auth.Account.ID)
	if err != nil {
		h.log.Error("auth.sessions.list.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	resp := sessionsResponse{Sessions: make([]sessionInfoResponse, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionInfo(s, auth.Claims.SessionID))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSessionsRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	auth, ok := FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req revokeRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	if err := h.sessions.RevokeOne(ctx, auth.Account.ID, sessionID); err != nil {
		switch {
		case errors.Is(err, session.ErrForbidden):
			h.log.Warn("auth.sessions.revoke.forbidden", "account_id", auth.Account.ID)
			writeError(w, http.StatusForbidden, "forbidden", "session belongs to another account")
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "session not found")
		default:
			h.log.Error("auth.sessions.revoke.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.audit.SessionRevoked(ctx, auth.Account.ID, sessionID, ip, ua)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSessionsRevokeOthers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	auth, ok := FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req revokeOthersRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}
	currentToken := strings.TrimSpace(req.RefreshToken)
	fromCookie := false
	if cookieToken, ok := h.refreshTokenFromCookie(r); ok {
		fromCookie = true
		if currentToken == "" {
			currentToken = cookieToken
		}
	}
	if currentToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required to keep the current session")
		return
	}
	if fromCookie && !h.csrfDoubleSubmitValid(r) {
		writeError(w, http.StatusForbidden, "csrf_invalid", "missing or invalid csrf token")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	n, err := h.sessions.RevokeOthers(ctx, auth.Account.ID, currentToken, now)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrForbidden):
			writeError(w, http.StatusForbidden, "forbidden", "refresh token belongs to another account")
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "invalid or expired refresh token")
		default:
			h.log.Error("auth.sessions.revoke_others.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.audit.OthersRevoked(ctx, auth.Account.ID, n, ip, ua)
	writeJSON(w, http.StatusOK, revokedResponse{Revoked: n})
}

func (h *Handler) handleAdminSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	auth, ok := FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	n, err := h.sessions.SweepExpired(ctx, now, 0)
	if err != nil {
		h.log.Error("auth.admin.sweep.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("auth.admin.sweep", "account_id", auth.Account.ID, "deleted", n)
	h.audit.SweepRun(ctx, auth.Account.ID, n)
	writeJSON(w, http.StatusOK, sweepResponse{Deleted: n})
}

func ipPtr(ip net.IP) *net.IP {
	if ip == nil {
		return nil
	}
	return &ip
}
