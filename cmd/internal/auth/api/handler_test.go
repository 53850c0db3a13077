package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prroha/fullstack-starter-sub003/cmd/internal/account"
	"github.com/prroha/fullstack-starter-sub003/cmd/internal/auth/session"
	"github.com/prroha/fullstack-starter-sub003/cmd/internal/auth/token"
	"github.com/prroha/fullstack-starter-sub003/cmd/security/password"
	sectoken "github.com/prroha/fullstack-starter-sub003/cmd/security/token"
)

const (
	testUserEmail = "user@example.com"
	testUserPass  = "correct horse battery"
	testHashKey   = "fedcba9876543210fedcba9876543210"

	testChromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
)

// lightPasswordConfig keeps Argon2id cheap enough for tests.
func lightPasswordConfig() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Policy.MinLength = 8
	return cfg
}

type testEnv struct {
	handler  *Handler
	mux      *http.ServeMux
	accounts *account.InMemoryStore
	store    *session.InMemoryStore
	sessions *session.Service
	issuer   *token.Issuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := discardLogger()
	iss := newTestIssuer(t)

	hasher, err := sectoken.NewHasher([]byte(testHashKey))
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	store := session.NewInMemoryStore()
	svc, err := session.NewService(session.DefaultConfig(), store, iss, hasher)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	accounts := account.NewInMemoryStore()
	gate, err := NewGate(log, iss, accounts, DefaultConfig())
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	h, err := NewHandler(log, DefaultConfig(), Deps{
		DBEnabled: true,
		Gate:      gate,
		Accounts:  accounts,
		Sessions:  svc,
		Password:  lightPasswordConfig(),
	})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)

	env := &testEnv{handler: h, mux: mux, accounts: accounts, store: store, sessions: svc, issuer: iss}
	env.seedLoginAccount(t, "acct-1", testUserEmail, account.RoleUser, true)
	return env
}

// seedLoginAccount stores an account whose password is testUserPass.
func (e *testEnv) seedLoginAccount(t *testing.T, id, email, role string, active bool) {
	t.Helper()
	hash, err := account.HashPassword(lightPasswordConfig(), testUserPass)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	e.accounts.Put(account.Auth{
		Account: account.Account{
			ID:        id,
			Email:     email,
			Role:      role,
			IsActive:  active,
			CreatedAt: time.Now().UTC(),
		},
		PasswordHash: hash,
	})
}

// do runs one request through the mux. A string body is sent verbatim;
// anything else non-nil is marshaled as JSON.
func (e *testEnv) do(t *testing.T, method, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		rd = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}

	rr := httptest.NewRecorder()
	e.mux.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) login(t *testing.T, email, pass string) (loginResponse, []*http.Cookie) {
	t.Helper()
	return e.loginWith(t, email, pass, testChromeUA, "")
}

func (e *testEnv) loginWith(t *testing.T, email, pass, ua, deviceName string) (loginResponse, []*http.Cookie) {
	t.Helper()

	body := map[string]string{"email": email, "password": pass}
	if deviceName != "" {
		body["device_name"] = deviceName
	}
	rr := e.do(t, http.MethodPost, "/auth/login", body, func(r *http.Request) {
		if ua != "" {
			r.Header.Set("User-Agent", ua)
		}
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp loginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp, rr.Result().Cookies()
}

func cookieByName(t *testing.T, cookies []*http.Cookie, name string) *http.Cookie {
	t.Helper()
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func withBearer(tok string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
	}
}

func TestNewHandler_RequiresCollaboratorsWhenDBEnabled(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(nil, DefaultConfig(), Deps{DBEnabled: true}); err == nil {
		t.Fatal("NewHandler with missing collaborators succeeded")
	}
	if _, err := NewHandler(nil, DefaultConfig(), Deps{DBEnabled: false, Password: lightPasswordConfig()}); err != nil {
		t.Fatalf("NewHandler without DB: %v", err)
	}
}

func TestLogin_IssuesTokensAndCookies(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	resp, cookies := env.login(t, testUserEmail, testUserPass)

	if resp.Account.ID != "acct-1" || resp.Account.Email != testUserEmail || resp.Account.Role != account.RoleUser {
		t.Fatalf("account = %+v", resp.Account)
	}
	if resp.Session.SessionID == "" || resp.Session.AccessToken == "" || resp.Session.RefreshToken == "" {
		t.Fatalf("session tokens incomplete: %+v", resp.Session)
	}
	if resp.Session.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("expires_in = %d, want 900", resp.Session.ExpiresIn)
	}
	if !resp.Session.RefreshExpiresAt.After(time.Now()) {
		t.Fatalf("refresh_expires_at = %v is not in the future", resp.Session.RefreshExpiresAt)
	}

	access := cookieByName(t, cookies, DefaultAccessCookieName)
	if access.Value != resp.Session.AccessToken || !access.HttpOnly {
		t.Fatalf("access cookie = %+v", access)
	}
	refresh := cookieByName(t, cookies, DefaultRefreshCookieName)
	if refresh.Value != resp.Session.RefreshToken || !refresh.HttpOnly {
		t.Fatalf("refresh cookie = %+v", refresh)
	}
	csrf := cookieByName(t, cookies, DefaultCSRFCookieName)
	if csrf.Value == "" || csrf.HttpOnly {
		t.Fatalf("csrf cookie = %+v, want readable and non-empty", csrf)
	}
}

func TestLogin_NoStoreCacheControl(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/auth/login",
		map[string]string{"email": testUserEmail, "password": testUserPass}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if cc := rr.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("Cache-Control = %q, want no-store", cc)
	}
}

func TestLogin_UniformInvalidCredentials(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	// Unknown email and wrong password must be indistinguishable.
	for _, tc := range []struct {
		name  string
		email string
		pass  string
	}{
		{"unknown email", "nobody@example.com", testUserPass},
		{"wrong password", testUserEmail, "not the password"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/auth/login",
				map[string]string{"email": tc.email, "password": tc.pass}, nil)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rr.Code)
			}
			if e := decodeAPIError(t, rr); e.Code != "invalid_credentials" {
				t.Fatalf("code = %q, want invalid_credentials", e.Code)
			}
		})
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedLoginAccount(t, "acct-off", "off@example.com", account.RoleUser, false)

	rr := env.do(t, http.MethodPost, "/auth/login",
		map[string]string{"email": "off@example.com", "password": testUserPass}, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	if e := decodeAPIError(t, rr); e.Code != "account_inactive" {
		t.Fatalf("code = %q, want account_inactive", e.Code)
	}
}

func TestLogin_RequestValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	cases := []struct {
		name     string
		method   string
		body     any
		wantCode int
		wantErr  string
	}{
		{"wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed, ""},
		{"missing email", http.MethodPost, map[string]string{"password": "x"}, http.StatusBadRequest, "invalid_request"},
		{"missing password", http.MethodPost, map[string]string{"email": "a@b.c"}, http.StatusBadRequest, "invalid_request"},
		{"malformed json", http.MethodPost, "{not json", http.StatusBadRequest, "invalid_json"},
		{"unknown field", http.MethodPost, `{"email":"a@b.c","password":"x","extra":1}`, http.StatusBadRequest, "invalid_json"},
		{"trailing data", http.MethodPost, `{"email":"a@b.c","password":"x"}{}`, http.StatusBadRequest, "invalid_json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, tc.method, "/auth/login", tc.body, nil)
			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantCode)
			}
			if tc.wantErr != "" {
				if e := decodeAPIError(t, rr); e.Code != tc.wantErr {
					t.Fatalf("code = %q, want %q", e.Code, tc.wantErr)
				}
			}
		})
	}
}

func TestRefresh_RotatesAndRejectsReplay(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	loginResp, _ := env.login(t, testUserEmail, testUserPass)
	oldRefresh := loginResp.Session.RefreshToken

	rr := env.do(t, http.MethodPost, "/auth/refresh",
		map[string]string{"refresh_token": oldRefresh}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var refreshed refreshResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &refreshed); err != nil {
		t.Fatalf("decode refresh response: %v", err)
	}
	if refreshed.Session.SessionID != loginResp.Session.SessionID {
		t.Fatalf("session id changed across refresh: %q -> %q",
			loginResp.Session.SessionID, refreshed.Session.SessionID)
	}
	if refreshed.Session.RefreshToken == oldRefresh {
		t.Fatal("refresh token was not rotated")
	}

	// The pre-rotation token is dead.
	rr = env.do(t, http.MethodPost, "/auth/refresh",
		map[string]string{"refresh_token": oldRefresh}, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("replay status = %d, want 401", rr.Code)
	}
	if e := decodeAPIError(t, rr); e.Code != "invalid_refresh_token" {
		t.Fatalf("replay code = %q, want invalid_refresh_token", e.Code)
	}

	// The rotated token still works.
	rr = env.do(t, http.MethodPost, "/auth/refresh",
		map[string]string{"refresh_token": refreshed.Session.RefreshToken}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("rotated-token status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestRefresh_CookieFlowNeedsCSRF(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, cookies := env.login(t, testUserEmail, testUserPass)
	refresh := cookieByName(t, cookies, DefaultRefreshCookieName)
	csrf := cookieByName(t, cookies, DefaultCSRFCookieName)

	attach := func(withHeader bool, headerValue string) func(*http.Request) {
		return func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: refresh.Name, Value: refresh.Value})
			r.AddCookie(&http.Cookie{Name: csrf.Name, Value: csrf.Value})
			if withHeader {
				r.Header.Set(DefaultCSRFHeaderName, headerValue)
			}
		}
	}

	rr := env.do(t, http.MethodPost, "/auth/refresh", nil, attach(false, ""))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("no-header status = %d, want 403", rr.Code)
	}
	if e := decodeAPIError(t, rr); e.Code != "csrf_invalid" {
		t.Fatalf("no-header code = %q, want csrf_invalid", e.Code)
	}

	rr = env.do(t, http.MethodPost, "/auth/refresh", nil, attach(true, "some-other-value"))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("bad-header status = %d, want 403", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/auth/refresh", nil, attach(true, csrf.Value))
	if rr.Code != http.StatusOK {
		t.Fatalf("matched-header status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestRefresh_Validation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/auth/refresh", nil, nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("wrong-method status = %d, want 405", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/auth/refresh", nil, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing-token status = %d, want 400", rr.Code)
	}
	if e := decodeAPIError(t, rr); e.Code != "invalid_request" {
		t.Fatalf("missing-token code = %q, want invalid_request", e.Code)
	}

	rr = env.do(t, http.MethodPost, "/auth/refresh",
		map[string]string{"refresh_token": "not-a-jwt"}, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("garbage-token status = %d, want 401", rr.Code)
	}
	if e := decodeAPIError(t, rr); e.Code != "invalid_refresh_token" {
		t.Fatalf("garbage-token code = %q, want invalid_refresh_token", e.Code)
	}
}

func TestLogout_IdempotentAndClearsCookies(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	loginResp, _ := env.login(t, testUserEmail, testUserPass)
	refreshToken := loginResp.Session.RefreshToken

	rr := env.do(t, http.MethodPost, "/auth/logout",
		map[string]string{"refresh_token": refreshToken}, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d, want 204", rr.Code)
	}
	for _, name := range []string{DefaultAccessCookieName, DefaultRefreshCookieName, DefaultCSRFCookieName} {
		c := cookieByName(t, rr.Result().Cookies(), name)
		if c.Value != "" || c.MaxAge >= 0 {
			t.Fatalf("cookie %q not cleared: %+v", name, c)
		}
	}

	// The session is gone.
	rr = env.do(t, http.MethodPost, "/auth/refresh",
		map[string]string{"refresh_token": refreshToken}, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d, want 401", rr.Code)
	}

	// Logging out again, or with no token at all, still succeeds.
	rr = env.do(t, http.MethodPost, "/auth/logout",
		map[string]string{"refresh_token": refreshToken}, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("second logout status = %d, want 204", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/auth/logout", nil, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("tokenless logout status = %d, want 204", rr.Code)
	}
}

func TestLogout_CookieFlowNeedsCSRF(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, cookies := env.login(t, testUserEmail, testUserPass)
	refresh := cookieByName(t, cookies, DefaultRefreshCookieName)

	rr := env.do(t, http.MethodPost, "/auth/logout", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: refresh.Name, Value: refresh.Value})
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	if e := decodeAPIError(t, rr); e.Code != "csrf_invalid" {
		t.Fatalf("code = %q, want csrf_invalid", e.Code)
	}
}

func TestLogoutAll_RevokesEverySession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	first, _ := env.login(t, testUserEmail, testUserPass)
	second, _ := env.login(t, testUserEmail, testUserPass)

	rr := env.do(t, http.MethodPost, "/auth/logout_all", nil, withBearer(first.Session.AccessToken))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("logout_all status = %d, body = %s", rr.Code, rr.Body.String())
	}

	for _, tok := range []string{first.Session.RefreshToken, second.Session.RefreshToken} {
		rr = env.do(t, http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": tok}, nil)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("refresh after logout_all status = %d, want 401", rr.Code)
		}
	}

	// Access tokens outlive their sessions until expiry; the list is empty.
	rr = env.do(t, http.MethodGet, "/auth/sessions", nil, withBearer(first.Session.AccessToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var list sessionsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Sessions) != 0 {
		t.Fatalf("sessions after logout_all = %d, want 0", len(list.Sessions))
	}
}

func TestMe(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	loginResp, _ := env.login(t, testUserEmail, testUserPass)

	rr := env.do(t, http.MethodGet, "/me", nil, withBearer(loginResp.Session.AccessToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var me meResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if me.Account.ID != "acct-1" || me.Account.Email != testUserEmail {
		t.Fatalf("account = %+v", me.Account)
	}

	rr = env.do(t, http.MethodGet, "/me", nil, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rr.Code)
	}
	if e := decodeAPIError(t, rr); e.Code != CodeAuthRequired {
		t.Fatalf("anonymous code = %q, want %q", e.Code, CodeAuthRequired)
	}
}

func TestSessionsList_MarksCurrentAndDevice(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	first, _ := env.loginWith(t, testUserEmail, testUserPass, testChromeUA, "")
	second, _ := env.loginWith(t, testUserEmail, testUserPass, testChromeUA, "Work laptop")

	rr := env.do(t, http.MethodGet, "/auth/sessions", nil, withBearer(first.Session.AccessToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var list sessionsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(list.Sessions))
	}

	// Most recently active first: the second login leads.
	if list.Sessions[0].SessionID != second.Session.SessionID {
		t.Fatalf("first listed = %q, want the most recent login %q",
			list.Sessions[0].SessionID, second.Session.SessionID)
	}

	var current int
	for _, s := range list.Sessions {
		if s.Current {
			current++
			if s.SessionID != first.Session.SessionID {
				t.Fatalf("current flag on %q, want %q", s.SessionID, first.Session.SessionID)
			}
		}
		if s.Device.Browser != "Chrome 126" || s.Device.OS != "Windows" {
			t.Fatalf("device = %+v", s.Device)
		}
		if s.IP == nil || *s.IP == "" {
			t.Fatalf("session %q has no ip", s.SessionID)
		}
	}
	if current != 1 {
		t.Fatalf("current sessions = %d, want exactly 1", current)
	}
	if list.Sessions[0].Device.Name != "Work laptop" {
		t.Fatalf("device name = %q, want the login override", list.Sessions[0].Device.Name)
	}
}

func TestSessionsRevoke(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedLoginAccount(t, "acct-2", "other@example.com", account.RoleUser, true)

	mine, _ := env.login(t, testUserEmail, testUserPass)
	otherMine, _ := env.login(t, testUserEmail, testUserPass)
	foreign, _ := env.login(t, "other@example.com", testUserPass)

	auth := withBearer(mine.Session.AccessToken)

	rr := env.do(t, http.MethodPost, "/auth/sessions/revoke",
		map[string]string{"session_id": otherMine.Session.SessionID}, auth)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("revoke status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/auth/sessions/revoke",
		map[string]string{"session_id": "no-such-session"}, auth)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown-id status = %d, want 404", rr.Code)
	}
	if e := decodeAPIError(t, rr); e.Code != "not_found" {
		t.Fatalf("unknown-id code = %q, want not_found", e.Code)
	}

	rr = env.do(t, http.MethodPost, "/auth/sessions/revoke",
		map[string]string{"session_id": foreign.Session.SessionID}, auth)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("cross-account status = %d, want 403", rr.Code)
	}
	if e := decodeAPIError(t, rr); e.Code != "forbidden" {
		t.Fatalf("cross-account code = %q, want forbidden", e.Code)
	}

	rr = env.do(t, http.MethodPost, "/auth/sessions/revoke",
		map[string]string{"session_id": "  "}, auth)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("blank-id status = %d, want 400", rr.Code)
	}

	// The foreign session survived the 403.
	rr = env.do(t, http.MethodPost, "/auth/refresh",
		map[string]string{"refresh_token": foreign.Session.RefreshToken}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("foreign session refresh status = %d, want 200", rr.Code)
	}
}

func TestSessionsRevokeOthers(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedLoginAccount(t, "acct-2", "other@example.com", account.RoleUser, true)

	_, _ = env.login(t, testUserEmail, testUserPass)
	_, _ = env.login(t, testUserEmail, testUserPass)
	current, _ := env.login(t, testUserEmail, testUserPass)
	foreign, _ := env.login(t, "other@example.com", testUserPass)

	auth := withBearer(current.Session.AccessToken)

	rr := env.do(t, http.MethodPost, "/auth/sessions/revoke_others",
		map[string]string{"refresh_token": current.Session.RefreshToken}, auth)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var revoked revokedResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &revoked); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if revoked.Revoked != 2 {
		t.Fatalf("revoked = %d, want 2", revoked.Revoked)
	}

	rr = env.do(t, http.MethodGet, "/auth/sessions", nil, auth)
	var list sessionsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].SessionID != current.Session.SessionID {
		t.Fatalf("surviving sessions = %+v, want only the current one", list.Sessions)
	}

	// A token that names another account's session cannot anchor the call.
	rr = env.do(t, http.MethodPost, "/auth/sessions/revoke_others",
		map[string]string{"refresh_token": foreign.Session.RefreshToken}, auth)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("foreign-anchor status = %d, want 403", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/auth/sessions/revoke_others",
		map[string]string{"refresh_token": "not-a-known-token"}, auth)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unknown-anchor status = %d, want 401", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/auth/sessions/revoke_others", nil, auth)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing-anchor status = %d, want 400", rr.Code)
	}
}

func TestSessionState(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	loginResp, _ := env.login(t, testUserEmail, testUserPass)

	rr := env.do(t, http.MethodGet, "/auth/session", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("anonymous status = %d", rr.Code)
	}
	var state sessionStateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Authenticated || state.Account != nil {
		t.Fatalf("anonymous state = %+v", state)
	}

	rr = env.do(t, http.MethodGet, "/auth/session", nil, withBearer(loginResp.Session.AccessToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("authed status = %d", rr.Code)
	}
	state = sessionStateResponse{}
	if err := json.Unmarshal(rr.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !state.Authenticated || state.Account == nil || state.Account.ID != "acct-1" {
		t.Fatalf("authed state = %+v", state)
	}
}

func TestAdminSweep(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	putAccount(t, env.accounts, "acct-admin", "admin@example.com", account.RoleAdmin, true)

	now := time.Now().UTC()
	adminTok := mintAccess(t, env.issuer, "acct-admin", "admin@example.com", "sess-admin", now)

	// One live session and one already expired.
	live, _ := env.login(t, testUserEmail, testUserPass)
	if _, err := env.store.Create(context.Background(), session.CreateParams{
		PublicID:         "pub-expired",
		AccountID:        "acct-1",
		RefreshTokenHash: "expired-hash",
		Now:              now.Add(-48 * time.Hour),
		ExpiresAt:        now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("seed expired session: %v", err)
	}

	rr := env.do(t, http.MethodPost, "/admin/sessions/sweep", nil, withBearer(adminTok))
	if rr.Code != http.StatusOK {
		t.Fatalf("sweep status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var swept sweepResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &swept); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if swept.Deleted != 1 {
		t.Fatalf("deleted = %d, want 1", swept.Deleted)
	}

	// The live session is untouched.
	rr = env.do(t, http.MethodPost, "/auth/refresh",
		map[string]string{"refresh_token": live.Session.RefreshToken}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("live session refresh status = %d, want 200", rr.Code)
	}

	// Ordinary users cannot sweep.
	rr = env.do(t, http.MethodPost, "/admin/sessions/sweep", nil, withBearer(live.Session.AccessToken))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("non-admin status = %d, want 403", rr.Code)
	}
	if e := decodeAPIError(t, rr); e.Code != CodeAdminRequired {
		t.Fatalf("non-admin code = %q, want %q", e.Code, CodeAdminRequired)
	}
}

func TestRoutesWithoutDatabase(t *testing.T) {
	t.Parallel()

	h, err := NewHandler(discardLogger(), DefaultConfig(), Deps{
		DBEnabled: false,
		Password:  lightPasswordConfig(),
	})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	mux := http.NewServeMux()
	h.Register(mux)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/auth/login"},
		{http.MethodPost, "/auth/refresh"},
		{http.MethodPost, "/auth/logout"},
		{http.MethodPost, "/auth/logout_all"},
		{http.MethodGet, "/auth/sessions"},
		{http.MethodPost, "/auth/sessions/revoke"},
		{http.MethodPost, "/auth/sessions/revoke_others"},
		{http.MethodGet, "/me"},
		{http.MethodPost, "/admin/sessions/sweep"},
	}
	for _, tc := range paths {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s status = %d, want 503", tc.method, tc.path, rr.Code)
		}
		if e := decodeAPIError(t, rr); e.Code != "db_unavailable" {
			t.Fatalf("%s %s code = %q, want db_unavailable", tc.method, tc.path, e.Code)
		}
	}

	// The optional session probe still answers, unauthenticated.
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/session", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/auth/session status = %d, want 200", rr.Code)
	}
	var state sessionStateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Authenticated {
		t.Fatal("authenticated without a database")
	}
}
