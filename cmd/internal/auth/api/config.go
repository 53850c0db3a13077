package api

import "net/http"

const (
	// DefaultMaxBodyBytes caps JSON request bodies.
	DefaultMaxBodyBytes = 1 << 20

	DefaultAccessCookieName  = "starter_access"
	DefaultRefreshCookieName = "starter_refresh"
	DefaultCSRFCookieName    = "starter_csrf"
	DefaultCSRFHeaderName    = "X-CSRF-Token"
)

// Config controls HTTP-facing behavior. The app layer populates it; this
// package never reads the environment.
type Config struct {
	// TrustProxy honors X-Forwarded-For / X-Real-IP for client IPs.
	TrustProxy bool

	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64

	// Cookie transport. The access cookie feeds the gate, the refresh
	// cookie feeds /auth/refresh, and the CSRF cookie pairs with
	// CSRFHeaderName for the double-submit check on cookie-borne tokens.
	AccessCookieName  string
	RefreshCookieName string
	CSRFCookieName    string
	CSRFHeaderName    string
	CookiePath        string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite
}

// DefaultConfig returns production-leaning defaults.
func DefaultConfig() Config {
	return Config{
		TrustProxy:        false,
		MaxBodyBytes:      DefaultMaxBodyBytes,
		AccessCookieName:  DefaultAccessCookieName,
		RefreshCookieName: DefaultRefreshCookieName,
		CSRFCookieName:    DefaultCSRFCookieName,
		CSRFHeaderName:    DefaultCSRFHeaderName,
		CookiePath:        "/",
		CookieSecure:      true,
		CookieSameSite:    http.SameSiteLaxMode,
	}
}

// normalized fills gaps with defaults so a partially populated Config
// cannot produce nameless cookies or an unbounded body reader.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = def.MaxBodyBytes
	}
	if c.AccessCookieName == "" {
		c.AccessCookieName = def.AccessCookieName
	}
	if c.RefreshCookieName == "" {
		c.RefreshCookieName = def.RefreshCookieName
	}
	if c.CSRFCookieName == "" {
		c.CSRFCookieName = def.CSRFCookieName
	}
	if c.CSRFHeaderName == "" {
		c.CSRFHeaderName = def.CSRFHeaderName
	}
	if c.CookiePath == "" {
		c.CookiePath = def.CookiePath
	}
	if c.CookieSameSite == 0 {
		c.CookieSameSite = def.CookieSameSite
	}
	return c
}
