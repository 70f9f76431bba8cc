package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// Cookie transport. Tokens are returned both in the JSON body and as
	// HttpOnly cookies; the cookie names match what browser clients expect.
	CookiesEnabled    bool
	AccessCookieName  string
	RefreshCookieName string
	StateCookieName   string
	CookiePath        string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite

	// PostLoginRedirect is where the OAuth callback sends the browser after
	// a successful federated login.
	PostLoginRedirect string
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults.
//
// Recognized variables:
//   - TICKETD_AUTH_TRUST_PROXY
//   - TICKETD_AUTH_MAX_BODY_BYTES
//   - TICKETD_AUTH_COOKIES_ENABLED
//   - TICKETD_AUTH_COOKIE_DOMAIN
//   - TICKETD_AUTH_COOKIE_SECURE
//   - TICKETD_AUTH_COOKIE_SAMESITE (lax|strict|none)
//   - TICKETD_AUTH_POST_LOGIN_REDIRECT
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:        envBool("TICKETD_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:      envInt64("TICKETD_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		CookiesEnabled:    envBool("TICKETD_AUTH_COOKIES_ENABLED", true),
		AccessCookieName:  "access",
		RefreshCookieName: "refresh",
		StateCookieName:   "oauth_state",
		CookiePath:        "/",
		CookieDomain:      strings.TrimSpace(os.Getenv("TICKETD_AUTH_COOKIE_DOMAIN")),
		CookieSecure:      envBool("TICKETD_AUTH_COOKIE_SECURE", true),
		CookieSameSite:    envSameSite("TICKETD_AUTH_COOKIE_SAMESITE", http.SameSiteLaxMode),
		PostLoginRedirect: strings.TrimSpace(os.Getenv("TICKETD_AUTH_POST_LOGIN_REDIRECT")),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.PostLoginRedirect == "" {
		cfg.PostLoginRedirect = "/"
	}

	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envSameSite(key string, def http.SameSite) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		// Cross-origin deployments; requires Secure cookies.
		return http.SameSiteNoneMode
	default:
		return def
	}
}
