package oauth

import (
	"errors"
	"os"
)

// ErrConfig is returned for incomplete Google OAuth configuration.
var ErrConfig = errors.New("invalid oauth config")

// Config holds the Google OAuth client settings.
//
// The feature is optional: when no client ID is configured the OAuth
// endpoints respond 404 and the rest of the service is unaffected.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether Google sign-in is configured at all.
func (c Config) Enabled() bool {
	return c.ClientID != ""
}

// LoadConfigFromEnv loads Google OAuth settings from the environment.
//
// Optional, all-or-nothing:
//   - TICKETD_GOOGLE_CLIENT_ID
//   - TICKETD_GOOGLE_CLIENT_SECRET
//   - TICKETD_GOOGLE_REDIRECT_URL
//
// Returns ErrConfig when only some of the three are set.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		ClientID:     os.Getenv("TICKETD_GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("TICKETD_GOOGLE_CLIENT_SECRET"),
		RedirectURL:  os.Getenv("TICKETD_GOOGLE_REDIRECT_URL"),
	}

	if !cfg.Enabled() {
		if cfg.ClientSecret != "" || cfg.RedirectURL != "" {
			return Config{}, ErrConfig
		}
		return cfg, nil
	}
	if cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return Config{}, ErrConfig
	}
	return cfg, nil
}
