package session

import (
	"os"
	"time"
)

// Config defines runtime configuration for the session subsystem.
//
// It controls access- and refresh-token lifetimes, clock skew tolerance,
// the background sweep cadence, and the shared JWT signing secret.
//
// The struct is intentionally explicit and environment-driven so that
// production deployments can tune security parameters without code changes.
type Config struct {
	// Issuer is the value set in the "iss" claim of issued tokens.
	Issuer string

	// AccessTokenTTL defines the lifetime of access tokens.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL defines the lifetime of refresh tokens and of the
	// server-side session rows that back them.
	RefreshTokenTTL time.Duration

	// ClockSkew defines the allowed time skew during token validation.
	ClockSkew time.Duration

	// SweepInterval defines how often expired session rows are purged.
	SweepInterval time.Duration

	// JWTSecret is the shared HMAC secret used to sign and verify both
	// token kinds. The process must not start without it.
	JWTSecret []byte
}

// DefaultConfig returns a default configuration suitable for development.
//
// Production environments should override values via environment variables.
// The JWT secret has no default and must always come from the environment.
func DefaultConfig() Config {
	return Config{
		Issuer:          "ticketd",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		ClockSkew:       30 * time.Second,
		SweepInterval:   time.Hour,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - TICKETD_JWT_SECRET
//
// Optional (durations must be valid Go duration strings):
//   - TICKETD_AUTH_ISSUER
//   - TICKETD_AUTH_ACCESS_TTL
//   - TICKETD_AUTH_REFRESH_TTL
//   - TICKETD_AUTH_CLOCK_SKEW
//   - TICKETD_AUTH_SWEEP_INTERVAL
//
// Returns ErrConfig if configuration is invalid or the secret is missing.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("TICKETD_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("TICKETD_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTokenTTL = d
	}

	if v := os.Getenv("TICKETD_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenTTL = d
	}

	if v := os.Getenv("TICKETD_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	if v := os.Getenv("TICKETD_AUTH_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.SweepInterval = d
	}

	secret := os.Getenv("TICKETD_JWT_SECRET")
	if secret == "" {
		return Config{}, ErrConfig
	}
	if len(secret) < 32 {
		return Config{}, ErrConfig
	}
	cfg.JWTSecret = []byte(secret)

	// Invariant: a refresh token must outlive the access tokens minted
	// against its session.
	if cfg.RefreshTokenTTL < cfg.AccessTokenTTL {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
