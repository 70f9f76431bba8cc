package app

import (
	"errors"

	"ticketd/internal/security/token"
)

// ValidateSecurityConfig enforces the startup security policy.
//
// The JWT secret is validated by session.LoadConfigFromEnv; this covers
// the refresh-token hashing policy. When TICKETD_REQUIRE_TOKEN_HMAC is
// set, a missing or weak HMAC key is a startup failure rather than a
// silent fallback to unkeyed SHA-256.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: TICKETD_REQUIRE_TOKEN_HMAC=true but TICKETD_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: TICKETD_REQUIRE_TOKEN_HMAC=true but TICKETD_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	if !token.HMACEnabled() {
		return errors.New("security policy: TICKETD_REQUIRE_TOKEN_HMAC=true but token hashing is not in HMAC mode")
	}

	return nil
}
