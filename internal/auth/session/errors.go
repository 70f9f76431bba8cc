package session

import "errors"

var (
	// ErrTokenExpired is returned when a token's embedded expiry has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenMalformed is returned when a token fails signature verification
	// or is structurally invalid.
	ErrTokenMalformed = errors.New("token malformed")

	// ErrNoActiveSession is the uniform failure for refresh validation:
	// not found, expired, and already-rotated are deliberately
	// indistinguishable so callers cannot test for session existence.
	ErrNoActiveSession = errors.New("no active session")

	// ErrReplayDetected is returned internally when an already-rotated
	// refresh token is presented again. The HTTP layer still surfaces the
	// uniform ErrNoActiveSession message to the client.
	ErrReplayDetected = errors.New("refresh token replay detected")

	// ErrSessionNotFound is the store-level miss for lookups by id or hash.
	ErrSessionNotFound = errors.New("session not found")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)
