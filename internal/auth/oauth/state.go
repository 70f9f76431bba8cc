package oauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

// ErrStateMismatch is returned when the callback state does not match the
// state recorded at flow start.
var ErrStateMismatch = errors.New("oauth state mismatch")

// NewState returns a cryptographically random hex state token (32 bytes,
// 64 hex chars).
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// VerifyState compares the recorded and presented state in constant time.
func VerifyState(recorded, presented string) error {
	if recorded == "" || presented == "" {
		return ErrStateMismatch
	}
	if subtle.ConstantTimeCompare([]byte(recorded), []byte(presented)) != 1 {
		return ErrStateMismatch
	}
	return nil
}
