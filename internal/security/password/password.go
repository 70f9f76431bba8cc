package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrCorruptDigest is returned when a stored digest is not a valid bcrypt
// hash. Callers treat it as verification failure, not as a crash.
var ErrCorruptDigest = errors.New("corrupt password digest")

// Hasher hashes and verifies passwords using bcrypt. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost. Out-of-range costs
// are clamped; zero selects bcrypt's default (10). Cost 12 is a reasonable
// choice for interactive login.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a salted bcrypt digest of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plaintext matches digest. The comparison is done by
// the bcrypt primitive itself (constant-time), never by string equality.
// A structurally invalid digest yields (false, ErrCorruptDigest).
func (h *Hasher) Verify(plaintext, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		// Truncated, wrong prefix, bad cost field, etc.
		return false, ErrCorruptDigest
	}
}
