package revocation

import (
	"context"
	"sync"
	"time"
)

// InMemoryRegistry is the single-process default. Entries are pruned lazily
// on access and in bulk whenever the map grows past pruneThreshold.
type InMemoryRegistry struct {
	mu      sync.Mutex
	entries map[string]time.Time
	clock   func() time.Time
}

const pruneThreshold = 4096

// NewInMemoryRegistry constructs an in-memory Registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		entries: make(map[string]time.Time),
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Revoke marks a token digest dead until expiresAt.
func (r *InMemoryRegistry) Revoke(ctx context.Context, tokenDigest string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	if !expiresAt.After(now) {
		return nil
	}
	r.entries[tokenDigest] = expiresAt

	if len(r.entries) > pruneThreshold {
		r.pruneLocked(now)
	}
	return nil
}

// IsRevoked reports whether the digest is currently marked.
func (r *InMemoryRegistry) IsRevoked(ctx context.Context, tokenDigest string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.entries[tokenDigest]
	if !ok {
		return false, nil
	}
	if !exp.After(r.clock()) {
		delete(r.entries, tokenDigest)
		return false, nil
	}
	return true, nil
}

func (r *InMemoryRegistry) pruneLocked(now time.Time) {
	for digest, exp := range r.entries {
		if !exp.After(now) {
			delete(r.entries, digest)
		}
	}
}
