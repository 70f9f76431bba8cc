package revocation

import (
	"context"
	"time"
)

// Registry is the veto store consulted on every authenticated request.
//
// Revoke marks a token digest dead until expiresAt; IsRevoked answers
// whether a digest is currently marked. Implementations must treat an
// expiresAt in the past as a no-op.
type Registry interface {
	Revoke(ctx context.Context, tokenDigest string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenDigest string) (bool, error)
}
