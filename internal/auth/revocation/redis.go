package revocation

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisRegistry shares revocations across processes. Entries use the
// token's remaining lifetime as the key TTL, so Redis expires them exactly
// when the token would stop verifying anyway.
type RedisRegistry struct {
	rdb    *goredis.Client
	prefix string
	clock  func() time.Time
}

// NewRedisRegistry constructs a Redis-backed Registry. Keys are namespaced
// under "ticketd:revoked:".
func NewRedisRegistry(rdb *goredis.Client) *RedisRegistry {
	return &RedisRegistry{
		rdb:    rdb,
		prefix: "ticketd:revoked:",
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Revoke marks a token digest dead until expiresAt.
func (r *RedisRegistry) Revoke(ctx context.Context, tokenDigest string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.clock())
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, r.prefix+tokenDigest, "1", ttl).Err()
}

// IsRevoked reports whether the digest is currently marked.
func (r *RedisRegistry) IsRevoked(ctx context.Context, tokenDigest string) (bool, error) {
	_, err := r.rdb.Get(ctx, r.prefix+tokenDigest).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
