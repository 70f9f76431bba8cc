package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestInMemoryRegistry_RevokeAndExpire(t *testing.T) {
	reg := NewInMemoryRegistry()
	ctx := context.Background()

	now := time.Now().UTC()
	reg.clock = func() time.Time { return now }

	if err := reg.Revoke(ctx, "digest-a", now.Add(time.Minute)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	revoked, err := reg.IsRevoked(ctx, "digest-a")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Fatalf("expected digest-a revoked")
	}

	if revoked, _ := reg.IsRevoked(ctx, "digest-b"); revoked {
		t.Fatalf("unmarked digest must not report revoked")
	}

	// Past the entry's expiry the mark disappears.
	now = now.Add(2 * time.Minute)
	if revoked, _ := reg.IsRevoked(ctx, "digest-a"); revoked {
		t.Fatalf("expired mark must not report revoked")
	}
}

func TestInMemoryRegistry_RevokeAlreadyExpiredIsNoop(t *testing.T) {
	reg := NewInMemoryRegistry()
	ctx := context.Background()

	now := time.Now().UTC()
	reg.clock = func() time.Time { return now }

	if err := reg.Revoke(ctx, "digest-a", now.Add(-time.Second)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if len(reg.entries) != 0 {
		t.Fatalf("expected no entry for an already-expired token")
	}
}

func TestRedisRegistry_RevokeAndExpire(t *testing.T) {
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	defer mini.Close()

	rdb := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	defer rdb.Close()

	reg := NewRedisRegistry(rdb)
	ctx := context.Background()

	if err := reg.Revoke(ctx, "digest-a", time.Now().UTC().Add(time.Minute)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	revoked, err := reg.IsRevoked(ctx, "digest-a")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Fatalf("expected digest-a revoked")
	}

	if revoked, _ := reg.IsRevoked(ctx, "digest-b"); revoked {
		t.Fatalf("unmarked digest must not report revoked")
	}

	// miniredis expires keys on FastForward, mirroring the Redis TTL.
	mini.FastForward(2 * time.Minute)
	if revoked, _ := reg.IsRevoked(ctx, "digest-a"); revoked {
		t.Fatalf("expired key must not report revoked")
	}
}
