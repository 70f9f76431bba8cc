package session

import (
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWTSecret = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestHMACCodec_IssueAndParseAccess(t *testing.T) {
	codec, err := NewHMACCodec(testConfig())
	if err != nil {
		t.Fatalf("NewHMACCodec: %v", err)
	}

	now := time.Now().UTC()
	tok, exp, err := codec.IssueAccess("01HZZZZZZZZZZZZZZZZZZZZZZZ", "ada@example.com", "customer", now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if !exp.After(now) {
		t.Fatalf("expected exp after now")
	}

	claims, err := codec.ParseAccess(tok, now.Add(1*time.Second))
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.UserID != "01HZZZZZZZZZZZZZZZZZZZZZZZ" {
		t.Fatalf("unexpected user id %q", claims.UserID)
	}
	if claims.Email != "ada@example.com" || claims.Role != "customer" {
		t.Fatalf("missing claims: %+v", claims)
	}
}

func TestHMACCodec_IssueAndParseRefresh(t *testing.T) {
	codec, err := NewHMACCodec(testConfig())
	if err != nil {
		t.Fatalf("NewHMACCodec: %v", err)
	}

	now := time.Now().UTC()
	tok1, _, err := codec.IssueRefresh("01HZZZZZZZZZZZZZZZZZZZZZZZ", now)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	tok2, _, err := codec.IssueRefresh("01HZZZZZZZZZZZZZZZZZZZZZZZ", now)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if tok1 == tok2 {
		t.Fatalf("two refresh tokens minted at the same instant must differ")
	}

	claims, err := codec.ParseRefresh(tok1, now)
	if err != nil {
		t.Fatalf("ParseRefresh: %v", err)
	}
	if claims.TokenID == "" {
		t.Fatalf("expected a token id")
	}
}

func TestHMACCodec_ExpiredToken(t *testing.T) {
	cfg := testConfig()
	cfg.ClockSkew = 0

	codec, err := NewHMACCodec(cfg)
	if err != nil {
		t.Fatalf("NewHMACCodec: %v", err)
	}

	now := time.Now().UTC()
	tok, _, err := codec.IssueAccess("u1", "ada@example.com", "customer", now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	_, err = codec.ParseAccess(tok, now.Add(cfg.AccessTokenTTL+time.Minute))
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestHMACCodec_WrongSecret(t *testing.T) {
	codec, err := NewHMACCodec(testConfig())
	if err != nil {
		t.Fatalf("NewHMACCodec: %v", err)
	}

	other := testConfig()
	other.JWTSecret = []byte("ffffffffffffffffffffffffffffffff")
	otherCodec, err := NewHMACCodec(other)
	if err != nil {
		t.Fatalf("NewHMACCodec: %v", err)
	}

	now := time.Now().UTC()
	tok, _, err := otherCodec.IssueAccess("u1", "ada@example.com", "customer", now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	if _, err := codec.ParseAccess(tok, now); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestHMACCodec_RefreshNotValidAsAccessSubject(t *testing.T) {
	codec, err := NewHMACCodec(testConfig())
	if err != nil {
		t.Fatalf("NewHMACCodec: %v", err)
	}

	now := time.Now().UTC()
	tok, _, err := codec.IssueAccess("u1", "ada@example.com", "customer", now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	// An access token carries the wrong kind, so it must not parse as a
	// refresh token.
	if _, err := codec.ParseRefresh(tok, now); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestHMACCodec_RefreshNotValidAsAccess(t *testing.T) {
	codec, err := NewHMACCodec(testConfig())
	if err != nil {
		t.Fatalf("NewHMACCodec: %v", err)
	}

	now := time.Now().UTC()
	tok, _, err := codec.IssueRefresh("u1", now)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	// Both kinds share the secret and the signing method. A refresh token
	// must still fail access verification, otherwise it becomes a long-lived
	// bearer credential.
	if _, err := codec.ParseAccess(tok, now); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestHMACCodec_GarbageInput(t *testing.T) {
	codec, err := NewHMACCodec(testConfig())
	if err != nil {
		t.Fatalf("NewHMACCodec: %v", err)
	}

	now := time.Now().UTC()
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := codec.ParseAccess(tok, now); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("ParseAccess(%q): expected ErrTokenMalformed, got %v", tok, err)
		}
	}
}
