package oauth

import (
	"errors"
	"strings"
	"testing"

	"google.golang.org/api/idtoken"
)

func TestLoadConfigFromEnv_Disabled(t *testing.T) {
	t.Setenv("TICKETD_GOOGLE_CLIENT_ID", "")
	t.Setenv("TICKETD_GOOGLE_CLIENT_SECRET", "")
	t.Setenv("TICKETD_GOOGLE_REDIRECT_URL", "")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Enabled() {
		t.Fatalf("expected disabled config")
	}
}

func TestLoadConfigFromEnv_Partial(t *testing.T) {
	t.Setenv("TICKETD_GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("TICKETD_GOOGLE_CLIENT_SECRET", "")
	t.Setenv("TICKETD_GOOGLE_REDIRECT_URL", "")

	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}

	t.Setenv("TICKETD_GOOGLE_CLIENT_ID", "")
	t.Setenv("TICKETD_GOOGLE_CLIENT_SECRET", "secret")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for secret without client id, got %v", err)
	}
}

func TestLoadConfigFromEnv_Valid(t *testing.T) {
	t.Setenv("TICKETD_GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("TICKETD_GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("TICKETD_GOOGLE_REDIRECT_URL", "https://app.example.com/auth/google/callback")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Enabled() {
		t.Fatalf("expected enabled config")
	}
}

func TestNewState_RandomAndWellFormed(t *testing.T) {
	a, err := NewState()
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	b, err := NewState()
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if len(a) != 64 || len(b) != 64 {
		t.Fatalf("expected 64 hex chars, got %d and %d", len(a), len(b))
	}
	if a == b {
		t.Fatalf("two states must differ")
	}
}

func TestVerifyState(t *testing.T) {
	if err := VerifyState("abc", "abc"); err != nil {
		t.Fatalf("matching state: %v", err)
	}
	if err := VerifyState("abc", "abd"); !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch, got %v", err)
	}
	if err := VerifyState("", ""); !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("empty state must mismatch, got %v", err)
	}
}

func TestGoogleExchanger_AuthCodeURLCarriesState(t *testing.T) {
	ex, err := NewGoogleExchanger(Config{
		ClientID:     "client-id",
		ClientSecret: "secret",
		RedirectURL:  "https://app.example.com/auth/google/callback",
	})
	if err != nil {
		t.Fatalf("NewGoogleExchanger: %v", err)
	}

	u := ex.AuthCodeURL("state-123")
	if !strings.Contains(u, "state=state-123") {
		t.Fatalf("state missing from consent URL: %s", u)
	}
	if !strings.Contains(u, "client_id=client-id") {
		t.Fatalf("client id missing from consent URL: %s", u)
	}
}

func TestGoogleExchanger_IncompleteClaims(t *testing.T) {
	g := &googleExchanger{}

	// No email claim in the verified payload: the identity is unusable.
	_, err := g.claimsFromPayload(&idtoken.Payload{Subject: "sub", Claims: map[string]any{}})
	if !errors.Is(err, ErrExchange) {
		t.Fatalf("expected ErrExchange, got %v", err)
	}

	full := &idtoken.Payload{Subject: "sub", Claims: map[string]any{
		"email":          "ada@example.com",
		"email_verified": true,
		"name":           "Ada",
		"picture":        "https://example.com/a.png",
	}}
	claims, err := g.claimsFromPayload(full)
	if err != nil {
		t.Fatalf("claimsFromPayload: %v", err)
	}
	if claims.Email != "ada@example.com" || !claims.EmailVerified || claims.Name != "Ada" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}
