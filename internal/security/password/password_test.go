package password

import (
	"errors"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(bcryptTestCost)

	digest, err := h.Hash("pw123456")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if digest == "pw123456" {
		t.Fatalf("digest must never equal the plaintext")
	}

	ok, err := h.Verify("pw123456", digest)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	h := NewHasher(bcryptTestCost)
	digest, _ := h.Hash("correct-horse")

	ok, err := h.Verify("battery-staple", digest)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("wrong password must not verify")
	}
}

func TestVerify_CorruptDigest(t *testing.T) {
	h := NewHasher(bcryptTestCost)

	ok, err := h.Verify("anything", "not-a-bcrypt-digest")
	if ok {
		t.Fatalf("corrupt digest must not verify")
	}
	if !errors.Is(err, ErrCorruptDigest) {
		t.Fatalf("expected ErrCorruptDigest, got %v", err)
	}
}

func TestNewHasher_Clamping(t *testing.T) {
	if c := NewHasher(0).Cost; c < 4 {
		t.Fatalf("zero cost should select a sane default, got %d", c)
	}
	if c := NewHasher(99).Cost; c > 31 {
		t.Fatalf("oversized cost should be clamped, got %d", c)
	}
}

// Low cost keeps the test suite fast; production uses the configured cost.
const bcryptTestCost = 4
