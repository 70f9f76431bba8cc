package identity

import (
	"errors"
	"fmt"
	"testing"
)

func TestConflictError_Unwrap(t *testing.T) {
	err := ConflictError{Op: "identity.CreateUser", Field: "email"}

	if !IsConflict(err) {
		t.Fatalf("expected IsConflict")
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected errors.Is(ErrConflict)")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !IsConflict(wrapped) {
		t.Fatalf("expected IsConflict through wrapping")
	}
}

func TestNotFoundError_Unwrap(t *testing.T) {
	err := NotFoundError{Op: "identity.GetUserByID", Resource: "user"}
	if !IsNotFound(err) {
		t.Fatalf("expected IsNotFound")
	}
}

func TestOpError_Message(t *testing.T) {
	err := OpError{Op: "identity.CreateUser", Kind: ErrInvalidInput, Msg: "name is required"}
	if !IsInvalidInput(err) {
		t.Fatalf("expected IsInvalidInput")
	}
	if err.Error() != "identity.CreateUser: invalid_input: name is required" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
