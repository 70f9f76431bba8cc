package identity

import (
	"context"
	"time"
)

// Role is a user's authorization level.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// AuthMethod names a way a user can authenticate.
type AuthMethod string

const (
	MethodPassword  AuthMethod = "password"
	MethodFederated AuthMethod = "federated"
)

// User is ticketd's canonical security principal.
//
// PasswordHash is nil for federation-only accounts; FederatedID is nil for
// local-only accounts. A user always has at least one auth method after
// creation, and PasswordHash never holds a plaintext value.
type User struct {
	ID        string
	Name      string
	Email     string
	EmailNorm string

	PasswordHash *string
	FederatedID  *string
	AuthMethods  []AuthMethod

	Role       Role
	AvatarURL  *string
	IsVerified bool

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasMethod reports whether m is among the user's enabled auth methods.
func (u User) HasMethod(m AuthMethod) bool {
	for _, have := range u.AuthMethods {
		if have == m {
			return true
		}
	}
	return false
}

// CreateUserInput describes a local (password) registration.
// PasswordHash must already be a one-way digest; the store never hashes.
type CreateUserInput struct {
	Name         string
	Email        string
	PasswordHash string
	Now          time.Time
}

// FederatedClaims are the verified identity claims asserted by the external
// provider after a successful code exchange.
type FederatedClaims struct {
	Subject       string
	Email         string
	Name          string
	AvatarURL     string
	EmailVerified bool
}

// Store is the credential persistence boundary.
type Store interface {
	// CreateUser creates a password-method user. Fails with a ConflictError
	// (field "email") when the normalized email is already registered.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	// GetUserByID loads a user by ID. Missing users yield ErrNotFound.
	GetUserByID(ctx context.Context, id string) (User, error)

	// GetUserByEmail loads a user by normalized email. Missing users yield
	// ErrNotFound.
	GetUserByEmail(ctx context.Context, email string) (User, error)

	// LinkOrCreateFederated resolves federated claims to a local user:
	// by federated subject id first, then by verified email (linking the
	// subject id to the existing account), else by creating a new
	// federation-only user. Double-linking one subject id to two users is
	// prevented by a sparse uniqueness constraint.
	LinkOrCreateFederated(ctx context.Context, claims FederatedClaims, now time.Time) (User, error)

	// TouchLastLogin stamps last_login_at (best effort; callers log failures).
	TouchLastLogin(ctx context.Context, userID string, now time.Time) error
}
