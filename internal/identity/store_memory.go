package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// InMemoryStore is a dev-only fallback when the database is not configured.
// It enforces the same uniqueness rules as the Postgres store: one user per
// normalized email, one user per federated subject id.
type InMemoryStore struct {
	mu          sync.Mutex
	byID        map[string]*User
	byEmailNorm map[string]string
	byFederated map[string]string
}

// NewInMemoryStore constructs an in-memory Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:        make(map[string]*User),
		byEmailNorm: make(map[string]string),
		byFederated: make(map[string]string),
	}
}

// CreateUser creates a password-method user.
func (s *InMemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if name == "" {
		return User{}, pgInvalid(op, "name is required")
	}
	if !ValidEmail(email) {
		return User{}, pgInvalid(op, "invalid email")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return User{}, pgInvalid(op, "password hash is required")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	emailNorm := NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmailNorm[emailNorm]; taken {
		return User{}, ConflictError{Op: op, Field: "email"}
	}

	hash := in.PasswordHash
	u := User{
		ID:           ulid.Make().String(),
		Name:         name,
		Email:        email,
		EmailNorm:    emailNorm,
		PasswordHash: &hash,
		AuthMethods:  []AuthMethod{MethodPassword},
		Role:         RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[u.ID] = &u
	s.byEmailNorm[emailNorm] = u.ID
	return u, nil
}

// GetUserByID loads a user by ID.
func (s *InMemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return *u, nil
}

// GetUserByEmail loads a user by normalized email.
func (s *InMemoryStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.GetUserByEmail"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmailNorm[NormalizeEmail(email)]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return *s.byID[id], nil
}

// LinkOrCreateFederated resolves federated claims to a local user, with the
// same resolution order as the Postgres store.
func (s *InMemoryStore) LinkOrCreateFederated(ctx context.Context, claims FederatedClaims, now time.Time) (User, error) {
	const op = "identity.LinkOrCreateFederated"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	subject := strings.TrimSpace(claims.Subject)
	email := strings.TrimSpace(claims.Email)
	if subject == "" {
		return User{}, pgInvalid(op, "missing federated subject")
	}
	if !ValidEmail(email) {
		return User{}, pgInvalid(op, "invalid email")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	name := strings.TrimSpace(claims.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	emailNorm := NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byFederated[subject]; ok {
		return *s.byID[id], nil
	}

	if id, ok := s.byEmailNorm[emailNorm]; ok {
		if !claims.EmailVerified {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
		u := s.byID[id]
		u.FederatedID = &subject
		if !u.HasMethod(MethodFederated) {
			u.AuthMethods = append(u.AuthMethods, MethodFederated)
		}
		if u.AvatarURL == nil {
			if a := strings.TrimSpace(claims.AvatarURL); a != "" {
				u.AvatarURL = &a
			}
		}
		u.IsVerified = true
		u.UpdatedAt = now
		s.byFederated[subject] = id
		return *u, nil
	}

	var avatar *string
	if a := strings.TrimSpace(claims.AvatarURL); a != "" {
		avatar = &a
	}
	u := User{
		ID:          ulid.Make().String(),
		Name:        name,
		Email:       email,
		EmailNorm:   emailNorm,
		FederatedID: &subject,
		AuthMethods: []AuthMethod{MethodFederated},
		Role:        RoleCustomer,
		AvatarURL:   avatar,
		IsVerified:  claims.EmailVerified,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.byID[u.ID] = &u
	s.byEmailNorm[emailNorm] = u.ID
	s.byFederated[subject] = u.ID
	return u, nil
}

// TouchLastLogin stamps last_login_at.
func (s *InMemoryStore) TouchLastLogin(ctx context.Context, userID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return NotFoundError{Op: "identity.TouchLastLogin", Resource: "user"}
	}
	stamp := now
	u.LastLoginAt = &stamp
	u.UpdatedAt = now
	return nil
}
