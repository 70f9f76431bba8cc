package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// PostgresStore implements Store over PostgreSQL.
//
// Design notes:
//   - The pgx pool is owned by the caller; this store must NOT close it.
//   - Schema/table identifiers are safely quoted to avoid SQL injection via
//     identifiers.
//   - Errors are mapped to identity sentinel kinds where appropriate.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the store (default "ticketd").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "ticketd",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const userColumns = `
	id, name, email, email_norm, password_hash, federated_id,
	auth_methods, role, avatar_url, is_verified,
	last_login_at, created_at, updated_at`

// CreateUser creates a password-method user.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if s == nil || s.pool == nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
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
	if in.PasswordHash == email || strings.Contains(in.PasswordHash, " ") {
		// A plaintext slipping through here would be a caller bug.
		return User{}, pgInvalid(op, "password hash looks unhashed")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	emailNorm := NormalizeEmail(email)
	userID := ulid.Make().String()

	users := pgIdent(s.schema, "users")

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+users+` (
		     id, name, email, email_norm, password_hash, federated_id,
		     auth_methods, role, avatar_url, is_verified,
		     last_login_at, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, NULL, $6, $7, NULL, FALSE, NULL, $8, $8)`,
		userID, name, email, emailNorm, in.PasswordHash,
		[]string{string(MethodPassword)}, string(RoleCustomer), now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	hash := in.PasswordHash
	return User{
		ID:           userID,
		Name:         name,
		Email:        email,
		EmailNorm:    emailNorm,
		PasswordHash: &hash,
		AuthMethods:  []AuthMethod{MethodPassword},
		Role:         RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// GetUserByID loads a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	if strings.TrimSpace(id) == "" {
		return User{}, pgInvalid(op, "missing id")
	}
	users := pgIdent(s.schema, "users")
	return s.scanUser(ctx, op, `SELECT `+userColumns+` FROM `+users+` WHERE id = $1`, id)
}

// GetUserByEmail loads a user by normalized email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.GetUserByEmail"

	norm := NormalizeEmail(email)
	if norm == "" {
		return User{}, pgInvalid(op, "missing email")
	}
	users := pgIdent(s.schema, "users")
	return s.scanUser(ctx, op, `SELECT `+userColumns+` FROM `+users+` WHERE email_norm = $1`, norm)
}

// LinkOrCreateFederated resolves federated claims to a local user.
//
// Resolution order:
//  1. existing user with this federated subject id;
//  2. existing user with this (provider-verified) email — the subject id is
//     linked and "federated" added to its methods;
//  3. a new federation-only user.
//
// A concurrent link of the same subject id loses the insert race on the
// sparse unique index and is resolved by re-reading the winner's row.
func (s *PostgresStore) LinkOrCreateFederated(ctx context.Context, claims FederatedClaims, now time.Time) (User, error) {
	const op = "identity.LinkOrCreateFederated"

	if s == nil || s.pool == nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
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

	users := pgIdent(s.schema, "users")
	emailNorm := NormalizeEmail(email)

	// 1) by federated subject id.
	u, err := s.scanUser(ctx, op, `SELECT `+userColumns+` FROM `+users+` WHERE federated_id = $1`, subject)
	if err == nil {
		return u, nil
	}
	if !IsNotFound(err) {
		return User{}, err
	}

	// 2) by verified email: link the subject id to the existing account.
	// Without the provider's email-verified assertion the email match is not
	// trustworthy, so linking is skipped and the insert below is left to hit
	// the email uniqueness constraint.
	if claims.EmailVerified {
		linked, err := s.linkByEmail(ctx, op, subject, emailNorm, claims, now)
		if err == nil {
			return linked, nil
		}
		if !IsNotFound(err) {
			return User{}, err
		}
	}

	// 3) create a federation-only user.
	created, err := s.insertFederated(ctx, op, subject, name, email, emailNorm, claims, now)
	if err == nil {
		return created, nil
	}

	// Insert race on the sparse federated_id index: another request linked
	// the same subject first. Re-read the winner.
	var ce ConflictError
	if errors.As(err, &ce) && ce.Field == "federated_id" {
		return s.scanUser(ctx, op, `SELECT `+userColumns+` FROM `+users+` WHERE federated_id = $1`, subject)
	}
	return User{}, err
}

// TouchLastLogin stamps last_login_at.
func (s *PostgresStore) TouchLastLogin(ctx context.Context, userID string, now time.Time) error {
	if strings.TrimSpace(userID) == "" {
		return pgInvalid("identity.TouchLastLogin", "missing user_id")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	users := pgIdent(s.schema, "users")
	_, err := s.pool.Exec(ctx,
		`UPDATE `+users+` SET last_login_at = $2, updated_at = $2 WHERE id = $1`,
		userID, now,
	)
	return err
}

func (s *PostgresStore) linkByEmail(ctx context.Context, op, subject, emailNorm string, claims FederatedClaims, now time.Time) (User, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	users := pgIdent(s.schema, "users")

	row := tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+users+` WHERE email_norm = $1 FOR UPDATE`, emailNorm)
	u, err := scanUserRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return User{}, err
	}

	methods := u.AuthMethods
	if !u.HasMethod(MethodFederated) {
		methods = append(methods, MethodFederated)
	}
	avatar := u.AvatarURL
	if avatar == nil && strings.TrimSpace(claims.AvatarURL) != "" {
		a := strings.TrimSpace(claims.AvatarURL)
		avatar = &a
	}

	_, err = tx.Exec(ctx,
		`UPDATE `+users+` SET
		     federated_id = $2,
		     auth_methods = $3,
		     avatar_url = $4,
		     is_verified = TRUE,
		     updated_at = $5
		 WHERE id = $1`,
		u.ID, subject, methodsToStrings(methods), avatar, now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}

	u.FederatedID = &subject
	u.AuthMethods = methods
	u.AvatarURL = avatar
	u.IsVerified = true
	u.UpdatedAt = now
	return u, nil
}

func (s *PostgresStore) insertFederated(ctx context.Context, op, subject, name, email, emailNorm string, claims FederatedClaims, now time.Time) (User, error) {
	users := pgIdent(s.schema, "users")
	userID := ulid.Make().String()

	var avatar *string
	if a := strings.TrimSpace(claims.AvatarURL); a != "" {
		avatar = &a
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+users+` (
		     id, name, email, email_norm, password_hash, federated_id,
		     auth_methods, role, avatar_url, is_verified,
		     last_login_at, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, NULL, $5, $6, $7, $8, $9, NULL, $10, $10)`,
		userID, name, email, emailNorm, subject,
		[]string{string(MethodFederated)}, string(RoleCustomer),
		avatar, claims.EmailVerified, now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	return User{
		ID:          userID,
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
	}, nil
}

func (s *PostgresStore) scanUser(ctx context.Context, op, query string, args ...any) (User, error) {
	row := s.pool.QueryRow(ctx, query, args...)
	u, err := scanUserRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func scanUserRow(row pgx.Row) (User, error) {
	var (
		u       User
		methods []string
		role    string
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.EmailNorm, &u.PasswordHash, &u.FederatedID,
		&methods, &role, &u.AvatarURL, &u.IsVerified,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	for _, m := range methods {
		u.AuthMethods = append(u.AuthMethods, AuthMethod(m))
	}
	u.Role = Role(role)
	return u, nil
}

// ---- helpers ----

func methodsToStrings(ms []AuthMethod) []string {
	out := make([]string, 0, len(ms))
	seen := map[AuthMethod]bool{}
	for _, m := range ms {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, string(m))
	}
	return out
}

// pgInvalid standardizes invalid input errors.
func pgInvalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names; fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch c {
	case "uq_users_email_norm":
		return "email", true
	case "uq_users_federated_id":
		return "federated_id", true
	default:
		switch {
		case strings.Contains(c, "email"):
			return "email", true
		case strings.Contains(c, "federated"):
			return "federated_id", true
		default:
			return "unique", true
		}
	}
}
