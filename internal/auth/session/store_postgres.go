package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

const sessionColumns = `
	id, user_id, refresh_token_hash, previous_token_hash,
	user_agent, ip,
	created_at, rotated_at, expires_at, revoked_at, revocation_reason`

var pgIdentRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption customizes a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithSchema overrides the schema the store reads and writes. Used by
// integration tests to isolate runs in throwaway schemas.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) {
		s.schema = schema
	}
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool, schema: "ticketd"}
	for _, opt := range opts {
		opt(s)
	}
	if !pgIdentRe.MatchString(s.schema) {
		return nil, fmt.Errorf("invalid schema name %q", s.schema)
	}
	return s, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "sessions"}.Sanitize()
}

// Create inserts a new session row and returns it.
func (s *PostgresStore) Create(ctx context.Context, now time.Time, userID, tokenHash string, expiresAt time.Time, client ClientInfo) (Session, error) {
	id := ulid.Make().String()

	var ip net.IP
	if client.IP != nil {
		ip = client.IP
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.table()+` (
			id, user_id, refresh_token_hash, previous_token_hash,
			user_agent, ip,
			created_at, rotated_at, expires_at, revoked_at, revocation_reason
		) VALUES (
			$1, $2, $3, NULL,
			$4, $5,
			$6, NULL, $7, NULL, NULL
		)
	`, id, userID, tokenHash, nullIfEmpty(client.UserAgent), ip, now, expiresAt)
	if err != nil {
		return Session{}, err
	}

	return Session{
		ID:               id,
		UserID:           userID,
		RefreshTokenHash: tokenHash,
		UserAgent:        strPtrIfNonEmpty(client.UserAgent),
		IP:               ip,
		CreatedAt:        now,
		ExpiresAt:        expiresAt,
	}, nil
}

// GetByID loads a session row by ID.
func (s *PostgresStore) GetByID(ctx context.Context, sessionID string) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM `+s.table()+`
		WHERE id = $1
	`, sessionID)
	return scanSession(row)
}

// GetByTokenHash loads the session currently bound to the token hash.
func (s *PostgresStore) GetByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM `+s.table()+`
		WHERE refresh_token_hash = $1
	`, tokenHash)
	return scanSession(row)
}

// GetByPreviousHash loads the session whose previous token hash matches.
func (s *PostgresStore) GetByPreviousHash(ctx context.Context, tokenHash string) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM `+s.table()+`
		WHERE previous_token_hash = $1
	`, tokenHash)
	return scanSession(row)
}

// Rotate swaps the token hash in place. The WHERE clause carries the full
// compare-and-set condition, so concurrent redemptions of the same token
// resolve to a single winner without an explicit row lock.
func (s *PostgresStore) Rotate(ctx context.Context, now time.Time, oldHash, newHash string, newExpiresAt time.Time) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE `+s.table()+`
		SET
			previous_token_hash = refresh_token_hash,
			refresh_token_hash = $2,
			rotated_at = $3,
			expires_at = $4
		WHERE refresh_token_hash = $1
		  AND revoked_at IS NULL
		  AND expires_at > $3
		RETURNING `+sessionColumns+`
	`, oldHash, newHash, now, newExpiresAt)
	return scanSession(row)
}

// Revoke revokes a single session (idempotent).
func (s *PostgresStore) Revoke(ctx context.Context, now time.Time, sessionID, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE `+s.table()+`
		SET revoked_at = COALESCE(revoked_at, $2),
		    revocation_reason = COALESCE(revocation_reason, $3)
		WHERE id = $1
	`, sessionID, now, reason)
	return err
}

// RevokeByTokenHash revokes the session bound to the token hash.
func (s *PostgresStore) RevokeByTokenHash(ctx context.Context, now time.Time, tokenHash, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.table()+`
		SET revoked_at = COALESCE(revoked_at, $2),
		    revocation_reason = COALESCE(revocation_reason, $3)
		WHERE refresh_token_hash = $1
	`, tokenHash, now, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RevokeAllForUser revokes every session of a user.
func (s *PostgresStore) RevokeAllForUser(ctx context.Context, now time.Time, userID, reason string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.table()+`
		SET revoked_at = COALESCE(revoked_at, $2),
		    revocation_reason = COALESCE(revocation_reason, $3)
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID, now, reason)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListByUser returns all non-expired sessions of a user, newest first.
func (s *PostgresStore) ListByUser(ctx context.Context, now time.Time, userID string) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM `+s.table()+`
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY created_at DESC
	`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteExpired removes rows whose expiry has passed.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM `+s.table()+`
		WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (Session, error) {
	var sess Session
	err := row.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.RefreshTokenHash,
		&sess.PreviousTokenHash,
		&sess.UserAgent,
		&sess.IP,
		&sess.CreatedAt,
		&sess.RotatedAt,
		&sess.ExpiresAt,
		&sess.RevokedAt,
		&sess.RevocationReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func strPtrIfNonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
