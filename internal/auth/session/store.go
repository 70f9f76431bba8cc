package session

import (
	"context"
	"net"
	"time"
)

// ClientInfo describes the client that owns a session. Both fields are
// best-effort metadata taken from the login request.
type ClientInfo struct {
	UserAgent string
	IP        net.IP
}

// Session mirrors the ticketd.sessions row backing one refresh token.
//
// RefreshTokenHash holds the digest of the currently valid refresh token.
// PreviousTokenHash holds the digest the row carried before its most recent
// rotation; a lookup hit on it means an already-rotated token was replayed.
type Session struct {
	ID                string
	UserID            string
	RefreshTokenHash  string
	PreviousTokenHash *string
	UserAgent         *string
	IP                net.IP
	CreatedAt         time.Time
	RotatedAt         *time.Time
	ExpiresAt         time.Time
	RevokedAt         *time.Time
	RevocationReason  *string
}

// Active reports whether the session can still redeem its refresh token at
// the given instant.
func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Store abstracts persistence for session state.
//
// Rotate must be atomic: two concurrent redemptions of the same refresh
// token must resolve to exactly one winner.
type Store interface {
	// Create inserts a new session row bound to the given token hash.
	Create(ctx context.Context, now time.Time, userID, tokenHash string, expiresAt time.Time, client ClientInfo) (Session, error)

	// GetByID loads a session row by ID.
	GetByID(ctx context.Context, sessionID string) (Session, error)

	// GetByTokenHash loads the session currently bound to the token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (Session, error)

	// GetByPreviousHash loads the session whose previous token hash matches.
	// A hit means the presented token was already rotated away.
	GetByPreviousHash(ctx context.Context, tokenHash string) (Session, error)

	// Rotate swaps the session's token hash in place, compare-and-set style:
	// the update applies only if the row is still active and still bound to
	// oldHash. Returns ErrSessionNotFound when the swap did not apply.
	Rotate(ctx context.Context, now time.Time, oldHash, newHash string, newExpiresAt time.Time) (Session, error)

	// Revoke revokes a single session (idempotent).
	Revoke(ctx context.Context, now time.Time, sessionID, reason string) error

	// RevokeByTokenHash revokes the session bound to the token hash.
	// Returns ErrSessionNotFound when no active row is bound to it.
	RevokeByTokenHash(ctx context.Context, now time.Time, tokenHash, reason string) error

	// RevokeAllForUser revokes every session of a user and reports how many
	// rows it touched.
	RevokeAllForUser(ctx context.Context, now time.Time, userID, reason string) (int64, error)

	// ListByUser returns all non-expired sessions of a user, newest first.
	ListByUser(ctx context.Context, now time.Time, userID string) ([]Session, error)

	// DeleteExpired removes rows whose expiry has passed and reports how
	// many it deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
