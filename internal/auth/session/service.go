package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ticketd/internal/identity"
	"ticketd/internal/security/token"
)

// UserSource resolves the user behind a session so rotated access tokens
// carry current email and role claims, not the ones from login time.
type UserSource interface {
	GetUserByID(ctx context.Context, id string) (identity.User, error)
}

// Service implements the high-level session operations for ticketd.
//
// It issues access/refresh pairs, rotates refresh tokens with single-use
// semantics, detects replay of already-rotated tokens, and supports
// per-session and per-user revocation.
type Service struct {
	cfg    Config
	codec  TokenCodec
	store  Store
	users  UserSource
	logger *slog.Logger
}

// Issued is the result of issuing or rotating a session.
type Issued struct {
	SessionID    string
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// NewService constructs a Service with the provided configuration, store,
// codec, and user source.
func NewService(cfg Config, store Store, codec TokenCodec, users UserSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, store: store, codec: codec, users: users, logger: logger}
}

// Issue creates a new session row for the user and returns fresh tokens.
//
// The refresh token itself is never persisted; only its one-way digest is.
func (s *Service) Issue(ctx context.Context, now time.Time, user identity.User, client ClientInfo) (Issued, error) {
	refreshPlain, refreshExp, err := s.codec.IssueRefresh(user.ID, now)
	if err != nil {
		return Issued{}, err
	}

	sess, err := s.store.Create(ctx, now, user.ID, token.HashRefreshTokenHex(refreshPlain), refreshExp, client)
	if err != nil {
		return Issued{}, err
	}

	accessToken, accessExp, err := s.codec.IssueAccess(user.ID, user.Email, string(user.Role), now)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		SessionID:    sess.ID,
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: refreshPlain,
		RefreshExp:   refreshExp,
	}, nil
}

// ValidateAccessToken verifies an access token's signature, issuer, and
// expiry. Revocation of individual access tokens is the gateway's concern.
func (s *Service) ValidateAccessToken(tokenStr string, now time.Time) (AccessClaims, error) {
	return s.codec.ParseAccess(tokenStr, now)
}

// Refresh redeems a refresh token for a fresh access/refresh pair.
//
// Security model:
//   - The presented token must verify as a refresh JWT and its digest must
//     still be bound to an active session row.
//   - The swap to the new digest is compare-and-set, so a token can be
//     redeemed at most once even under concurrent requests.
//   - A digest that matches a session's previous hash means the old token
//     was replayed after rotation: every session of that user is revoked
//     and ErrReplayDetected is returned.
//   - All other failures collapse into ErrNoActiveSession so callers cannot
//     distinguish missing, expired, and revoked sessions.
func (s *Service) Refresh(ctx context.Context, now time.Time, refreshPlain string) (Issued, error) {
	refreshPlain = strings.TrimSpace(refreshPlain)
	if refreshPlain == "" || len(refreshPlain) > 4096 {
		return Issued{}, ErrNoActiveSession
	}

	claims, err := s.codec.ParseRefresh(refreshPlain, now)
	if err != nil {
		s.logger.Info("refresh token rejected", "cause", err)
		return Issued{}, ErrNoActiveSession
	}

	oldHash := token.HashRefreshTokenHex(refreshPlain)

	newRefresh, newRefreshExp, err := s.codec.IssueRefresh(claims.UserID, now)
	if err != nil {
		return Issued{}, err
	}
	newHash := token.HashRefreshTokenHex(newRefresh)

	sess, err := s.store.Rotate(ctx, now, oldHash, newHash, newRefreshExp)
	if errors.Is(err, ErrSessionNotFound) {
		return Issued{}, s.handleRotateMiss(ctx, now, oldHash)
	}
	if err != nil {
		return Issued{}, err
	}

	if sess.UserID != claims.UserID {
		// Digest collision across users should be impossible. Revoke the
		// row and fail closed.
		_ = s.store.Revoke(ctx, now, sess.ID, "user mismatch")
		return Issued{}, ErrNoActiveSession
	}

	user, err := s.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			_ = s.store.Revoke(ctx, now, sess.ID, "user deleted")
			return Issued{}, ErrNoActiveSession
		}
		return Issued{}, err
	}

	accessToken, accessExp, err := s.codec.IssueAccess(user.ID, user.Email, string(user.Role), now)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		SessionID:    sess.ID,
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: newRefresh,
		RefreshExp:   newRefreshExp,
	}, nil
}

// handleRotateMiss distinguishes a plain miss from a replay of an
// already-rotated token. Replay revokes the whole account's sessions.
func (s *Service) handleRotateMiss(ctx context.Context, now time.Time, oldHash string) error {
	prev, err := s.store.GetByPreviousHash(ctx, oldHash)
	if errors.Is(err, ErrSessionNotFound) {
		return ErrNoActiveSession
	}
	if err != nil {
		return err
	}
	// Re-confirm the match in constant time before the revoke-all hammer
	// falls; the store lookup is not required to compare digests safely.
	if prev.PreviousTokenHash == nil || !token.DigestEqual(*prev.PreviousTokenHash, oldHash) {
		return ErrNoActiveSession
	}

	n, err := s.store.RevokeAllForUser(ctx, now, prev.UserID, "refresh replay")
	if err != nil {
		return err
	}
	s.logger.Warn("refresh token replay detected, all sessions revoked",
		"user_id", prev.UserID,
		"session_id", prev.ID,
		"sessions_revoked", n,
	)
	return ErrReplayDetected
}

// RevokeByToken revokes the session bound to the given refresh token.
// Used by logout; the token is hashed, never parsed, so even expired or
// malformed tokens can still tear down their row.
func (s *Service) RevokeByToken(ctx context.Context, now time.Time, refreshPlain string) error {
	refreshPlain = strings.TrimSpace(refreshPlain)
	if refreshPlain == "" || len(refreshPlain) > 4096 {
		return ErrNoActiveSession
	}

	err := s.store.RevokeByTokenHash(ctx, now, token.HashRefreshTokenHex(refreshPlain), "logout")
	if errors.Is(err, ErrSessionNotFound) {
		return ErrNoActiveSession
	}
	return err
}

// GetByRefreshToken resolves the session row bound to a refresh token's
// digest. The token is hashed, never parsed.
func (s *Service) GetByRefreshToken(ctx context.Context, refreshPlain string) (Session, error) {
	refreshPlain = strings.TrimSpace(refreshPlain)
	if refreshPlain == "" || len(refreshPlain) > 4096 {
		return Session{}, ErrNoActiveSession
	}

	sess, err := s.store.GetByTokenHash(ctx, token.HashRefreshTokenHex(refreshPlain))
	if errors.Is(err, ErrSessionNotFound) {
		return Session{}, ErrNoActiveSession
	}
	return sess, err
}

// RevokeSession revokes a single session by ID.
func (s *Service) RevokeSession(ctx context.Context, now time.Time, sessionID, reason string) error {
	return s.store.Revoke(ctx, now, sessionID, reason)
}

// RevokeAll revokes all sessions for a user.
func (s *Service) RevokeAll(ctx context.Context, now time.Time, userID, reason string) (int64, error) {
	return s.store.RevokeAllForUser(ctx, now, userID, reason)
}

// GetSession loads a single session row by ID.
func (s *Service) GetSession(ctx context.Context, sessionID string) (Session, error) {
	return s.store.GetByID(ctx, sessionID)
}

// ListSessions returns the user's non-expired sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, now time.Time, userID string) ([]Session, error) {
	return s.store.ListByUser(ctx, now, userID)
}

// RunSweeper deletes expired session rows on the configured interval until
// the context is canceled.
func (s *Service) RunSweeper(ctx context.Context) {
	t := time.NewTicker(s.cfg.SweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := s.store.DeleteExpired(ctx, now.UTC())
			if err != nil {
				s.logger.Error("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("session sweep", "deleted", n)
			}
		}
	}
}
