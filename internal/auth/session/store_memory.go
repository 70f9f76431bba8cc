package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// InMemoryStore is a dev-only fallback when the database is not configured.
// It implements the full Store contract, including compare-and-set rotation,
// under a single mutex.
type InMemoryStore struct {
	mu       sync.Mutex
	byID     map[string]*Session
	byHash   map[string]string // refresh_token_hash -> session id
	byPrev   map[string]string // previous_token_hash -> session id
	byUserID map[string][]string
}

// NewInMemoryStore constructs an in-memory Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:     make(map[string]*Session),
		byHash:   make(map[string]string),
		byPrev:   make(map[string]string),
		byUserID: make(map[string][]string),
	}
}

// Create inserts a new session row bound to the given token hash.
func (s *InMemoryStore) Create(ctx context.Context, now time.Time, userID, tokenHash string, expiresAt time.Time, client ClientInfo) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := Session{
		ID:               ulid.Make().String(),
		UserID:           userID,
		RefreshTokenHash: tokenHash,
		UserAgent:        strPtrIfNonEmpty(client.UserAgent),
		IP:               client.IP,
		CreatedAt:        now,
		ExpiresAt:        expiresAt,
	}
	s.byID[sess.ID] = &sess
	s.byHash[tokenHash] = sess.ID
	s.byUserID[userID] = append(s.byUserID[userID], sess.ID)
	return sess, nil
}

// GetByID loads a session row by ID.
func (s *InMemoryStore) GetByID(ctx context.Context, sessionID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[sessionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return *sess, nil
}

// GetByTokenHash loads the session currently bound to the token hash.
func (s *InMemoryStore) GetByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byHash[tokenHash]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return *s.byID[id], nil
}

// GetByPreviousHash loads the session whose previous token hash matches.
func (s *InMemoryStore) GetByPreviousHash(ctx context.Context, tokenHash string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPrev[tokenHash]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return *s.byID[id], nil
}

// Rotate swaps the token hash in place under the store mutex.
func (s *InMemoryStore) Rotate(ctx context.Context, now time.Time, oldHash, newHash string, newExpiresAt time.Time) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byHash[oldHash]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	sess := s.byID[id]
	if !sess.Active(now) {
		return Session{}, ErrSessionNotFound
	}

	if sess.PreviousTokenHash != nil {
		delete(s.byPrev, *sess.PreviousTokenHash)
	}
	delete(s.byHash, oldHash)

	prev := oldHash
	rotated := now
	sess.PreviousTokenHash = &prev
	sess.RefreshTokenHash = newHash
	sess.RotatedAt = &rotated
	sess.ExpiresAt = newExpiresAt

	s.byHash[newHash] = id
	s.byPrev[prev] = id
	return *sess, nil
}

// Revoke revokes a single session (idempotent).
func (s *InMemoryStore) Revoke(ctx context.Context, now time.Time, sessionID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[sessionID]
	if !ok {
		return nil
	}
	revokeSession(sess, now, reason)
	return nil
}

// RevokeByTokenHash revokes the session bound to the token hash.
func (s *InMemoryStore) RevokeByTokenHash(ctx context.Context, now time.Time, tokenHash, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byHash[tokenHash]
	if !ok {
		return ErrSessionNotFound
	}
	revokeSession(s.byID[id], now, reason)
	return nil
}

// RevokeAllForUser revokes every session of a user.
func (s *InMemoryStore) RevokeAllForUser(ctx context.Context, now time.Time, userID, reason string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, id := range s.byUserID[userID] {
		sess := s.byID[id]
		if sess == nil || sess.RevokedAt != nil {
			continue
		}
		revokeSession(sess, now, reason)
		n++
	}
	return n, nil
}

// ListByUser returns all non-expired sessions of a user, newest first.
func (s *InMemoryStore) ListByUser(ctx context.Context, now time.Time, userID string) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Session
	for _, id := range s.byUserID[userID] {
		sess := s.byID[id]
		if sess == nil || !now.Before(sess.ExpiresAt) {
			continue
		}
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteExpired removes rows whose expiry has passed.
func (s *InMemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.byID {
		if now.Before(sess.ExpiresAt) {
			continue
		}
		delete(s.byID, id)
		delete(s.byHash, sess.RefreshTokenHash)
		if sess.PreviousTokenHash != nil {
			delete(s.byPrev, *sess.PreviousTokenHash)
		}
		s.byUserID[sess.UserID] = removeID(s.byUserID[sess.UserID], id)
		if len(s.byUserID[sess.UserID]) == 0 {
			delete(s.byUserID, sess.UserID)
		}
		n++
	}
	return n, nil
}

func revokeSession(sess *Session, now time.Time, reason string) {
	if sess.RevokedAt != nil {
		return
	}
	revoked := now
	r := reason
	sess.RevokedAt = &revoked
	sess.RevocationReason = &r
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
