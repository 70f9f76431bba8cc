package authapi

import (
	"context"
	"net/http"
	"time"

	"ticketd/internal/httpx"
	"ticketd/internal/identity"
	"ticketd/internal/security/token"
)

// Identity is the minimal authenticated principal attached to the request
// context for downstream handlers.
type Identity struct {
	ID    string
	Email string
	Role  identity.Role
}

type ctxKey int

const identityKey ctxKey = iota

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// ContextWithIdentity returns ctx carrying id. Downstream packages use it
// to stand in for the gateway in their own tests.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Authenticated guards a handler: it extracts the bearer token (header
// first, then cookie), consults the revocation registry, verifies the
// token, and resolves the subject to a live user.
//
// Every failure surfaces as the same 401 so callers cannot distinguish a
// revoked token from an expired one or a deleted account; the specific
// cause is only logged.
func (h *Handler) Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := h.authenticate(w, r)
		if !ok {
			return
		}
		ctx := ContextWithIdentity(r.Context(), Identity{
			ID:    user.ID,
			Email: user.Email,
			Role:  user.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (identity.User, bool) {
	ctx := r.Context()
	now := time.Now().UTC()

	tok := h.accessTokenFromRequest(r)
	if tok == "" {
		h.unauthorized(w, r, "missing token", nil)
		return identity.User{}, false
	}

	revoked, err := h.revocations.IsRevoked(ctx, token.HashSHA256Hex(tok))
	if err != nil {
		h.log.Error("auth.gateway.revocation_check.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return identity.User{}, false
	}
	if revoked {
		h.unauthorized(w, r, "token revoked", nil)
		return identity.User{}, false
	}

	claims, err := h.sessions.ValidateAccessToken(tok, now)
	if err != nil {
		h.unauthorized(w, r, "token rejected", err)
		return identity.User{}, false
	}

	user, err := h.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			h.unauthorized(w, r, "user not found", nil)
			return identity.User{}, false
		}
		h.log.Error("auth.gateway.user_lookup.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return identity.User{}, false
	}

	return user, true
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request, cause string, err error) {
	if err != nil {
		h.log.Info("auth.gateway.reject", "cause", cause, "err", err, "path", r.URL.Path)
	} else {
		h.log.Info("auth.gateway.reject", "cause", cause, "path", r.URL.Path)
	}
	httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
}
