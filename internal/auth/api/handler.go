package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"ticketd/internal/auth/oauth"
	"ticketd/internal/auth/revocation"
	"ticketd/internal/auth/session"
	"ticketd/internal/httpx"
	"ticketd/internal/identity"
	"ticketd/internal/security/password"
	"ticketd/internal/security/token"
)

const minPasswordLength = 8

// Handler wires the HTTP auth endpoints to the identity and session
// services.
type Handler struct {
	log *slog.Logger
	cfg Config

	users       identity.Store
	sessions    *session.Service
	revocations revocation.Registry
	hasher      *password.Hasher

	oauthEx     oauth.Exchanger
	emailSender EmailSender

	// dummyHash keeps login timing flat when the email is unknown.
	dummyHash string
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithEmailSender overrides the default no-op email sender.
func WithEmailSender(sender EmailSender) HandlerOption {
	return func(h *Handler) {
		if sender != nil {
			h.emailSender = sender
		}
	}
}

// WithOAuth enables the federated login endpoints.
func WithOAuth(ex oauth.Exchanger) HandlerOption {
	return func(h *Handler) {
		h.oauthEx = ex
	}
}

// NewHandler constructs the auth Handler.
func NewHandler(log *slog.Logger, cfg Config, users identity.Store, sessions *session.Service, revocations revocation.Registry, hasher *password.Hasher, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil || sessions == nil || revocations == nil || hasher == nil {
		return nil, errors.New("authapi: missing dependency")
	}

	h := &Handler{
		log:         log,
		cfg:         cfg,
		users:       users,
		sessions:    sessions,
		revocations: revocations,
		hasher:      hasher,
		emailSender: NoopEmailSender{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	if dummy, err := hasher.Hash("dummy-password-for-timing-only"); err == nil {
		h.dummyHash = dummy
	}

	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/signup", h.handleSignup)
	mux.HandleFunc("/login", h.handleLogin)
	mux.HandleFunc("/logout", h.handleLogout)
	mux.HandleFunc("/refresh", h.handleRefresh)
	mux.HandleFunc("/revoke", h.handleRevoke)
	mux.HandleFunc("/sessions", h.handleSessions)
	mux.HandleFunc("/oauth/start", h.handleOAuthStart)
	mux.HandleFunc("/oauth/callback", h.handleOAuthCallback)
	mux.HandleFunc("/me", h.handleMe)
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req signupRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" || !identity.ValidEmail(email) {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "name and a valid email are required")
		return
	}
	if len(req.Password) < minPasswordLength {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "password is too short")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	digest, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.log.Error("auth.signup.hash.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	user, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Name:         name,
		Email:        email,
		PasswordHash: digest,
		Now:          now,
	})
	if err != nil {
		if identity.IsConflict(err) {
			httpx.WriteError(w, http.StatusBadRequest, "email_taken", "email is already registered")
			return
		}
		if identity.IsInvalidInput(err) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid input")
			return
		}
		h.log.Error("auth.signup.create.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	issued, err := h.sessions.Issue(ctx, now, user, clientInfo(r, h.cfg.TrustProxy))
	if err != nil {
		h.log.Error("auth.signup.issue.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.stampLogin(ctx, user.ID, now)
	h.sendWelcome(ctx, user)

	h.setSessionCookies(w, issued)
	httpx.WriteJSON(w, http.StatusCreated, authResponse{
		User:   toUserResponse(user),
		Tokens: toTokenPairResponse(issued),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	user, err := h.users.GetUserByEmail(ctx, email)
	if err != nil {
		if identity.IsNotFound(err) || identity.IsInvalidInput(err) {
			// Timing resistance: run a dummy verify when the user is missing.
			h.dummyVerify(req.Password)
			h.invalidCredentials(w, r, "unknown email")
			return
		}
		h.log.Error("auth.login.lookup.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	if user.PasswordHash == nil || !user.HasMethod(identity.MethodPassword) {
		h.dummyVerify(req.Password)
		h.invalidCredentials(w, r, "no password method")
		return
	}

	ok, err := h.hasher.Verify(req.Password, *user.PasswordHash)
	if err != nil {
		// A corrupt digest is a verification failure, never a crash.
		h.log.Error("auth.login.verify.fail", "err", err, "user_id", user.ID)
		h.invalidCredentials(w, r, "corrupt digest")
		return
	}
	if !ok {
		h.invalidCredentials(w, r, "bad password")
		return
	}

	issued, err := h.sessions.Issue(ctx, now, user, clientInfo(r, h.cfg.TrustProxy))
	if err != nil {
		h.log.Error("auth.login.issue.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.stampLogin(ctx, user.ID, now)

	h.setSessionCookies(w, issued)
	httpx.WriteJSON(w, http.StatusOK, authResponse{
		User:   toUserResponse(user),
		Tokens: toTokenPairResponse(issued),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	refreshToken := h.refreshTokenFromRequest(r, req.RefreshToken)
	if refreshToken == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_or_expired_session", "no active session")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	issued, err := h.sessions.Refresh(ctx, now, refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrReplayDetected), errors.Is(err, session.ErrNoActiveSession):
			// Replay already triggered the revoke-all inside the service;
			// the client sees the same uniform failure either way.
			h.clearSessionCookies(w)
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_or_expired_session", "no active session")
		default:
			h.log.Error("auth.refresh.fail", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.setSessionCookies(w, issued)
	httpx.WriteJSON(w, http.StatusOK, refreshResponse{Tokens: toTokenPairResponse(issued)})
}

// handleLogout cuts off both credentials: the access token goes into the
// revocation registry and the refresh token's session row is revoked.
// Failures are logged but never fail the logout response.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req logoutRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	ctx := r.Context()
	now := time.Now().UTC()

	if accessToken := h.accessTokenFromRequest(r); accessToken != "" {
		// Only a token that still verifies needs a registry entry; an
		// expired or forged one can never authenticate again anyway.
		if claims, err := h.sessions.ValidateAccessToken(accessToken, now); err == nil {
			if err := h.revocations.Revoke(ctx, token.HashSHA256Hex(accessToken), claims.ExpiresAt); err != nil {
				h.log.Error("auth.logout.revoke_access.fail", "err", err)
			}
		}
	}

	if refreshToken := h.refreshTokenFromRequest(r, req.RefreshToken); refreshToken != "" {
		err := h.sessions.RevokeByToken(ctx, now, refreshToken)
		if err != nil && !errors.Is(err, session.ErrNoActiveSession) {
			h.log.Error("auth.logout.revoke_session.fail", "err", err)
		}
	}

	h.clearSessionCookies(w)
	httpx.WriteJSON(w, http.StatusOK, logoutResponse{Revoked: true})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req revokeRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	sess, err := h.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		h.log.Error("auth.revoke.lookup.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	// Owners revoke their own sessions; admins may revoke anyone's.
	// Foreign sessions are indistinguishable from missing ones.
	if sess.UserID != user.ID && user.Role != identity.RoleAdmin {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}

	if err := h.sessions.RevokeSession(ctx, now, sess.ID, "revoked by user"); err != nil {
		h.log.Error("auth.revoke.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, revokeResponse{SessionID: sess.ID, Revoked: true})
}

// handleSessions lists the caller's live sessions so a client can pick one
// to hand to /revoke. The session behind the presented refresh token is
// flagged as current.
func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	sessions, err := h.sessions.ListSessions(ctx, now, user.ID)
	if err != nil {
		h.log.Error("auth.sessions.list.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	currentHash := ""
	if refreshToken := h.refreshTokenFromRequest(r, ""); refreshToken != "" {
		if sess, err := h.sessions.GetByRefreshToken(ctx, refreshToken); err == nil && sess.UserID == user.ID {
			currentHash = sess.RefreshTokenHash
		}
	}

	out := make([]sessionInfoResponse, 0, len(sessions))
	for _, sess := range sessions {
		current := currentHash != "" && token.DigestEqual(sess.RefreshTokenHash, currentHash)
		out = append(out, toSessionInfoResponse(sess, current))
	}
	httpx.WriteJSON(w, http.StatusOK, sessionsResponse{Sessions: out})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	httpx.WriteJSON(w, http.StatusOK, meResponse{User: toUserResponse(user)})
}

func (h *Handler) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.oauthEx == nil {
		http.NotFound(w, r)
		return
	}

	state, err := oauth.NewState()
	if err != nil {
		h.log.Error("auth.oauth.state.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.setStateCookie(w, state, time.Now().UTC())
	http.Redirect(w, r, h.oauthEx.AuthCodeURL(state), http.StatusFound)
}

func (h *Handler) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.oauthEx == nil {
		http.NotFound(w, r)
		return
	}

	recorded := h.readStateCookie(r)
	presented := strings.TrimSpace(r.URL.Query().Get("state"))
	if err := oauth.VerifyState(recorded, presented); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "state_mismatch", "oauth state mismatch")
		return
	}
	h.clearStateCookie(w)

	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	claims, err := h.oauthEx.Exchange(ctx, code)
	if err != nil {
		h.log.Warn("auth.oauth.exchange.fail", "err", err)
		httpx.WriteError(w, http.StatusUnauthorized, "oauth_failed", "federated login failed")
		return
	}

	user, err := h.users.LinkOrCreateFederated(ctx, claims, now)
	if err != nil {
		if identity.IsConflict(err) {
			httpx.WriteError(w, http.StatusBadRequest, "email_taken", "email is already registered")
			return
		}
		h.log.Error("auth.oauth.link.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	issued, err := h.sessions.Issue(ctx, now, user, clientInfo(r, h.cfg.TrustProxy))
	if err != nil {
		h.log.Error("auth.oauth.issue.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.stampLogin(ctx, user.ID, now)

	h.setSessionCookies(w, issued)
	http.Redirect(w, r, h.cfg.PostLoginRedirect, http.StatusFound)
}

// ---- helpers ----

func (h *Handler) invalidCredentials(w http.ResponseWriter, r *http.Request, cause string) {
	// The client never learns whether the email or the password was wrong.
	h.log.Info("auth.login.reject", "cause", cause, "path", r.URL.Path)
	httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
}

func (h *Handler) dummyVerify(pw string) {
	if h.dummyHash != "" {
		_, _ = h.hasher.Verify(pw, h.dummyHash)
	}
}

func (h *Handler) stampLogin(ctx context.Context, userID string, now time.Time) {
	if err := h.users.TouchLastLogin(ctx, userID, now); err != nil {
		h.log.Warn("auth.last_login.stamp.fail", "err", err, "user_id", userID)
	}
}

func (h *Handler) sendWelcome(ctx context.Context, user identity.User) {
	if err := h.emailSender.SendWelcome(ctx, WelcomeMessage{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}); err != nil {
		h.log.Error("auth.welcome_email.fail", "err", err, "user_id", user.ID)
	}
}

func clientInfo(r *http.Request, trustProxy bool) session.ClientInfo {
	return session.ClientInfo{
		UserAgent: strings.TrimSpace(r.UserAgent()),
		IP:        clientIP(r, trustProxy),
	}
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
