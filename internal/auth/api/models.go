package authapi

import (
	"time"

	"ticketd/internal/auth/session"
	"ticketd/internal/identity"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type revokeRequest struct {
	SessionID string `json:"session_id"`
}

// userResponse is the sanitized user view. The password digest never leaves
// the store layer.
type userResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	AuthMethods []string   `json:"auth_methods"`
	AvatarURL   *string    `json:"avatar_url,omitempty"`
	IsVerified  bool       `json:"is_verified"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type tokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type authResponse struct {
	User   userResponse      `json:"user"`
	Tokens tokenPairResponse `json:"tokens"`
}

type refreshResponse struct {
	Tokens tokenPairResponse `json:"tokens"`
}

type logoutResponse struct {
	Revoked bool `json:"revoked"`
}

type revokeResponse struct {
	SessionID string `json:"session_id"`
	Revoked   bool   `json:"revoked"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

// sessionInfoResponse is the sanitized session view; token digests never
// leave the store layer.
type sessionInfoResponse struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RotatedAt *time.Time `json:"rotated_at,omitempty"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	UserAgent *string    `json:"user_agent,omitempty"`
	IP        string     `json:"ip,omitempty"`
	Current   bool       `json:"current"`
}

type sessionsResponse struct {
	Sessions []sessionInfoResponse `json:"sessions"`
}

func toUserResponse(u identity.User) userResponse {
	methods := make([]string, 0, len(u.AuthMethods))
	for _, m := range u.AuthMethods {
		methods = append(methods, string(m))
	}
	return userResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        string(u.Role),
		AuthMethods: methods,
		AvatarURL:   u.AvatarURL,
		IsVerified:  u.IsVerified,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func toSessionInfoResponse(s session.Session, current bool) sessionInfoResponse {
	resp := sessionInfoResponse{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
		RotatedAt: s.RotatedAt,
		RevokedAt: s.RevokedAt,
		UserAgent: s.UserAgent,
		Current:   current,
	}
	if s.IP != nil {
		resp.IP = s.IP.String()
	}
	return resp
}

func toTokenPairResponse(issued session.Issued) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      issued.AccessToken,
		AccessExpiresAt:  issued.AccessExp,
		RefreshToken:     issued.RefreshToken,
		RefreshExpiresAt: issued.RefreshExp,
	}
}
