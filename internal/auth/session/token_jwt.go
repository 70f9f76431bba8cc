package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the minimal identity envelope propagated across HTTP handlers.
type AccessClaims struct {
	UserID    string
	Email     string
	Role      string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Issuer    string
}

// RefreshClaims are the claims carried by a refresh token. The token ID is a
// random UUID so two refresh tokens minted in the same second never collide.
type RefreshClaims struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Issuer    string
}

// TokenCodec issues and verifies both token kinds.
type TokenCodec interface {
	IssueAccess(userID, email, role string, now time.Time) (token string, exp time.Time, err error)
	IssueRefresh(userID string, now time.Time) (token string, exp time.Time, err error)
	ParseAccess(token string, now time.Time) (AccessClaims, error)
	ParseRefresh(token string, now time.Time) (RefreshClaims, error)
}

// Both token kinds are HS256 over the same secret, so each one carries a
// kind claim and the parsers reject the other kind. Without it a refresh
// token would verify as a bearer credential.
const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

type accessJWTClaims struct {
	Kind  string `json:"kind"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type refreshJWTClaims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

type hmacCodec struct {
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	clockSkew  time.Duration
	secret     []byte
}

// NewHMACCodec builds a TokenCodec signing both token kinds with HMAC-SHA256
// and a single shared secret. Verification enforces the signing method, the
// issuer, and expiry with the configured clock-skew leeway.
func NewHMACCodec(cfg Config) (TokenCodec, error) {
	if len(cfg.JWTSecret) == 0 {
		return nil, ErrConfig
	}
	return &hmacCodec{
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		clockSkew:  cfg.ClockSkew,
		secret:     cfg.JWTSecret,
	}, nil
}

func (c *hmacCodec) IssueAccess(userID, email, role string, now time.Time) (string, time.Time, error) {
	exp := now.Add(c.accessTTL)

	claims := accessJWTClaims{
		Kind:  kindAccess,
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (c *hmacCodec) IssueRefresh(userID string, now time.Time) (string, time.Time, error) {
	exp := now.Add(c.refreshTTL)

	claims := refreshJWTClaims{
		Kind: kindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (c *hmacCodec) parserAt(now time.Time) *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
}

func (c *hmacCodec) keyFunc(*jwt.Token) (any, error) {
	return c.secret, nil
}

func (c *hmacCodec) ParseAccess(token string, now time.Time) (AccessClaims, error) {
	var claims accessJWTClaims
	if _, err := c.parserAt(now).ParseWithClaims(token, &claims, c.keyFunc); err != nil {
		return AccessClaims{}, mapParseErr(err)
	}
	if claims.Kind != kindAccess || claims.Subject == "" || claims.IssuedAt == nil {
		return AccessClaims{}, ErrTokenMalformed
	}

	return AccessClaims{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
		IssuedAt:  claims.IssuedAt.Time,
		Issuer:    claims.Issuer,
	}, nil
}

func (c *hmacCodec) ParseRefresh(token string, now time.Time) (RefreshClaims, error) {
	var claims refreshJWTClaims
	if _, err := c.parserAt(now).ParseWithClaims(token, &claims, c.keyFunc); err != nil {
		return RefreshClaims{}, mapParseErr(err)
	}
	if claims.Kind != kindRefresh || claims.Subject == "" || claims.ID == "" || claims.IssuedAt == nil {
		return RefreshClaims{}, ErrTokenMalformed
	}

	return RefreshClaims{
		UserID:    claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
		IssuedAt:  claims.IssuedAt.Time,
		Issuer:    claims.Issuer,
	}, nil
}

// mapParseErr collapses library failures into the package's two verification
// errors so callers never branch on jwt internals.
func mapParseErr(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrTokenMalformed
}
