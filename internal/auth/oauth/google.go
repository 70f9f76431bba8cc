package oauth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"

	"ticketd/internal/identity"
)

// ErrExchange is returned when the code exchange or ID-token verification
// fails. The underlying cause is wrapped for logs.
var ErrExchange = errors.New("oauth exchange failed")

// Exchanger abstracts the provider round-trip so HTTP handlers can be
// tested without Google.
type Exchanger interface {
	// AuthCodeURL builds the consent URL carrying the CSRF state.
	AuthCodeURL(state string) string

	// Exchange redeems the authorization code and returns the verified
	// identity claims from the provider's ID token.
	Exchange(ctx context.Context, code string) (identity.FederatedClaims, error)
}

type googleExchanger struct {
	oauth    *oauth2.Config
	clientID string
	// validate is swappable for tests.
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

// NewGoogleExchanger builds an Exchanger against Google's endpoints.
func NewGoogleExchanger(cfg Config) (Exchanger, error) {
	if !cfg.Enabled() || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, ErrConfig
	}
	return &googleExchanger{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		clientID: cfg.ClientID,
		validate: idtoken.Validate,
	}, nil
}

func (g *googleExchanger) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state)
}

func (g *googleExchanger) Exchange(ctx context.Context, code string) (identity.FederatedClaims, error) {
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return identity.FederatedClaims{}, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return identity.FederatedClaims{}, fmt.Errorf("%w: no id_token in response", ErrExchange)
	}

	payload, err := g.validate(ctx, raw, g.clientID)
	if err != nil {
		return identity.FederatedClaims{}, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	return g.claimsFromPayload(payload)
}

func (g *googleExchanger) claimsFromPayload(payload *idtoken.Payload) (identity.FederatedClaims, error) {
	claims := identity.FederatedClaims{
		Subject:       payload.Subject,
		Email:         claimString(payload, "email"),
		Name:          claimString(payload, "name"),
		AvatarURL:     claimString(payload, "picture"),
		EmailVerified: claimBool(payload, "email_verified"),
	}
	if claims.Subject == "" || claims.Email == "" {
		return identity.FederatedClaims{}, fmt.Errorf("%w: incomplete id_token claims", ErrExchange)
	}
	return claims, nil
}

func claimString(p *idtoken.Payload, key string) string {
	v, _ := p.Claims[key].(string)
	return v
}

func claimBool(p *idtoken.Payload, key string) bool {
	v, _ := p.Claims[key].(bool)
	return v
}
