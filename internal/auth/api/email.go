package authapi

import "context"

// WelcomeMessage is the payload for post-signup email delivery.
type WelcomeMessage struct {
	UserID string
	Email  string
	Name   string
}

// EmailSender delivers transactional mail. The default is a no-op; real
// providers are wired by the embedding application.
type EmailSender interface {
	SendWelcome(ctx context.Context, msg WelcomeMessage) error
}

// NoopEmailSender is the default sender.
type NoopEmailSender struct{}

// SendWelcome discards the message.
func (NoopEmailSender) SendWelcome(_ context.Context, _ WelcomeMessage) error { return nil }
