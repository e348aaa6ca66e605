// Package out defines the outbound ports of the processing engine.
package out

import (
	"context"
	"time"

	"mailpilot/core/domain"
)

// TokenBundle is the result of a provider token refresh.
type TokenBundle struct {
	AccessToken  string
	RefreshToken string // empty unless the provider rotated it
	ExpiresAt    time.Time
}

// MailProvider is the uniform capability set a mail provider adapter must
// implement. Query strings are provider-native; they are produced by the rule
// compiler for the same provider and are opaque to everyone else.
type MailProvider interface {
	ProviderType() domain.Provider

	// Search returns message refs matching the compiled query within the
	// recency window. Zero matches is an empty slice, not an error.
	Search(ctx context.Context, accessToken, query string, since time.Time, maxResults int) ([]domain.MatchedMessage, error)

	// FetchDetails loads the subject, addressing, and plaintext body of a
	// matched message.
	FetchDetails(ctx context.Context, accessToken string, ref domain.MatchedMessage) (*domain.FetchedMessage, error)

	// CreateDraft creates a reply draft threaded onto the original message
	// and returns the provider draft id.
	CreateDraft(ctx context.Context, accessToken string, msg *domain.FetchedMessage, body string) (string, error)

	// SendReply sends a reply in the original message's thread immediately.
	SendReply(ctx context.Context, accessToken string, msg *domain.FetchedMessage, body string) error

	// RefreshToken exchanges a refresh secret for a new token bundle.
	RefreshToken(ctx context.Context, refreshToken string) (*TokenBundle, error)
}

// ProviderRegistry resolves the adapter for a provider.
type ProviderRegistry interface {
	Get(provider domain.Provider) (MailProvider, bool)
}
