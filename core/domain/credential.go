package domain

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies a connected mail provider.
type Provider string

const (
	ProviderGmail   Provider = "gmail"
	ProviderOutlook Provider = "outlook"
)

// Valid reports whether the provider is one we can process.
func (p Provider) Valid() bool {
	return p == ProviderGmail || p == ProviderOutlook
}

// Credential holds OAuth token material for one (user, provider) pair.
// The access and refresh secrets are stored encrypted; plaintext only ever
// exists in memory on the way to a provider call.
type Credential struct {
	ID           int64      `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Provider     Provider   `json:"provider"`
	Email        string     `json:"email"`
	AccessToken  string     `json:"-"` // encrypted at rest
	RefreshToken string     `json:"-"` // encrypted at rest, empty when the provider issued none
	ExpiresAt    *time.Time `json:"expires_at,omitempty"` // nil means non-expiring
	IsConnected  bool       `json:"is_connected"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Expired reports whether the access secret is past its expiry at the given
// instant. Credentials without an expiry never expire.
func (c *Credential) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Before(*c.ExpiresAt)
}
