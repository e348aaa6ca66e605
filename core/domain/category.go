package domain

import (
	"time"

	"github.com/google/uuid"
)

// WritingStyle selects the tone used when generating reply drafts.
type WritingStyle string

const (
	StyleProfessional WritingStyle = "professional"
	StyleFriendly     WritingStyle = "friendly"
	StyleConcierge    WritingStyle = "concierge"
	StyleDirect       WritingStyle = "direct"
	StyleEmpathetic   WritingStyle = "empathetic"
)

// Valid reports whether the style is one of the fixed enumeration.
func (s WritingStyle) Valid() bool {
	switch s {
	case StyleProfessional, StyleFriendly, StyleConcierge, StyleDirect, StyleEmpathetic:
		return true
	}
	return false
}

// Category is a user-defined mail label with independent AI-draft and
// auto-reply toggles. The processing engine reads categories, it never
// writes them.
//
// The UI enforces that auto-reply implies draft-enabled, but the engine
// evaluates the two flags independently.
type Category struct {
	ID               int64        `json:"id"`
	UserID           uuid.UUID    `json:"user_id"`
	Name             string       `json:"name"`
	Enabled          bool         `json:"enabled"`
	AIDraftEnabled   bool         `json:"ai_draft_enabled"`
	AutoReplyEnabled bool         `json:"auto_reply_enabled"`
	WritingStyle     WritingStyle `json:"writing_style"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// NeedsProcessing reports whether any AI action is enabled for the category.
func (c *Category) NeedsProcessing() bool {
	return c.Enabled && (c.AIDraftEnabled || c.AutoReplyEnabled)
}
