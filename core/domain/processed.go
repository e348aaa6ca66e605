package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActionType is the kind of provider-side action applied to a message.
type ActionType string

const (
	ActionDraft     ActionType = "draft"
	ActionAutoReply ActionType = "auto_reply"
)

// ProcessedKey is the idempotency key of the dedup ledger: one provider-side
// action per (message, category, action type), ever.
type ProcessedKey struct {
	MessageID  string
	CategoryID int64
	ActionType ActionType
}

// ProcessedAction is a durable ledger row recording that a provider-side
// action already succeeded. Rows are written only after the action succeeded,
// and are never updated or deleted by the engine.
type ProcessedAction struct {
	ID         int64      `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	MessageID  string     `json:"message_id"`
	CategoryID int64      `json:"category_id"`
	ActionType ActionType `json:"action_type"`
	Provider   Provider   `json:"provider"`
	DraftID    string     `json:"draft_id,omitempty"` // provider draft id, draft actions only
	CreatedAt  time.Time  `json:"created_at"`
}

// Key returns the ledger idempotency key for the row.
func (p *ProcessedAction) Key() ProcessedKey {
	return ProcessedKey{
		MessageID:  p.MessageID,
		CategoryID: p.CategoryID,
		ActionType: p.ActionType,
	}
}

// ActivityLogEntry is an append-only record of one successful action for UI
// reporting. The engine only writes these.
type ActivityLogEntry struct {
	ID           int64      `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	CategoryName string     `json:"category_name"`
	ActivityType ActionType `json:"activity_type"`
	Subject      string     `json:"subject"`
	Sender       string     `json:"sender"`
	CreatedAt    time.Time  `json:"created_at"`
}
