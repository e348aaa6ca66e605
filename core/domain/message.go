package domain

import "time"

// MatchedMessage is a provider search hit: the provider-native message id plus
// whatever addressing data the search response carried. It is ephemeral and
// never persisted; only its ID enters the dedup ledger.
type MatchedMessage struct {
	Provider Provider `json:"provider"`
	ID       string   `json:"id"`
	ThreadID string   `json:"thread_id"` // conversation id on Graph
	From     string   `json:"from,omitempty"`
	Subject  string   `json:"subject,omitempty"`
}

// FetchedMessage is the full message view needed to generate and apply a
// reply. Produced by a provider fetch; the adapter converts the provider wire
// shape into this type at the boundary so no raw provider field leaks out.
type FetchedMessage struct {
	Provider   Provider  `json:"provider"`
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id"`
	Subject    string    `json:"subject"`
	From       string    `json:"from"`
	ReplyTo    string    `json:"reply_to"` // falls back to From when no Reply-To header
	BodyText   string    `json:"body_text"`
	ReceivedAt time.Time `json:"received_at,omitempty"`
}

// ReplyAddress returns the address a reply should go to.
func (m *FetchedMessage) ReplyAddress() string {
	if m.ReplyTo != "" {
		return m.ReplyTo
	}
	return m.From
}
