package domain

import "time"

// MatchType is the primary condition of a categorization rule.
type MatchType string

const (
	MatchSender  MatchType = "sender"  // exact from address
	MatchDomain  MatchType = "domain"  // sender domain
	MatchKeyword MatchType = "keyword" // full-text keyword
)

// RecipientFilter narrows a rule to how the user was addressed.
type RecipientFilter string

const (
	RecipientAny    RecipientFilter = "any"
	RecipientToMe   RecipientFilter = "to_me"
	RecipientCcMe   RecipientFilter = "cc_me"
	RecipientToOrCc RecipientFilter = "to_or_cc_me"
)

// ConditionLogic joins every optional clause of a rule with the primary match.
// One operator applies uniformly across all clause boundaries; there is no
// per-pair operator.
type ConditionLogic string

const (
	LogicAnd ConditionLogic = "and"
	LogicOr  ConditionLogic = "or"
)

// Rule is a declarative condition mapping incoming mail to a category.
// Rules are created and edited by the UI; the processing engine treats them
// as read-only input.
type Rule struct {
	ID              int64           `json:"id"`
	CategoryID      int64           `json:"category_id"`
	MatchType       MatchType       `json:"match_type"`
	MatchValue      string          `json:"match_value"`
	Enabled         bool            `json:"enabled"`
	RecipientFilter RecipientFilter `json:"recipient_filter"`
	SubjectContains string          `json:"subject_contains"`
	BodyContains    string          `json:"body_contains"`
	ConditionLogic  ConditionLogic  `json:"condition_logic"`
	NeedsSync       bool            `json:"needs_sync"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// HasOptionalClauses reports whether any clause beyond the primary match is
// set. Rules with only a primary clause ignore ConditionLogic entirely.
func (r *Rule) HasOptionalClauses() bool {
	if r.RecipientFilter != "" && r.RecipientFilter != RecipientAny {
		return true
	}
	return r.SubjectContains != "" || r.BodyContains != ""
}
