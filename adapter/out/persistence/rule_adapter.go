package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"mailpilot/core/domain"
	"mailpilot/core/port/out"
)

// RuleAdapter implements out.RuleRepository using PostgreSQL.
type RuleAdapter struct {
	db *sqlx.DB
}

// NewRuleAdapter creates a new RuleAdapter.
func NewRuleAdapter(db *sqlx.DB) *RuleAdapter {
	return &RuleAdapter{db: db}
}

type ruleRow struct {
	ID              int64        `db:"id"`
	CategoryID      int64        `db:"category_id"`
	MatchType       string       `db:"match_type"`
	MatchValue      string       `db:"match_value"`
	Enabled         bool         `db:"enabled"`
	RecipientFilter string       `db:"recipient_filter"`
	SubjectContains string       `db:"subject_contains"`
	BodyContains    string       `db:"body_contains"`
	ConditionLogic  string       `db:"condition_logic"`
	NeedsSync       bool         `db:"needs_sync"`
	CreatedAt       sql.NullTime `db:"created_at"`
	UpdatedAt       sql.NullTime `db:"updated_at"`
}

func (r *ruleRow) toDomain() *domain.Rule {
	rule := &domain.Rule{
		ID:              r.ID,
		CategoryID:      r.CategoryID,
		MatchType:       domain.MatchType(r.MatchType),
		MatchValue:      r.MatchValue,
		Enabled:         r.Enabled,
		RecipientFilter: domain.RecipientFilter(r.RecipientFilter),
		SubjectContains: r.SubjectContains,
		BodyContains:    r.BodyContains,
		ConditionLogic:  domain.ConditionLogic(r.ConditionLogic),
		NeedsSync:       r.NeedsSync,
	}
	if r.CreatedAt.Valid {
		rule.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		rule.UpdatedAt = r.UpdatedAt.Time
	}
	return rule
}

// ListEnabledByCategory returns the enabled rules of a category.
func (a *RuleAdapter) ListEnabledByCategory(ctx context.Context, categoryID int64) ([]*domain.Rule, error) {
	var rows []*ruleRow
	query := `
		SELECT id, category_id, match_type, match_value, enabled, recipient_filter,
		       subject_contains, body_contains, condition_logic, needs_sync,
		       created_at, updated_at
		FROM category_rules
		WHERE category_id = $1 AND enabled = true
		ORDER BY id`

	if err := a.db.SelectContext(ctx, &rows, query, categoryID); err != nil {
		return nil, err
	}

	rules := make([]*domain.Rule, len(rows))
	for i, r := range rows {
		rules[i] = r.toDomain()
	}
	return rules, nil
}

// Create inserts a rule. New rules always start dirty so the next compile
// pass picks them up.
func (a *RuleAdapter) Create(ctx context.Context, rule *domain.Rule) error {
	query := `
		INSERT INTO category_rules
			(category_id, match_type, match_value, enabled, recipient_filter,
			 subject_contains, body_contains, condition_logic, needs_sync,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	var id int64
	var createdAt, updatedAt time.Time
	err := a.db.QueryRowxContext(ctx, query,
		rule.CategoryID, rule.MatchType, rule.MatchValue, rule.Enabled,
		rule.RecipientFilter, rule.SubjectContains, rule.BodyContains,
		rule.ConditionLogic,
	).Scan(&id, &createdAt, &updatedAt)
	if err != nil {
		return err
	}

	rule.ID = id
	rule.NeedsSync = true
	rule.CreatedAt = createdAt
	rule.UpdatedAt = updatedAt
	return nil
}

// Update rewrites a rule's match fields. The one UPDATE also sets needs_sync,
// so an edited rule can never miss recompilation.
func (a *RuleAdapter) Update(ctx context.Context, rule *domain.Rule) error {
	query := `
		UPDATE category_rules
		SET match_type = $2, match_value = $3, enabled = $4, recipient_filter = $5,
		    subject_contains = $6, body_contains = $7, condition_logic = $8,
		    needs_sync = true, updated_at = NOW()
		WHERE id = $1`

	res, err := a.db.ExecContext(ctx, query,
		rule.ID, rule.MatchType, rule.MatchValue, rule.Enabled,
		rule.RecipientFilter, rule.SubjectContains, rule.BodyContains,
		rule.ConditionLogic,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	rule.NeedsSync = true
	return nil
}

// ClearNeedsSync resets the dirty flag after recompilation.
func (a *RuleAdapter) ClearNeedsSync(ctx context.Context, ruleIDs []int64) error {
	if len(ruleIDs) == 0 {
		return nil
	}

	query := `
		UPDATE category_rules
		SET needs_sync = false, updated_at = NOW()
		WHERE id = ANY($1)`

	_, err := a.db.ExecContext(ctx, query, pq.Array(ruleIDs))
	return err
}

var _ out.RuleRepository = (*RuleAdapter)(nil)
