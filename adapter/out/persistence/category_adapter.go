package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"mailpilot/core/domain"
	"mailpilot/core/port/out"
)

// CategoryAdapter implements out.CategoryRepository using PostgreSQL.
type CategoryAdapter struct {
	db *sqlx.DB
}

// NewCategoryAdapter creates a new CategoryAdapter.
func NewCategoryAdapter(db *sqlx.DB) *CategoryAdapter {
	return &CategoryAdapter{db: db}
}

type categoryRow struct {
	ID               int64     `db:"id"`
	UserID           uuid.UUID `db:"user_id"`
	Name             string    `db:"name"`
	Enabled          bool      `db:"enabled"`
	AIDraftEnabled   bool      `db:"ai_draft_enabled"`
	AutoReplyEnabled bool      `db:"auto_reply_enabled"`
	WritingStyle     string    `db:"writing_style"`
	CreatedAt        sql.NullTime `db:"created_at"`
	UpdatedAt        sql.NullTime `db:"updated_at"`
}

func (r *categoryRow) toDomain() *domain.Category {
	c := &domain.Category{
		ID:               r.ID,
		UserID:           r.UserID,
		Name:             r.Name,
		Enabled:          r.Enabled,
		AIDraftEnabled:   r.AIDraftEnabled,
		AutoReplyEnabled: r.AutoReplyEnabled,
		WritingStyle:     domain.WritingStyle(r.WritingStyle),
	}
	if r.CreatedAt.Valid {
		c.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		c.UpdatedAt = r.UpdatedAt.Time
	}
	return c
}

// ListProcessableByUser returns enabled categories with at least one action
// enabled.
func (a *CategoryAdapter) ListProcessableByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Category, error) {
	var rows []*categoryRow
	query := `
		SELECT id, user_id, name, enabled, ai_draft_enabled, auto_reply_enabled,
		       writing_style, created_at, updated_at
		FROM categories
		WHERE user_id = $1 AND enabled = true
		  AND (ai_draft_enabled = true OR auto_reply_enabled = true)
		ORDER BY id`

	if err := a.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}

	categories := make([]*domain.Category, len(rows))
	for i, r := range rows {
		categories[i] = r.toDomain()
	}
	return categories, nil
}

// GetByID returns a category owned by the user.
func (a *CategoryAdapter) GetByID(ctx context.Context, userID uuid.UUID, id int64) (*domain.Category, error) {
	var row categoryRow
	query := `
		SELECT id, user_id, name, enabled, ai_draft_enabled, auto_reply_enabled,
		       writing_style, created_at, updated_at
		FROM categories
		WHERE id = $1 AND user_id = $2`

	if err := a.db.GetContext(ctx, &row, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

var _ out.CategoryRepository = (*CategoryAdapter)(nil)
