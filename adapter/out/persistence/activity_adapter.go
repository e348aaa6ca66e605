package persistence

import (
	"context"

	"github.com/jmoiron/sqlx"

	"mailpilot/core/domain"
	"mailpilot/core/port/out"
)

// ActivityLogAdapter implements out.ActivityLogRepository using PostgreSQL.
type ActivityLogAdapter struct {
	db *sqlx.DB
}

// NewActivityLogAdapter creates a new ActivityLogAdapter.
func NewActivityLogAdapter(db *sqlx.DB) *ActivityLogAdapter {
	return &ActivityLogAdapter{db: db}
}

// Append inserts one activity row. The log is append-only.
func (a *ActivityLogAdapter) Append(ctx context.Context, entry *domain.ActivityLogEntry) error {
	query := `
		INSERT INTO activity_log
			(user_id, category_name, activity_type, subject, sender, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id`

	return a.db.QueryRowxContext(ctx, query,
		entry.UserID, entry.CategoryName, entry.ActivityType,
		entry.Subject, entry.Sender,
	).Scan(&entry.ID)
}

var _ out.ActivityLogRepository = (*ActivityLogAdapter)(nil)
