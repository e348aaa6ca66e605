package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"mailpilot/core/domain"
	"mailpilot/core/port/out"
)

// pgUniqueViolation is the PostgreSQL error code for a unique constraint hit.
const pgUniqueViolation = "23505"

// LedgerAdapter implements out.LedgerRepository using PostgreSQL. The table
// carries a unique constraint on (message_id, category_id, action_type);
// that constraint is what makes processing idempotent under racing runs.
type LedgerAdapter struct {
	db *sqlx.DB
}

// NewLedgerAdapter creates a new LedgerAdapter.
func NewLedgerAdapter(db *sqlx.DB) *LedgerAdapter {
	return &LedgerAdapter{db: db}
}

type ledgerRow struct {
	MessageID  string `db:"message_id"`
	CategoryID int64  `db:"category_id"`
	ActionType string `db:"action_type"`
}

// LoadKeysByUser bulk-loads the user's processed keys for the given category
// IDs. One SELECT per run; membership checks afterwards are in-memory.
func (a *LedgerAdapter) LoadKeysByUser(ctx context.Context, userID uuid.UUID, categoryIDs []int64) (map[domain.ProcessedKey]struct{}, error) {
	keys := make(map[domain.ProcessedKey]struct{})
	if len(categoryIDs) == 0 {
		return keys, nil
	}

	var rows []ledgerRow
	query := `
		SELECT message_id, category_id, action_type
		FROM processed_actions
		WHERE user_id = $1 AND category_id = ANY($2)`

	if err := a.db.SelectContext(ctx, &rows, query, userID, pq.Array(categoryIDs)); err != nil {
		return nil, err
	}

	for _, r := range rows {
		keys[domain.ProcessedKey{
			MessageID:  r.MessageID,
			CategoryID: r.CategoryID,
			ActionType: domain.ActionType(r.ActionType),
		}] = struct{}{}
	}
	return keys, nil
}

// Record inserts a processed action. A unique violation means another run
// already recorded the triple; that is reported as inserted=false, not an
// error. Rows are never updated or deleted.
func (a *LedgerAdapter) Record(ctx context.Context, action *domain.ProcessedAction) (bool, error) {
	query := `
		INSERT INTO processed_actions
			(user_id, message_id, category_id, action_type, provider, draft_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id`

	err := a.db.QueryRowxContext(ctx, query,
		action.UserID, action.MessageID, action.CategoryID,
		action.ActionType, action.Provider, action.DraftID,
	).Scan(&action.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var _ out.LedgerRepository = (*LedgerAdapter)(nil)
