package out

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mailpilot/core/domain"
)

// CredentialRepository defines the outbound port for mailbox credential persistence.
// Token columns hold ciphertext; the vault owns encryption, so only encrypted
// values cross this boundary.
type CredentialRepository interface {
	// ListConnectedByUser returns all connected credentials for a user.
	ListConnectedByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Credential, error)

	// ListActiveUserIDs returns the users with at least one connected
	// credential. Used by the scheduler to enumerate run candidates.
	ListActiveUserIDs(ctx context.Context) ([]uuid.UUID, error)

	// GetByID returns a credential by ID.
	GetByID(ctx context.Context, id int64) (*domain.Credential, error)

	// UpdateTokens replaces the stored tokens after a refresh. An empty
	// refreshToken keeps the existing one.
	UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt *time.Time) error

	// MarkDisconnected flags a credential whose refresh secret was rejected.
	MarkDisconnected(ctx context.Context, id int64) error
}

// CategoryRepository defines the outbound port for category persistence.
type CategoryRepository interface {
	// ListProcessableByUser returns enabled categories with at least one
	// action enabled.
	ListProcessableByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Category, error)

	// GetByID returns a category owned by the user.
	GetByID(ctx context.Context, userID uuid.UUID, id int64) (*domain.Category, error)
}

// RuleRepository defines the outbound port for rule persistence.
type RuleRepository interface {
	// ListEnabledByCategory returns the enabled rules of a category.
	ListEnabledByCategory(ctx context.Context, categoryID int64) ([]*domain.Rule, error)

	// Create inserts a rule with needs_sync set.
	Create(ctx context.Context, rule *domain.Rule) error

	// Update rewrites a rule's match fields and marks it needs_sync.
	Update(ctx context.Context, rule *domain.Rule) error

	// ClearNeedsSync resets the dirty flag after recompilation.
	ClearNeedsSync(ctx context.Context, ruleIDs []int64) error
}

// LedgerRepository defines the outbound port for the processed-action ledger.
type LedgerRepository interface {
	// LoadKeysByUser bulk-loads the user's processed keys for the given
	// category IDs into a set for in-memory membership checks.
	LoadKeysByUser(ctx context.Context, userID uuid.UUID, categoryIDs []int64) (map[domain.ProcessedKey]struct{}, error)

	// Record inserts a processed action. A duplicate key is not an error;
	// inserted reports whether the row was new.
	Record(ctx context.Context, action *domain.ProcessedAction) (inserted bool, err error)
}

// ActivityLogRepository defines the outbound port for the user-visible activity feed.
type ActivityLogRepository interface {
	// Append records one feed entry. Failures are logged and swallowed by
	// callers; the feed is best-effort.
	Append(ctx context.Context, entry *domain.ActivityLogEntry) error
}
