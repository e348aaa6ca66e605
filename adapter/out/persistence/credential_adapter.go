// Package persistence provides database adapters.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"mailpilot/core/domain"
	"mailpilot/core/port/out"
)

// CredentialAdapter implements out.CredentialRepository using PostgreSQL.
// Token columns store ciphertext produced by the vault; this adapter never
// sees plaintext secrets.
type CredentialAdapter struct {
	db *sqlx.DB
}

// NewCredentialAdapter creates a new CredentialAdapter.
func NewCredentialAdapter(db *sqlx.DB) *CredentialAdapter {
	return &CredentialAdapter{db: db}
}

type credentialRow struct {
	ID           int64      `db:"id"`
	UserID       uuid.UUID  `db:"user_id"`
	Provider     string     `db:"provider"`
	Email        string     `db:"email"`
	AccessToken  string     `db:"access_token"`
	RefreshToken string     `db:"refresh_token"`
	ExpiresAt    *time.Time `db:"expires_at"`
	IsConnected  bool       `db:"is_connected"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func (r *credentialRow) toDomain() *domain.Credential {
	return &domain.Credential{
		ID:           r.ID,
		UserID:       r.UserID,
		Provider:     domain.Provider(r.Provider),
		Email:        r.Email,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
		IsConnected:  r.IsConnected,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// ListConnectedByUser returns all connected credentials for a user.
func (a *CredentialAdapter) ListConnectedByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Credential, error) {
	var rows []*credentialRow
	query := `
		SELECT id, user_id, provider, email, access_token, refresh_token,
		       expires_at, is_connected, created_at, updated_at
		FROM mail_credentials
		WHERE user_id = $1 AND is_connected = true
		ORDER BY created_at`

	if err := a.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}

	creds := make([]*domain.Credential, len(rows))
	for i, r := range rows {
		creds[i] = r.toDomain()
	}
	return creds, nil
}

// ListActiveUserIDs returns the users with at least one connected credential.
func (a *CredentialAdapter) ListActiveUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `
		SELECT DISTINCT user_id
		FROM mail_credentials
		WHERE is_connected = true`

	if err := a.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetByID returns a credential by ID.
func (a *CredentialAdapter) GetByID(ctx context.Context, id int64) (*domain.Credential, error) {
	var row credentialRow
	query := `
		SELECT id, user_id, provider, email, access_token, refresh_token,
		       expires_at, is_connected, created_at, updated_at
		FROM mail_credentials
		WHERE id = $1`

	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// UpdateTokens replaces the stored tokens after a refresh in one UPDATE. An
// empty refreshToken keeps the existing column.
func (a *CredentialAdapter) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt *time.Time) error {
	if refreshToken == "" {
		query := `
			UPDATE mail_credentials
			SET access_token = $2, expires_at = $3, updated_at = NOW()
			WHERE id = $1`
		_, err := a.db.ExecContext(ctx, query, id, accessToken, expiresAt)
		return err
	}

	query := `
		UPDATE mail_credentials
		SET access_token = $2, refresh_token = $3, expires_at = $4, updated_at = NOW()
		WHERE id = $1`
	_, err := a.db.ExecContext(ctx, query, id, accessToken, refreshToken, expiresAt)
	return err
}

// MarkDisconnected flags a credential whose refresh secret was rejected.
func (a *CredentialAdapter) MarkDisconnected(ctx context.Context, id int64) error {
	query := `
		UPDATE mail_credentials
		SET is_connected = false, updated_at = NOW()
		WHERE id = $1`
	_, err := a.db.ExecContext(ctx, query, id)
	return err
}

var _ out.CredentialRepository = (*CredentialAdapter)(nil)
