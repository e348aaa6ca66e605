// Package vault hands out plaintext access tokens for stored credentials,
// refreshing through the provider's auth endpoint when a token has expired.
// Tokens are stored encrypted; plaintext never leaves this package except as
// the return value.
package vault

import (
	"context"
	"fmt"
	"time"

	"mailpilot/core/domain"
	"mailpilot/core/port/out"
	"mailpilot/pkg/apperr"
	"mailpilot/pkg/crypto"
	"mailpilot/pkg/logger"
)

// fallbackTokenTTL is assumed when a refresh response carries no expiry.
const fallbackTokenTTL = time.Hour

type Service struct {
	credRepo  out.CredentialRepository
	providers out.ProviderRegistry
	codec     *crypto.Encryptor
	log       *logger.Logger
}

func NewService(credRepo out.CredentialRepository, providers out.ProviderRegistry, codec *crypto.Encryptor) *Service {
	return &Service{
		credRepo:  credRepo,
		providers: providers,
		codec:     codec,
		log:       logger.WithField("component", "vault"),
	}
}

// AccessToken returns a usable plaintext access token for the credential.
// An expired token is refreshed and the credential is updated in place, so
// the caller keeps a consistent view. Any refresh failure, and any
// undecryptable secret, surfaces as ReauthRequired: the credential cannot be
// used until the user reconnects.
//
// No locking. Two concurrent callers may both refresh; the refresh endpoint
// tolerates it and the last write wins.
func (s *Service) AccessToken(ctx context.Context, cred *domain.Credential) (string, error) {
	provider := string(cred.Provider)

	if !cred.Expired(time.Now()) {
		plain, err := s.codec.Decrypt(cred.AccessToken)
		if err != nil {
			return "", apperr.ReauthRequired(provider, fmt.Errorf("access secret undecryptable: %w", err))
		}
		return plain, nil
	}

	if cred.RefreshToken == "" {
		return "", apperr.ReauthRequired(provider, fmt.Errorf("token expired and no refresh secret stored"))
	}

	refreshPlain, err := s.codec.Decrypt(cred.RefreshToken)
	if err != nil {
		return "", apperr.ReauthRequired(provider, fmt.Errorf("refresh secret undecryptable: %w", err))
	}

	adapter, ok := s.providers.Get(cred.Provider)
	if !ok {
		return "", apperr.ReauthRequired(provider, fmt.Errorf("no adapter registered for provider"))
	}

	bundle, err := adapter.RefreshToken(ctx, refreshPlain)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeReauthRequired) {
			// The refresh secret itself was rejected; the credential is dead
			// until the user reconnects.
			if mErr := s.credRepo.MarkDisconnected(ctx, cred.ID); mErr != nil {
				s.log.WithError(mErr).Error("failed to mark credential %d disconnected", cred.ID)
			}
			cred.IsConnected = false
			return "", err
		}
		return "", apperr.ReauthRequired(provider, err)
	}

	return s.persistBundle(ctx, cred, bundle)
}

// persistBundle encrypts and stores the refreshed tokens, mirroring the new
// state onto the in-memory credential.
func (s *Service) persistBundle(ctx context.Context, cred *domain.Credential, bundle *out.TokenBundle) (string, error) {
	encAccess, err := s.codec.Encrypt(bundle.AccessToken)
	if err != nil {
		return "", apperr.Wrap(err, apperr.CodeInternalError, "failed to encrypt access token", 500)
	}

	// A rotated refresh secret is re-encrypted; an empty one keeps the
	// stored secret untouched.
	encRefresh := ""
	if bundle.RefreshToken != "" {
		encRefresh, err = s.codec.Encrypt(bundle.RefreshToken)
		if err != nil {
			return "", apperr.Wrap(err, apperr.CodeInternalError, "failed to encrypt refresh token", 500)
		}
	}

	expiresAt := bundle.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(fallbackTokenTTL)
	}

	if err := s.credRepo.UpdateTokens(ctx, cred.ID, encAccess, encRefresh, &expiresAt); err != nil {
		return "", apperr.DatabaseError("update credential tokens", err)
	}

	cred.AccessToken = encAccess
	if encRefresh != "" {
		cred.RefreshToken = encRefresh
	}
	cred.ExpiresAt = &expiresAt

	s.log.Debug("refreshed access token for credential %d (%s)", cred.ID, cred.Provider)
	return bundle.AccessToken, nil
}
