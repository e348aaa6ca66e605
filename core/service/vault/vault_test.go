package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"mailpilot/core/domain"
	"mailpilot/core/port/out"
	"mailpilot/pkg/apperr"
	"mailpilot/pkg/crypto"
)

type fakeCredRepo struct {
	updatedID       int64
	updatedAccess   string
	updatedRefresh  string
	updatedExpiry   *time.Time
	updateCalls     int
	updateErr       error
	disconnectedIDs []int64
}

func (f *fakeCredRepo) ListConnectedByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Credential, error) {
	return nil, nil
}

func (f *fakeCredRepo) ListActiveUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeCredRepo) GetByID(ctx context.Context, id int64) (*domain.Credential, error) {
	return nil, nil
}

func (f *fakeCredRepo) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt *time.Time) error {
	f.updateCalls++
	f.updatedID = id
	f.updatedAccess = accessToken
	f.updatedRefresh = refreshToken
	f.updatedExpiry = expiresAt
	return f.updateErr
}

func (f *fakeCredRepo) MarkDisconnected(ctx context.Context, id int64) error {
	f.disconnectedIDs = append(f.disconnectedIDs, id)
	return nil
}

type fakeProvider struct {
	providerType domain.Provider
	bundle       *out.TokenBundle
	err          error
	refreshCalls int
	lastRefresh  string
}

func (f *fakeProvider) ProviderType() domain.Provider { return f.providerType }

func (f *fakeProvider) Search(ctx context.Context, accessToken, query string, since time.Time, maxResults int) ([]domain.MatchedMessage, error) {
	return nil, nil
}

func (f *fakeProvider) FetchDetails(ctx context.Context, accessToken string, ref domain.MatchedMessage) (*domain.FetchedMessage, error) {
	return nil, nil
}

func (f *fakeProvider) CreateDraft(ctx context.Context, accessToken string, msg *domain.FetchedMessage, body string) (string, error) {
	return "", nil
}

func (f *fakeProvider) SendReply(ctx context.Context, accessToken string, msg *domain.FetchedMessage, body string) error {
	return nil
}

func (f *fakeProvider) RefreshToken(ctx context.Context, refreshToken string) (*out.TokenBundle, error) {
	f.refreshCalls++
	f.lastRefresh = refreshToken
	return f.bundle, f.err
}

type fakeRegistry struct {
	provider *fakeProvider
}

func (f *fakeRegistry) Get(p domain.Provider) (out.MailProvider, bool) {
	if f.provider == nil {
		return nil, false
	}
	return f.provider, true
}

func newCodec(t *testing.T) *crypto.Encryptor {
	t.Helper()
	codec, err := crypto.NewEncryptor([]byte("vault-test-key"))
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	return codec
}

func encrypted(t *testing.T, codec *crypto.Encryptor, plain string) string {
	t.Helper()
	enc, err := codec.Encrypt(plain)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	return enc
}

func futureTime(d time.Duration) *time.Time {
	t := time.Now().Add(d)
	return &t
}

func TestAccessTokenFreshPathNoRefresh(t *testing.T) {
	codec := newCodec(t)
	repo := &fakeCredRepo{}
	provider := &fakeProvider{providerType: domain.ProviderGmail}
	svc := NewService(repo, &fakeRegistry{provider: provider}, codec)

	cred := &domain.Credential{
		ID:          1,
		Provider:    domain.ProviderGmail,
		AccessToken: encrypted(t, codec, "live-token"),
		ExpiresAt:   futureTime(time.Hour),
	}

	got, err := svc.AccessToken(context.Background(), cred)
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if got != "live-token" {
		t.Errorf("AccessToken() = %q", got)
	}
	if provider.refreshCalls != 0 {
		t.Errorf("fresh token must not trigger a refresh, got %d calls", provider.refreshCalls)
	}
	if repo.updateCalls != 0 {
		t.Errorf("fresh path must not write, got %d updates", repo.updateCalls)
	}
}

func TestAccessTokenNilExpiryNeverRefreshes(t *testing.T) {
	codec := newCodec(t)
	provider := &fakeProvider{providerType: domain.ProviderGmail}
	svc := NewService(&fakeCredRepo{}, &fakeRegistry{provider: provider}, codec)

	cred := &domain.Credential{
		ID:          2,
		Provider:    domain.ProviderGmail,
		AccessToken: encrypted(t, codec, "non-expiring"),
	}

	got, err := svc.AccessToken(context.Background(), cred)
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if got != "non-expiring" {
		t.Errorf("AccessToken() = %q", got)
	}
	if provider.refreshCalls != 0 {
		t.Errorf("nil expiry must not trigger a refresh")
	}
}

func TestAccessTokenRefreshRoundTrip(t *testing.T) {
	codec := newCodec(t)
	repo := &fakeCredRepo{}
	provider := &fakeProvider{
		providerType: domain.ProviderOutlook,
		bundle: &out.TokenBundle{
			AccessToken:  "new-access",
			RefreshToken: "rotated-refresh",
			ExpiresAt:    time.Now().Add(time.Hour),
		},
	}
	svc := NewService(repo, &fakeRegistry{provider: provider}, codec)

	cred := &domain.Credential{
		ID:           3,
		Provider:     domain.ProviderOutlook,
		AccessToken:  encrypted(t, codec, "stale-access"),
		RefreshToken: encrypted(t, codec, "old-refresh"),
		ExpiresAt:    futureTime(-time.Minute),
	}

	got, err := svc.AccessToken(context.Background(), cred)
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if got != "new-access" {
		t.Errorf("AccessToken() = %q", got)
	}
	if provider.lastRefresh != "old-refresh" {
		t.Errorf("refresh called with %q, want decrypted secret", provider.lastRefresh)
	}
	if repo.updateCalls != 1 || repo.updatedID != 3 {
		t.Fatalf("expected one persisted update for credential 3, got %d for %d", repo.updateCalls, repo.updatedID)
	}

	// secrets persisted encrypted, not in plaintext
	if dec, err := codec.Decrypt(repo.updatedAccess); err != nil || dec != "new-access" {
		t.Errorf("persisted access token does not decrypt to the new token: %v %q", err, dec)
	}
	if dec, err := codec.Decrypt(repo.updatedRefresh); err != nil || dec != "rotated-refresh" {
		t.Errorf("persisted refresh token does not decrypt to the rotated secret: %v %q", err, dec)
	}
	if repo.updatedExpiry == nil || !repo.updatedExpiry.After(time.Now()) {
		t.Error("persisted expiry not in the future")
	}

	// in-memory credential mirrors the store
	if cred.ExpiresAt == nil || !cred.ExpiresAt.After(time.Now()) {
		t.Error("in-memory credential expiry not advanced")
	}
	if cred.Expired(time.Now()) {
		t.Error("credential still reads as expired after refresh")
	}
}

func TestAccessTokenRefreshNotRotated(t *testing.T) {
	codec := newCodec(t)
	repo := &fakeCredRepo{}
	provider := &fakeProvider{
		providerType: domain.ProviderGmail,
		bundle: &out.TokenBundle{
			AccessToken: "new-access",
			ExpiresAt:   time.Now().Add(time.Hour),
		},
	}
	svc := NewService(repo, &fakeRegistry{provider: provider}, codec)

	oldRefresh := encrypted(t, codec, "keep-me")
	cred := &domain.Credential{
		ID:           4,
		Provider:     domain.ProviderGmail,
		AccessToken:  encrypted(t, codec, "stale"),
		RefreshToken: oldRefresh,
		ExpiresAt:    futureTime(-time.Minute),
	}

	if _, err := svc.AccessToken(context.Background(), cred); err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if repo.updatedRefresh != "" {
		t.Errorf("non-rotated refresh secret must persist as empty, got %q", repo.updatedRefresh)
	}
	if cred.RefreshToken != oldRefresh {
		t.Error("stored refresh secret must stay untouched when not rotated")
	}
}

func TestAccessTokenExpiredWithoutRefreshSecret(t *testing.T) {
	codec := newCodec(t)
	provider := &fakeProvider{providerType: domain.ProviderGmail}
	svc := NewService(&fakeCredRepo{}, &fakeRegistry{provider: provider}, codec)

	cred := &domain.Credential{
		ID:          5,
		Provider:    domain.ProviderGmail,
		AccessToken: encrypted(t, codec, "stale"),
		ExpiresAt:   futureTime(-time.Minute),
	}

	_, err := svc.AccessToken(context.Background(), cred)
	if !apperr.IsCode(err, apperr.CodeReauthRequired) {
		t.Errorf("error = %v, want REAUTH_REQUIRED", err)
	}
	if provider.refreshCalls != 0 {
		t.Error("no refresh secret means no refresh attempt")
	}
}

func TestAccessTokenRefreshEndpointFailure(t *testing.T) {
	codec := newCodec(t)
	repo := &fakeCredRepo{}
	provider := &fakeProvider{
		providerType: domain.ProviderGmail,
		err:          errors.New("network down"),
	}
	svc := NewService(repo, &fakeRegistry{provider: provider}, codec)

	cred := &domain.Credential{
		ID:           6,
		Provider:     domain.ProviderGmail,
		AccessToken:  encrypted(t, codec, "stale"),
		RefreshToken: encrypted(t, codec, "refresh"),
		ExpiresAt:    futureTime(-time.Minute),
	}

	_, err := svc.AccessToken(context.Background(), cred)
	if !apperr.IsCode(err, apperr.CodeReauthRequired) {
		t.Errorf("error = %v, want REAUTH_REQUIRED", err)
	}
	if len(repo.disconnectedIDs) != 0 {
		t.Error("transient failure must not mark the credential disconnected")
	}
}

func TestAccessTokenRefreshRejectedDisconnects(t *testing.T) {
	codec := newCodec(t)
	repo := &fakeCredRepo{}
	provider := &fakeProvider{
		providerType: domain.ProviderOutlook,
		err:          apperr.ReauthRequired("outlook", errors.New("invalid_grant")),
	}
	svc := NewService(repo, &fakeRegistry{provider: provider}, codec)

	cred := &domain.Credential{
		ID:           7,
		Provider:     domain.ProviderOutlook,
		AccessToken:  encrypted(t, codec, "stale"),
		RefreshToken: encrypted(t, codec, "dead-refresh"),
		ExpiresAt:    futureTime(-time.Minute),
		IsConnected:  true,
	}

	_, err := svc.AccessToken(context.Background(), cred)
	if !apperr.IsCode(err, apperr.CodeReauthRequired) {
		t.Errorf("error = %v, want REAUTH_REQUIRED", err)
	}
	if len(repo.disconnectedIDs) != 1 || repo.disconnectedIDs[0] != 7 {
		t.Errorf("rejected refresh secret must disconnect the credential, got %v", repo.disconnectedIDs)
	}
	if cred.IsConnected {
		t.Error("in-memory credential still marked connected")
	}
}

func TestAccessTokenUndecryptableSurfacesAsReauth(t *testing.T) {
	codec := newCodec(t)
	provider := &fakeProvider{providerType: domain.ProviderGmail}
	svc := NewService(&fakeCredRepo{}, &fakeRegistry{provider: provider}, codec)

	cred := &domain.Credential{
		ID:          8,
		Provider:    domain.ProviderGmail,
		AccessToken: "not-a-ciphertext",
		ExpiresAt:   futureTime(time.Hour),
	}

	_, err := svc.AccessToken(context.Background(), cred)
	if !apperr.IsCode(err, apperr.CodeReauthRequired) {
		t.Errorf("error = %v, want REAUTH_REQUIRED", err)
	}
}
