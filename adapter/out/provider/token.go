package provider

import (
	"context"
	"strings"

	"golang.org/x/oauth2"

	"mailpilot/core/port/out"
	"mailpilot/pkg/apperr"
)

// refreshWithConfig exchanges a refresh secret for a fresh token through the
// provider's oauth2 endpoint. A rejected refresh secret surfaces as
// ReauthRequired; the bundle carries a rotated refresh secret only when the
// endpoint returned a different one.
func refreshWithConfig(ctx context.Context, config *oauth2.Config, provider, refreshToken string) (*out.TokenBundle, error) {
	src := config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		if isRefreshRejected(err) {
			return nil, apperr.ReauthRequired(provider, err)
		}
		return nil, apperr.ExternalError(provider, err)
	}

	bundle := &out.TokenBundle{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.Expiry,
	}
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		bundle.RefreshToken = token.RefreshToken
	}
	return bundle, nil
}

// isRefreshRejected reports whether the auth endpoint refused the refresh
// secret itself, as opposed to a transient failure.
func isRefreshRejected(err error) bool {
	if err == nil {
		return false
	}

	if re, ok := err.(*oauth2.RetrieveError); ok {
		if re.ErrorCode == "invalid_grant" {
			return true
		}
		if re.Response != nil && (re.Response.StatusCode == 400 || re.Response.StatusCode == 401) {
			return true
		}
	}

	msg := err.Error()
	return strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "token has been expired or revoked") ||
		strings.Contains(msg, "AADSTS700082") // Microsoft: refresh token expired
}
