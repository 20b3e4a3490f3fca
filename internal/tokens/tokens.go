package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golden-vcr/accounts/internal/store"
	"github.com/google/uuid"
)

// ErrMissingAccessToken is returned when attempting to issue a token with no access
// token value
var ErrMissingAccessToken = errors.New("access token is required")

// Credentials are the values granted by Twitch upon a successful OAuth exchange or
// token refresh. A nil ExpiresAt means the token should be refreshed on first use.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// CredentialsFromExpiry builds Credentials from an OAuth token response, where
// expiresIn is a number of seconds relative to now. A non-positive expiresIn leaves
// the expiry unset.
func CredentialsFromExpiry(accessToken, refreshToken string, expiresIn int, now time.Time) Credentials {
	creds := Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if expiresIn > 0 {
		expiresAt := now.Add(time.Duration(expiresIn) * time.Second)
		creds.ExpiresAt = &expiresAt
	}
	return creds
}

// Expired reports whether a token should be refreshed before use as of the given time
func Expired(token *store.Token, now time.Time) bool {
	return token.ExpiresAt == nil || !now.Before(*token.ExpiresAt)
}

// Issue appends a new token for the given user. Existing tokens are never modified.
func Issue(ctx context.Context, q store.Queries, userID uuid.UUID, creds Credentials) (*store.Token, error) {
	if creds.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}
	token := &store.Token{
		UserID:       userID,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    creds.ExpiresAt,
	}
	if err := q.CreateToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to store token for user %s: %w", userID, err)
	}
	return token, nil
}

// Current returns the most recently issued token for the given user, or
// store.ErrNotFound if the user has never logged in
func Current(ctx context.Context, q store.Queries, userID uuid.UUID) (*store.Token, error) {
	return q.GetLatestToken(ctx, userID)
}

// Refresh supersedes the user's current token with newly-granted credentials
func Refresh(ctx context.Context, q store.Queries, userID uuid.UUID, creds Credentials) (*store.Token, error) {
	return Issue(ctx, q, userID, creds)
}
