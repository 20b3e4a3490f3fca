package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golden-vcr/accounts/internal/store"
	"github.com/google/uuid"
)

// ErrNoRefreshToken is returned when a user's current token can not be refreshed
var ErrNoRefreshToken = errors.New("current token has no refresh token")

// Grant exchanges a refresh token for new credentials
type Grant interface {
	Refresh(ctx context.Context, refreshToken string) (Credentials, error)
}

// Refresher keeps a user's stored credentials usable, appending a new token whenever
// the provider grants fresh credentials
type Refresher struct {
	store store.Store
	grant Grant
	now   func() time.Time
}

func NewRefresher(s store.Store, grant Grant) *Refresher {
	return &Refresher{
		store: s,
		grant: grant,
		now:   time.Now,
	}
}

// Valid returns the user's current token, refreshing it first if it has expired or
// has no known expiry
func (r *Refresher) Valid(ctx context.Context, userID uuid.UUID) (*store.Token, error) {
	current, err := Current(ctx, r.store, userID)
	if err != nil {
		return nil, err
	}
	if !Expired(current, r.now()) {
		return current, nil
	}
	return r.refresh(ctx, current)
}

// Refresh unconditionally exchanges the user's current refresh token for new
// credentials
func (r *Refresher) Refresh(ctx context.Context, userID uuid.UUID) (*store.Token, error) {
	current, err := Current(ctx, r.store, userID)
	if err != nil {
		return nil, err
	}
	return r.refresh(ctx, current)
}

func (r *Refresher) refresh(ctx context.Context, current *store.Token) (*store.Token, error) {
	if current.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	creds, err := r.grant.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token for user %s: %w", current.UserID, err)
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = current.RefreshToken
	}

	var token *store.Token
	err = r.store.Tx(ctx, func(q store.Queries) error {
		var txErr error
		token, txErr = Refresh(ctx, q, current.UserID, creds)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}
