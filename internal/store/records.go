package store

import (
	"time"

	"github.com/golden-vcr/accounts/internal/profile"
	"github.com/google/uuid"
)

// User is the stored record of a single Twitch identity. TwitchID and Login are each
// unique; Login may be reassigned when the user renames their Twitch account.
type User struct {
	ID uuid.UUID `json:"id"`
	profile.Profile
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Token records a single access/refresh token pair granted at login. Tokens are
// append-only: the current token for a user is the most recently created one.
type Token struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"userId"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Login records a single completed authentication
type Login struct {
	ID        uuid.UUID `json:"id"`
	TokenID   uuid.UUID `json:"tokenId"`
	UserID    uuid.UUID `json:"userId"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProfileChange records drift between a user's stored profile and a freshly-fetched
// one, keyed by canonical field name
type ProfileChange struct {
	ID             uuid.UUID      `json:"id"`
	UserID         uuid.UUID      `json:"userId"`
	PreviousValues map[string]any `json:"previousValues"`
	NewValues      map[string]any `json:"newValues"`
	CreatedAt      time.Time      `json:"createdAt"`
}
