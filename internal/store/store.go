package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a lookup matches no record
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a write would violate a unique constraint, e.g.
	// because a concurrent request has just created the same user
	ErrConflict = errors.New("unique constraint violated")
)

// Queries is the set of typed record operations available both inside and outside
// of a transaction
type Queries interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByTwitchID(ctx context.Context, twitchID string) (*User, error)
	GetUserByLogin(ctx context.Context, login string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, user *User) error

	CreateToken(ctx context.Context, token *Token) error
	GetLatestToken(ctx context.Context, userID uuid.UUID) (*Token, error)
	CountTokens(ctx context.Context, userID uuid.UUID) (int, error)

	CreateLogin(ctx context.Context, login *Login) error

	CreateProfileChange(ctx context.Context, change *ProfileChange) error
	ListProfileChanges(ctx context.Context, userID uuid.UUID) ([]ProfileChange, error)
}

// Store provides Queries along with the ability to run a group of them atomically.
// If fn returns an error, none of its writes are retained.
type Store interface {
	Queries
	Tx(ctx context.Context, fn func(q Queries) error) error
	Close()
}
