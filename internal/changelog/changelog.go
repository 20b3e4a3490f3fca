package changelog

import (
	"context"
	"errors"
	"fmt"

	"github.com/golden-vcr/accounts/internal/store"
	"github.com/google/uuid"
)

// ErrEmptyChange is returned when asked to record a change that has no new values
var ErrEmptyChange = errors.New("profile change has no new values")

// Record appends a ProfileChange for the given user. Consecutive changes are never
// merged or deduplicated.
func Record(ctx context.Context, q store.Queries, userID uuid.UUID, previous, next map[string]any) (*store.ProfileChange, error) {
	if len(next) == 0 {
		return nil, ErrEmptyChange
	}
	if previous == nil {
		previous = make(map[string]any)
	}
	change := &store.ProfileChange{
		UserID:         userID,
		PreviousValues: previous,
		NewValues:      next,
	}
	if err := q.CreateProfileChange(ctx, change); err != nil {
		return nil, fmt.Errorf("failed to record profile change for user %s: %w", userID, err)
	}
	return change, nil
}

// History lists every ProfileChange recorded for the given user, newest first
func History(ctx context.Context, q store.Queries, userID uuid.UUID) ([]store.ProfileChange, error) {
	return q.ListProfileChanges(ctx, userID)
}
