package callback

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golden-vcr/accounts/internal/events"
	"github.com/golden-vcr/accounts/internal/registry"
	"github.com/nicklaw5/helix/v2"
	"golang.org/x/exp/slog"
)

// Registry reconciles a known user against their current directory profile
type Registry interface {
	FindOrRegisterByID(ctx context.Context, twitchID string) (*registry.Result, error)
}

// ForgetFunc evicts any cached directory profile for the given Twitch user ID
type ForgetFunc func(twitchID string)

// UserUpdateHandler responds to 'user.update' notifications, which Twitch sends when
// any user who has authorized our app changes their profile. Reconciling the user as
// soon as we're notified means that renames and other drift are recorded even if the
// user doesn't log in again for some time.
type UserUpdateHandler struct {
	registry Registry
	forget   ForgetFunc
	bus      *events.Bus
}

func NewUserUpdateHandler(r Registry, forget ForgetFunc, bus *events.Bus) *UserUpdateHandler {
	return &UserUpdateHandler{
		registry: r,
		forget:   forget,
		bus:      bus,
	}
}

// userUpdateEvent is the subset of the 'user.update' event payload that we use
type userUpdateEvent struct {
	UserID    string `json:"user_id"`
	UserLogin string `json:"user_login"`
	UserName  string `json:"user_name"`
}

func (h *UserUpdateHandler) Handle(ctx context.Context, logger *slog.Logger, subscription *helix.EventSubSubscription, data json.RawMessage) error {
	if subscription.Type != helix.EventSubTypeUserUpdate {
		logger.Warn("Ignoring event of unsupported type")
		return nil
	}

	var ev userUpdateEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("failed to decode %s event: %w", subscription.Type, err)
	}
	if ev.UserID == "" {
		return fmt.Errorf("%s event has no user_id", subscription.Type)
	}

	h.forget(ev.UserID)
	result, err := h.registry.FindOrRegisterByID(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if result.Change == nil {
		return nil
	}
	logger.Info("Recorded profile change from user.update", "twitchId", ev.UserID, "login", result.User.Login)

	// The change is already committed, so a failing subscriber must not cause Twitch
	// to redeliver the notification
	err = h.bus.EmitProfileChanged(ctx, events.ProfileChanged{User: result.User, IsNew: result.IsNew, Change: result.Change})
	if err != nil {
		logger.Error("Failed to emit profile change event", "error", err)
	}
	return nil
}
