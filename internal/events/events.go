package events

import (
	"context"
	"errors"
	"sync"

	"github.com/golden-vcr/accounts/internal/store"
)

// Login is emitted after every successful authentication
type Login struct {
	User  *store.User
	Token *store.Token
	IsNew bool
}

// ProfileChanged is emitted when drift was applied to a user's stored profile,
// either at login or in response to a user.update notification
type ProfileChanged struct {
	User   *store.User
	IsNew  bool
	Change *store.ProfileChange
}

type LoginHandler func(ctx context.Context, ev Login) error
type ProfileChangedHandler func(ctx context.Context, ev ProfileChanged) error

// Bus delivers events synchronously to every registered handler, in the order in
// which handlers were registered
type Bus struct {
	mu             sync.RWMutex
	login          []LoginHandler
	profileChanged []ProfileChangedHandler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) OnLogin(h LoginHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.login = append(b.login, h)
}

func (b *Bus) OnProfileChanged(h ProfileChangedHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profileChanged = append(b.profileChanged, h)
}

// EmitLogin calls every login handler, even if some of them fail, and returns the
// combined errors
func (b *Bus) EmitLogin(ctx context.Context, ev Login) error {
	b.mu.RLock()
	handlers := b.login
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EmitProfileChanged calls every profileChanged handler, even if some of them fail,
// and returns the combined errors
func (b *Bus) EmitProfileChanged(ctx context.Context, ev ProfileChanged) error {
	b.mu.RLock()
	handlers := b.profileChanged
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
