package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golden-vcr/accounts/internal/changelog"
	"github.com/golden-vcr/accounts/internal/profile"
	"github.com/golden-vcr/accounts/internal/store"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotFound is returned by a Directory when no Twitch user matches a lookup
	ErrNotFound = errors.New("no such twitch user")

	// ErrProfileUnavailable is returned when a user's profile could not be fetched
	// from the directory; no records are written in that case
	ErrProfileUnavailable = errors.New("profile unavailable")

	// ErrDuplicateIdentity is returned when a user could not be created or updated
	// because another request claimed the same Twitch ID or login, and retrying the
	// lookup did not resolve the conflict
	ErrDuplicateIdentity = errors.New("duplicate identity")
)

// Directory looks up the current profile of any Twitch user
type Directory interface {
	GetUserByID(ctx context.Context, id string) (profile.Raw, error)
	GetUserByName(ctx context.Context, name string) (profile.Raw, error)
}

// Result describes the outcome of reconciling a profile against the store. Change is
// nil unless the stored user's profile was updated.
type Result struct {
	User   *store.User
	IsNew  bool
	Change *store.ProfileChange
}

// Registry finds or creates users, anchoring every identity on its Twitch user ID.
// Login names are treated as mutable: a login that resolves to a known Twitch ID is
// a rename, never a new user.
type Registry struct {
	store     store.Store
	directory Directory
	logger    *slog.Logger
	group     singleflight.Group
}

func New(s store.Store, directory Directory, logger *slog.Logger) *Registry {
	return &Registry{
		store:     s,
		directory: directory,
		logger:    logger,
	}
}

// FindOrRegisterByID returns the user with the given Twitch ID, creating them from
// their directory profile if necessary, and reconciling any stored profile against
// the directory otherwise. Concurrent calls for the same ID share a single result.
func (r *Registry) FindOrRegisterByID(ctx context.Context, twitchID string) (*Result, error) {
	twitchID = strings.TrimSpace(twitchID)
	return r.coalesce(ctx, "id:"+twitchID, func(ctx context.Context) (*Result, error) {
		return r.findOrRegisterByID(ctx, twitchID)
	})
}

func (r *Registry) findOrRegisterByID(ctx context.Context, twitchID string) (*Result, error) {
	fresh, err := r.fetch(ctx, twitchID, r.directory.GetUserByID)
	if err != nil {
		return nil, err
	}
	if fresh.TwitchID != twitchID {
		return nil, fmt.Errorf("%w: directory returned user %s for id %s", ErrProfileUnavailable, fresh.TwitchID, twitchID)
	}
	return r.upsert(ctx, fresh)
}

// FindOrRegisterByLogin returns the user who holds the given login name. A stored
// holder is reconciled by Twitch ID, so a user who has since renamed is still found
// and their rename applied. If the login has meanwhile been claimed by another
// account, that account is returned instead. Only an unknown login is looked up in
// the directory by name.
func (r *Registry) FindOrRegisterByLogin(ctx context.Context, login string) (*Result, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	return r.coalesce(ctx, "login:"+login, func(ctx context.Context) (*Result, error) {
		stored, err := r.store.GetUserByLogin(ctx, login)
		if errors.Is(err, store.ErrNotFound) || login == "" {
			return r.findOrRegisterByName(ctx, login)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up user by login %s: %w", login, err)
		}

		result, err := r.findOrRegisterByID(ctx, stored.TwitchID)
		if errors.Is(err, ErrNotFound) {
			// The stored holder's account no longer exists on Twitch
			return r.findOrRegisterByName(ctx, login)
		}
		if err != nil {
			return nil, err
		}
		if result.User.Login == login {
			return result, nil
		}

		// The stored holder has renamed away: the login may now belong to someone else
		claimed, err := r.findOrRegisterByName(ctx, login)
		if errors.Is(err, ErrProfileUnavailable) {
			r.logger.Info("Login no longer exists; returning its former holder", "login", login, "twitchId", result.User.TwitchID)
			return result, nil
		}
		return claimed, err
	})
}

func (r *Registry) findOrRegisterByName(ctx context.Context, login string) (*Result, error) {
	fresh, err := r.fetch(ctx, login, r.directory.GetUserByName)
	if err != nil {
		return nil, err
	}
	return r.upsert(ctx, fresh)
}

// coalesce runs fn once for all concurrent callers sharing key. The shared work is
// detached from any one caller's cancellation, while each caller still stops
// waiting as soon as its own ctx is done.
func (r *Registry) coalesce(ctx context.Context, key string, fn func(ctx context.Context) (*Result, error)) (*Result, error) {
	detached := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Result), nil
	}
}

// Register finds or creates the user described by a profile that the caller has
// already fetched
func (r *Registry) Register(ctx context.Context, raw profile.Raw) (*Result, error) {
	fresh, err := profile.Normalize(raw)
	if err != nil {
		return nil, err
	}
	return r.upsert(ctx, fresh)
}

func (r *Registry) fetch(ctx context.Context, key string, lookup func(context.Context, string) (profile.Raw, error)) (*profile.Profile, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty lookup key", ErrProfileUnavailable)
	}
	raw, err := lookup(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileUnavailable, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileUnavailable, ErrNotFound)
	}
	return profile.Normalize(raw)
}

func (r *Registry) upsert(ctx context.Context, fresh *profile.Profile) (*Result, error) {
	var result *Result
	err := RetryOnConflict(ctx, r.logger, func() error {
		return r.store.Tx(ctx, func(q store.Queries) error {
			var err error
			result, err = r.Upsert(ctx, q, fresh)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Upsert creates or reconciles the user identified by fresh.TwitchID, using the
// given Queries so that the caller may include it in a larger transaction. When the
// stored profile has drifted, the user is updated and a ProfileChange is recorded.
func (r *Registry) Upsert(ctx context.Context, q store.Queries, fresh *profile.Profile) (*Result, error) {
	existing, err := q.GetUserByTwitchID(ctx, fresh.TwitchID)
	if errors.Is(err, store.ErrNotFound) {
		if err := r.releaseLogin(ctx, q, fresh); err != nil {
			return nil, err
		}
		user := &store.User{Profile: *fresh}
		if err := q.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", fresh.TwitchID, err)
		}
		r.logger.Info("Registered new user", "twitchId", user.TwitchID, "login", user.Login)
		return &Result{User: user, IsNew: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %s: %w", fresh.TwitchID, err)
	}

	changes := profile.Diff(&existing.Profile, fresh)
	if changes.Empty() {
		return &Result{User: existing}, nil
	}
	previous := changes.Previous(&existing.Profile)
	if _, renamed := changes["loginName"]; renamed {
		if err := r.releaseLogin(ctx, q, fresh); err != nil {
			return nil, err
		}
		r.logger.Info("User renamed", "twitchId", existing.TwitchID, "from", existing.Login, "to", fresh.Login)
	}

	existing.Profile = *fresh
	if err := q.UpdateUser(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update user %s: %w", existing.TwitchID, err)
	}
	change, err := changelog.Record(ctx, q, existing.ID, previous, changes)
	if err != nil {
		return nil, err
	}
	r.logger.Info("Updated user profile", "twitchId", existing.TwitchID, "fields", changes.Fields())
	return &Result{User: existing, Change: change}, nil
}

// releaseLogin frees fresh.Login if it's still stored on some other user, which can
// only happen if that user renamed away from it since we last saw them. The stale
// holder gets a placeholder login until their own profile is next reconciled.
func (r *Registry) releaseLogin(ctx context.Context, q store.Queries, fresh *profile.Profile) error {
	holder, err := q.GetUserByLogin(ctx, fresh.Login)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up user by login %s: %w", fresh.Login, err)
	}
	if holder.TwitchID == fresh.TwitchID {
		return nil
	}

	previous := map[string]any{"loginName": holder.Login}
	holder.Login = placeholderLogin(holder.TwitchID)
	if err := q.UpdateUser(ctx, holder); err != nil {
		return fmt.Errorf("failed to release login %s from user %s: %w", fresh.Login, holder.TwitchID, err)
	}
	if _, err := changelog.Record(ctx, q, holder.ID, previous, map[string]any{"loginName": holder.Login}); err != nil {
		return err
	}
	r.logger.Warn("Released stale login", "login", fresh.Login, "fromTwitchId", holder.TwitchID, "toTwitchId", fresh.TwitchID)
	return nil
}

func placeholderLogin(twitchID string) string {
	return "#" + twitchID
}

// RetryOnConflict runs fn, and runs it once more if it fails with store.ErrConflict,
// on the assumption that a concurrent request has just created the same user and a
// second lookup will find them. A second conflict yields ErrDuplicateIdentity.
func RetryOnConflict(ctx context.Context, logger *slog.Logger, fn func() error) error {
	err := fn()
	if !errors.Is(err, store.ErrConflict) {
		return err
	}
	logger.Warn("Retrying after conflicting write", "error", err)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	err = fn()
	if errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("%w: %w", ErrDuplicateIdentity, err)
	}
	return err
}
