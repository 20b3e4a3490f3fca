package login

import (
	"context"
	"errors"
	"fmt"

	"github.com/golden-vcr/accounts/internal/events"
	"github.com/golden-vcr/accounts/internal/profile"
	"github.com/golden-vcr/accounts/internal/registry"
	"github.com/golden-vcr/accounts/internal/store"
	"github.com/golden-vcr/accounts/internal/tokens"
	"golang.org/x/exp/slog"
)

// ErrPersistence is returned when the records for a login could not be stored. No
// partial writes are retained.
var ErrPersistence = errors.New("failed to persist login")

// Meta describes the client that completed a login
type Meta struct {
	IP        string
	UserAgent string
}

// Outcome is the result of a successful login
type Outcome struct {
	User   *store.User
	Token  *store.Token
	Login  *store.Login
	IsNew  bool
	Change *store.ProfileChange
}

// Controller handles every successful OAuth callback: it reconciles the user's
// profile, issues a new token, records the login, and emits events
type Controller struct {
	store    store.Store
	registry *registry.Registry
	bus      *events.Bus
	logger   *slog.Logger
}

func NewController(s store.Store, r *registry.Registry, bus *events.Bus, logger *slog.Logger) *Controller {
	return &Controller{
		store:    s,
		registry: r,
		bus:      bus,
		logger:   logger,
	}
}

// Verify accepts the credentials and profile obtained from a completed OAuth exchange
// and persists the login. The user, token and login record are written in a single
// transaction, which is retried once if a concurrent login created the same user
// first. Events are emitted only once that transaction has committed.
func (c *Controller) Verify(ctx context.Context, creds tokens.Credentials, raw profile.Raw, meta Meta) (*Outcome, error) {
	fresh, err := profile.Normalize(raw)
	if err != nil {
		return nil, err
	}
	if creds.AccessToken == "" {
		return nil, tokens.ErrMissingAccessToken
	}

	var outcome *Outcome
	err = registry.RetryOnConflict(ctx, c.logger, func() error {
		return c.store.Tx(ctx, func(q store.Queries) error {
			result, err := c.registry.Upsert(ctx, q, fresh)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(ctx, q, result.User.ID, creds)
			if err != nil {
				return err
			}
			login := &store.Login{
				TokenID:   token.ID,
				UserID:    result.User.ID,
				IP:        meta.IP,
				UserAgent: meta.UserAgent,
			}
			if err := q.CreateLogin(ctx, login); err != nil {
				return fmt.Errorf("failed to record login: %w", err)
			}
			outcome = &Outcome{
				User:   result.User,
				Token:  token,
				Login:  login,
				IsNew:  result.IsNew,
				Change: result.Change,
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, registry.ErrDuplicateIdentity) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	logger := c.logger.With("twitchId", outcome.User.TwitchID, "login", outcome.User.Login)
	logger.Info("User logged in", "isNew", outcome.IsNew, "profileChanged", outcome.Change != nil)
	c.emit(ctx, logger, outcome)
	return outcome, nil
}

func (c *Controller) emit(ctx context.Context, logger *slog.Logger, outcome *Outcome) {
	err := c.bus.EmitLogin(ctx, events.Login{
		User:  outcome.User,
		Token: outcome.Token,
		IsNew: outcome.IsNew,
	})
	if err != nil {
		logger.Error("Failed to handle login event", "error", err)
	}
	if outcome.Change == nil {
		return
	}
	err = c.bus.EmitProfileChanged(ctx, events.ProfileChanged{
		User:   outcome.User,
		IsNew:  outcome.IsNew,
		Change: outcome.Change,
	})
	if err != nil {
		logger.Error("Failed to handle profileChanged event", "error", err)
	}
}
