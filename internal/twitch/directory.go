package twitch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golden-vcr/accounts/internal/profile"
	"github.com/golden-vcr/accounts/internal/registry"
	"github.com/nicklaw5/helix/v2"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// UsersClient is the subset of Twitch API client functionality used to look up users
type UsersClient interface {
	GetUsers(params *helix.UsersParams) (*helix.UsersResponse, error)
}

// Directory looks up Twitch users by ID or login name. Results are cached briefly so
// that repeated lookups of the same user don't each cost an API call.
type Directory struct {
	client  UsersClient
	limiter *rate.Limiter
	cache   *cache.Cache
}

func NewDirectory(client UsersClient) *Directory {
	return &Directory{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		cache:   cache.New(time.Minute, 5*time.Minute),
	}
}

func (d *Directory) GetUserByID(ctx context.Context, id string) (profile.Raw, error) {
	return d.lookup(ctx, "id:"+id, &helix.UsersParams{IDs: []string{id}})
}

func (d *Directory) GetUserByName(ctx context.Context, name string) (profile.Raw, error) {
	name = strings.ToLower(name)
	return d.lookup(ctx, "login:"+name, &helix.UsersParams{Logins: []string{name}})
}

// Forget evicts a user from the cache, so that the next lookup sees their latest
// profile
func (d *Directory) Forget(id string) {
	if cached, ok := d.cache.Get("id:" + id); ok {
		d.cache.Delete("login:" + cached.(profile.HelixUser).Login)
	}
	d.cache.Delete("id:" + id)
}

func (d *Directory) lookup(ctx context.Context, key string, params *helix.UsersParams) (profile.Raw, error) {
	if cached, ok := d.cache.Get(key); ok {
		return cached.(profile.HelixUser), nil
	}
	users, err := getUsers(ctx, d.limiter, d.client, params)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, registry.ErrNotFound
	}

	user := profile.HelixUser(users[0])
	d.cache.SetDefault("id:"+user.ID, user)
	d.cache.SetDefault("login:"+strings.ToLower(user.Login), user)
	return user, nil
}

func getUsers(ctx context.Context, limiter *rate.Limiter, c UsersClient, params *helix.UsersParams) ([]helix.User, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}
	r, err := c.GetUsers(params)
	if err != nil {
		return nil, fmt.Errorf("failed to get users from Twitch API: %w", err)
	}
	if r.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("got response %d from get users request: %s", r.StatusCode, r.ErrorMessage)
	}
	return r.Data.Users, nil
}
