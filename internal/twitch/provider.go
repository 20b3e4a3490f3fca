package twitch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golden-vcr/accounts/internal/profile"
	"github.com/golden-vcr/accounts/internal/tokens"
	"github.com/nicklaw5/helix/v2"
	"golang.org/x/time/rate"
)

// OAuthClient is the subset of Twitch API client functionality used to carry out the
// authorization code grant flow
type OAuthClient interface {
	GetAuthorizationURL(params *helix.AuthorizationURLParams) string
	RequestUserAccessToken(code string) (*helix.UserAccessTokenResponse, error)
	RefreshUserAccessToken(refreshToken string) (*helix.RefreshTokenResponse, error)
}

// NewUsersClientFunc initializes a client that makes API calls as the user who owns
// the given access token
type NewUsersClientFunc func(accessToken string) (UsersClient, error)

// Provider exchanges authorization codes for user access tokens and fetches the
// profile of the user who granted them
type Provider struct {
	oauth          OAuthClient
	newUsersClient NewUsersClientFunc
	scopes         []string
	limiter        *rate.Limiter
	now            func() time.Time
}

func NewProvider(clientId, clientSecret, redirectURI string, scopes []string) (*Provider, error) {
	c, err := helix.NewClient(&helix.Options{
		ClientID:     clientId,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{
		oauth: c,
		newUsersClient: func(accessToken string) (UsersClient, error) {
			return helix.NewClient(&helix.Options{
				ClientID:        clientId,
				UserAccessToken: accessToken,
			})
		},
		scopes:  scopes,
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		now:     time.Now,
	}, nil
}

// AuthorizeURL returns the id.twitch.tv URL to which a user should be sent in order to
// log in, carrying the given state value back to our callback
func (p *Provider) AuthorizeURL(state string) string {
	return p.oauth.GetAuthorizationURL(&helix.AuthorizationURLParams{
		ResponseType: "code",
		Scopes:       p.scopes,
		State:        state,
	})
}

// Exchange redeems an authorization code for a user access token
func (p *Provider) Exchange(ctx context.Context, code string) (tokens.Credentials, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return tokens.Credentials{}, err
	}
	r, err := p.oauth.RequestUserAccessToken(code)
	if err != nil {
		return tokens.Credentials{}, fmt.Errorf("failed to request user access token: %w", err)
	}
	if r.StatusCode != http.StatusOK {
		return tokens.Credentials{}, fmt.Errorf("got response %d from token request: %s", r.StatusCode, r.ErrorMessage)
	}
	return tokens.CredentialsFromExpiry(r.Data.AccessToken, r.Data.RefreshToken, r.Data.ExpiresIn, p.now()), nil
}

// Refresh exchanges a refresh token for a new user access token
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (tokens.Credentials, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return tokens.Credentials{}, err
	}
	r, err := p.oauth.RefreshUserAccessToken(refreshToken)
	if err != nil {
		return tokens.Credentials{}, fmt.Errorf("failed to refresh user access token: %w", err)
	}
	if r.StatusCode != http.StatusOK {
		return tokens.Credentials{}, fmt.Errorf("got response %d from token refresh request: %s", r.StatusCode, r.ErrorMessage)
	}
	return tokens.CredentialsFromExpiry(r.Data.AccessToken, r.Data.RefreshToken, r.Data.ExpiresIn, p.now()), nil
}

// FetchProfile returns the profile of the user who owns the given access token
func (p *Provider) FetchProfile(ctx context.Context, accessToken string) (profile.Raw, error) {
	c, err := p.newUsersClient(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Twitch API client: %w", err)
	}
	users, err := getUsers(ctx, p.limiter, c, &helix.UsersParams{})
	if err != nil {
		return nil, err
	}
	if len(users) != 1 {
		return nil, errors.New("access token did not resolve to a single user")
	}
	return profile.HelixUser(users[0]), nil
}
