package twitch

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golden-vcr/accounts/internal/profile"
	"github.com/nicklaw5/helix/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestProvider(oauth *mockOAuthClient, users *mockUsersClient) *Provider {
	return &Provider{
		oauth: oauth,
		newUsersClient: func(accessToken string) (UsersClient, error) {
			users.tokens = append(users.tokens, accessToken)
			return users, nil
		},
		scopes:  []string{"user:read:email"},
		limiter: rate.NewLimiter(rate.Inf, 1),
		now:     func() time.Time { return testNow },
	}
}

func Test_Provider_AuthorizeURL(t *testing.T) {
	oauth := &mockOAuthClient{}
	p := newTestProvider(oauth, &mockUsersClient{})

	assert.Equal(t, "https://id.twitch.tv/oauth2/authorize?state=some-state", p.AuthorizeURL("some-state"))
	require.NotNil(t, oauth.authParams)
	assert.Equal(t, "code", oauth.authParams.ResponseType)
	assert.Equal(t, []string{"user:read:email"}, oauth.authParams.Scopes)
	assert.Equal(t, "some-state", oauth.authParams.State)
}

func Test_Provider_Exchange(t *testing.T) {
	tests := []struct {
		name        string
		oauth       *mockOAuthClient
		wantErr     string
		wantExpires *time.Time
	}{
		{
			"successful exchange",
			&mockOAuthClient{credentials: helix.AccessCredentials{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 60}},
			"",
			func() *time.Time { t := testNow.Add(time.Minute); return &t }(),
		},
		{
			"request fails",
			&mockOAuthClient{err: errors.New("timeout")},
			"failed to request user access token: timeout",
			nil,
		},
		{
			"code is rejected",
			&mockOAuthClient{status: http.StatusBadRequest, message: "Invalid authorization code"},
			"got response 400 from token request: Invalid authorization code",
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(tt.oauth, &mockUsersClient{})
			creds, err := p.Exchange(context.Background(), "some-code")
			assert.Equal(t, []string{"some-code"}, tt.oauth.codes)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "access", creds.AccessToken)
			assert.Equal(t, "refresh", creds.RefreshToken)
			assert.Equal(t, tt.wantExpires, creds.ExpiresAt)
		})
	}
}

func Test_Provider_Refresh(t *testing.T) {
	oauth := &mockOAuthClient{credentials: helix.AccessCredentials{AccessToken: "new-access", RefreshToken: "new-refresh"}}
	p := newTestProvider(oauth, &mockUsersClient{})

	creds, err := p.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, []string{"old-refresh"}, oauth.refreshTokens)
	assert.Equal(t, "new-access", creds.AccessToken)
	assert.Equal(t, "new-refresh", creds.RefreshToken)
	assert.Nil(t, creds.ExpiresAt)

	oauth.status = http.StatusBadRequest
	oauth.message = "Invalid refresh token"
	_, err = p.Refresh(context.Background(), "old-refresh")
	assert.EqualError(t, err, "got response 400 from token refresh request: Invalid refresh token")
}

func Test_Provider_FetchProfile(t *testing.T) {
	users := &mockUsersClient{users: []helix.User{{ID: "123", Login: "jaidchen", ViewCount: 10}}}
	p := newTestProvider(&mockOAuthClient{}, users)

	raw, err := p.FetchProfile(context.Background(), "access")
	require.NoError(t, err)
	assert.Equal(t, []string{"access"}, users.tokens)
	require.Len(t, users.calls, 1)
	assert.Empty(t, users.calls[0].IDs)
	assert.Empty(t, users.calls[0].Logins)

	fetched, err := profile.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "123", fetched.TwitchID)

	users.users = nil
	_, err = p.FetchProfile(context.Background(), "access")
	assert.EqualError(t, err, "access token did not resolve to a single user")
}

type mockOAuthClient struct {
	credentials   helix.AccessCredentials
	err           error
	status        int
	message       string
	authParams    *helix.AuthorizationURLParams
	codes         []string
	refreshTokens []string
}

func (m *mockOAuthClient) GetAuthorizationURL(params *helix.AuthorizationURLParams) string {
	m.authParams = params
	return "https://id.twitch.tv/oauth2/authorize?state=" + params.State
}

func (m *mockOAuthClient) common() helix.ResponseCommon {
	status := m.status
	if status == 0 {
		status = http.StatusOK
	}
	return helix.ResponseCommon{StatusCode: status, ErrorMessage: m.message}
}

func (m *mockOAuthClient) RequestUserAccessToken(code string) (*helix.UserAccessTokenResponse, error) {
	m.codes = append(m.codes, code)
	if m.err != nil {
		return nil, m.err
	}
	return &helix.UserAccessTokenResponse{ResponseCommon: m.common(), Data: m.credentials}, nil
}

func (m *mockOAuthClient) RefreshUserAccessToken(refreshToken string) (*helix.RefreshTokenResponse, error) {
	m.refreshTokens = append(m.refreshTokens, refreshToken)
	if m.err != nil {
		return nil, m.err
	}
	return &helix.RefreshTokenResponse{ResponseCommon: m.common(), Data: m.credentials}, nil
}
