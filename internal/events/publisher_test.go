package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golden-vcr/accounts/internal/profile"
	"github.com/golden-vcr/accounts/internal/store"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Publisher(t *testing.T) {
	ch := &mockChannel{}
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p := &Publisher{ch: ch, exchange: "twitch-logins", now: func() time.Time { return now }}
	bus := NewBus()
	p.Attach(bus)

	user := &store.User{ID: uuid.MustParse("a3cd1c08-f1c9-4c58-a7cd-a8e1a7d4a7c1"), Profile: profile.Profile{TwitchID: "123", Login: "jaidchen"}}
	token := &store.Token{UserID: user.ID, AccessToken: "secret-access", RefreshToken: "secret-refresh"}
	change := &store.ProfileChange{UserID: user.ID, PreviousValues: map[string]any{"viewCount": 10}, NewValues: map[string]any{"viewCount": 15}}

	require.NoError(t, bus.EmitLogin(context.Background(), Login{User: user, Token: token, IsNew: true}))
	require.NoError(t, bus.EmitProfileChanged(context.Background(), ProfileChanged{User: user, Change: change}))

	require.Len(t, ch.published, 2)
	for _, msg := range ch.published {
		assert.Equal(t, "application/json", msg.ContentType)
		assert.Equal(t, now, msg.Timestamp)
		assert.NotEmpty(t, msg.MessageId)
		assert.NotContains(t, string(msg.Body), "secret")
	}
	assert.Equal(t, []string{"twitch-logins", "twitch-logins"}, ch.exchanges)

	var login Message
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &login))
	assert.Equal(t, MessageTypeLogin, login.Type)
	assert.Equal(t, MessageTypeLogin, ch.published[0].Type)
	assert.True(t, login.IsNew)
	assert.Equal(t, "jaidchen", login.User.Login)
	require.NotNil(t, login.Token)
	assert.Equal(t, user.ID, login.Token.UserID)
	assert.Nil(t, login.Change)

	var changed Message
	require.NoError(t, json.Unmarshal(ch.published[1].Body, &changed))
	assert.Equal(t, MessageTypeProfileChanged, changed.Type)
	assert.False(t, changed.IsNew)
	require.NotNil(t, changed.Change)
	assert.Equal(t, float64(15), changed.Change.NewValues["viewCount"])
	assert.Nil(t, changed.Token)
}

func Test_Publisher_error(t *testing.T) {
	ch := &mockChannel{err: errors.New("channel closed")}
	p := &Publisher{ch: ch, exchange: "twitch-logins", now: time.Now}
	bus := NewBus()
	p.Attach(bus)

	err := bus.EmitLogin(context.Background(), Login{User: &store.User{}})
	assert.ErrorContains(t, err, "failed to publish login message")
	assert.ErrorContains(t, err, "channel closed")
}

type mockChannel struct {
	err       error
	exchanges []string
	published []amqp.Publishing
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if m.err != nil {
		return m.err
	}
	m.exchanges = append(m.exchanges, exchange)
	m.published = append(m.published, msg)
	return nil
}

func (m *mockChannel) Close() error {
	return nil
}
