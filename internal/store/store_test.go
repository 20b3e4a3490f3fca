package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golden-vcr/accounts/internal/profile"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the behavior that every Store implementation must share
func runStoreSuite(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("users are unique by twitch id and login", func(t *testing.T) {
		u := &User{Profile: profile.Profile{TwitchID: "100", Login: "jaidchen", DisplayName: "Jaidchen", ViewCount: 10}}
		require.NoError(t, s.CreateUser(ctx, u))
		assert.NotEqual(t, uuid.Nil, u.ID)
		assert.False(t, u.CreatedAt.IsZero())

		err := s.CreateUser(ctx, &User{Profile: profile.Profile{TwitchID: "100", Login: "other"}})
		assert.ErrorIs(t, err, ErrConflict)

		err = s.CreateUser(ctx, &User{Profile: profile.Profile{TwitchID: "101", Login: "jaidchen"}})
		assert.ErrorIs(t, err, ErrConflict)

		got, err := s.GetUserByTwitchID(ctx, "100")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, 10, got.ViewCount)

		got, err = s.GetUserByLogin(ctx, "JaidChen")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		_, err = s.GetUserByTwitchID(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("updating a user never changes its twitch id", func(t *testing.T) {
		u := &User{Profile: profile.Profile{TwitchID: "200", Login: "before"}}
		require.NoError(t, s.CreateUser(ctx, u))

		u.Login = "after"
		u.TwitchID = "999"
		require.NoError(t, s.UpdateUser(ctx, u))
		assert.Equal(t, "200", u.TwitchID)

		got, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "after", got.Login)
		assert.Equal(t, "200", got.TwitchID)

		other := &User{Profile: profile.Profile{TwitchID: "201", Login: "taken"}}
		require.NoError(t, s.CreateUser(ctx, other))
		got.Login = "taken"
		assert.ErrorIs(t, s.UpdateUser(ctx, got), ErrConflict)

		missing := &User{ID: uuid.New(), Profile: profile.Profile{Login: "ghost"}}
		assert.ErrorIs(t, s.UpdateUser(ctx, missing), ErrNotFound)
	})

	t.Run("latest token is the most recently created", func(t *testing.T) {
		u := &User{Profile: profile.Profile{TwitchID: "300", Login: "tokens"}}
		require.NoError(t, s.CreateUser(ctx, u))

		_, err := s.GetLatestToken(ctx, u.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		first := &Token{UserID: u.ID, AccessToken: "a1", RefreshToken: "r1", ExpiresAt: &expiry}
		require.NoError(t, s.CreateToken(ctx, first))
		second := &Token{UserID: u.ID, AccessToken: "a2"}
		require.NoError(t, s.CreateToken(ctx, second))

		latest, err := s.GetLatestToken(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)
		assert.Equal(t, "a2", latest.AccessToken)
		assert.Nil(t, latest.ExpiresAt)

		count, err := s.CountTokens(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		err = s.CreateToken(ctx, &Token{UserID: uuid.New(), AccessToken: "orphan"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("logins must reference a token", func(t *testing.T) {
		u := &User{Profile: profile.Profile{TwitchID: "400", Login: "logins"}}
		require.NoError(t, s.CreateUser(ctx, u))
		token := &Token{UserID: u.ID, AccessToken: "a"}
		require.NoError(t, s.CreateToken(ctx, token))

		login := &Login{TokenID: token.ID, UserID: u.ID, IP: "::1", UserAgent: "test"}
		require.NoError(t, s.CreateLogin(ctx, login))
		assert.NotEqual(t, uuid.Nil, login.ID)

		err := s.CreateLogin(ctx, &Login{TokenID: uuid.New(), UserID: u.ID, IP: "::1"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("profile changes are listed newest first", func(t *testing.T) {
		u := &User{Profile: profile.Profile{TwitchID: "500", Login: "changes"}}
		require.NoError(t, s.CreateUser(ctx, u))

		first := &ProfileChange{UserID: u.ID, PreviousValues: map[string]any{"displayName": "a"}, NewValues: map[string]any{"displayName": "b"}}
		require.NoError(t, s.CreateProfileChange(ctx, first))
		second := &ProfileChange{UserID: u.ID, PreviousValues: map[string]any{"displayName": "b"}, NewValues: map[string]any{"displayName": "c"}}
		require.NoError(t, s.CreateProfileChange(ctx, second))

		changes, err := s.ListProfileChanges(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, changes, 2)
		assert.Equal(t, second.ID, changes[0].ID)
		assert.Equal(t, "c", changes[0].NewValues["displayName"])
		assert.Equal(t, first.ID, changes[1].ID)

		changes, err = s.ListProfileChanges(ctx, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, changes)
	})

	t.Run("stored profile changes are unaffected by caller mutation", func(t *testing.T) {
		u := &User{Profile: profile.Profile{TwitchID: "550", Login: "immutable"}}
		require.NoError(t, s.CreateUser(ctx, u))

		change := &ProfileChange{UserID: u.ID, PreviousValues: map[string]any{"displayName": "a"}, NewValues: map[string]any{"displayName": "b"}}
		require.NoError(t, s.CreateProfileChange(ctx, change))
		change.PreviousValues["displayName"] = "tampered"
		change.NewValues["displayName"] = "tampered"

		listed, err := s.ListProfileChanges(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, "a", listed[0].PreviousValues["displayName"])
		assert.Equal(t, "b", listed[0].NewValues["displayName"])
		listed[0].NewValues["displayName"] = "tampered"

		again, err := s.ListProfileChanges(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "b", again[0].NewValues["displayName"])
	})

	t.Run("failed transaction retains no writes", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.Tx(ctx, func(q Queries) error {
			u := &User{Profile: profile.Profile{TwitchID: "600", Login: "rollback"}}
			if err := q.CreateUser(ctx, u); err != nil {
				return err
			}
			if err := q.CreateToken(ctx, &Token{UserID: u.ID, AccessToken: "a"}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = s.GetUserByTwitchID(ctx, "600")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("successful transaction commits all writes", func(t *testing.T) {
		var userID uuid.UUID
		err := s.Tx(ctx, func(q Queries) error {
			u := &User{Profile: profile.Profile{TwitchID: "700", Login: "commit"}}
			if err := q.CreateUser(ctx, u); err != nil {
				return err
			}
			userID = u.ID
			return q.CreateToken(ctx, &Token{UserID: u.ID, AccessToken: "a"})
		})
		require.NoError(t, err)

		count, err := s.CountTokens(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func Test_Memory(t *testing.T) {
	runStoreSuite(t, NewMemory())
}

func Test_Memory_Tx_canceledContextDiscardsWrites(t *testing.T) {
	s := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	err := s.Tx(ctx, func(q Queries) error {
		cancel()
		return q.CreateUser(ctx, &User{Profile: profile.Profile{TwitchID: "1", Login: "a"}})
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.Users())
}

func Test_Schema_declaresEveryRecordType(t *testing.T) {
	names := make([]string, 0, len(Schema))
	for _, rt := range Schema {
		names = append(names, rt.Name)
	}
	assert.ElementsMatch(t, []string{"User", "Token", "Login", "ProfileChange"}, names)
}

func Test_Schema_matchesMigrations(t *testing.T) {
	b, err := migrationsFS.ReadFile("migrations/0001_init.up.sql")
	require.NoError(t, err)
	sql := string(b)

	for _, rt := range Schema {
		start := strings.Index(sql, "CREATE TABLE "+rt.Table+" (")
		require.GreaterOrEqual(t, start, 0, "no table for %s", rt.Name)
		end := strings.Index(sql[start:], ");")
		require.Greater(t, end, 0)
		table := sql[start : start+end]

		for _, column := range rt.Unique {
			assert.Contains(t, table, "UNIQUE ("+column+")", "%s.%s should be unique", rt.Table, column)
		}
		for _, rel := range rt.Relations {
			assert.Contains(t, table, rel.Column+" ", "%s should have column %s", rt.Table, rel.Column)
			assert.Contains(t, table, "REFERENCES "+rel.References+" (id)", "%s should reference %s", rt.Table, rel.References)
		}
	}
}
