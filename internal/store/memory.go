package store

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store that enforces the same constraints as the Postgres
// schema. Transactions are serialized: fn runs against a private copy of the data
// which replaces the shared copy only if fn succeeds. Code running inside Tx must
// use the Queries it is given, never the Memory itself.
type Memory struct {
	mu    sync.Mutex
	state *memoryState
	now   func() time.Time
}

type memoryState struct {
	users   []User
	tokens  []Token
	logins  []Login
	changes []ProfileChange
}

func NewMemory() *Memory {
	return &Memory{
		state: &memoryState{},
		now:   time.Now,
	}
}

func (m *Memory) Close() {}

func (m *Memory) Tx(ctx context.Context, fn func(q Queries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	working := m.state.clone()
	if err := fn(&memoryQueries{state: working, now: m.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = working
	return nil
}

// Users returns a snapshot of every stored user, in creation order
func (m *Memory) Users() []User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]User(nil), m.state.users...)
}

// Logins returns a snapshot of every stored login, in creation order
func (m *Memory) Logins() []Login {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Login(nil), m.state.logins...)
}

func (m *Memory) queries() *memoryQueries {
	return &memoryQueries{state: m.state, now: m.now}
}

func (m *Memory) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries().GetUser(ctx, id)
}

func (m *Memory) GetUserByTwitchID(ctx context.Context, twitchID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries().GetUserByTwitchID(ctx, twitchID)
}

func (m *Memory) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries().GetUserByLogin(ctx, login)
}

func (m *Memory) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries().CreateUser(ctx, user)
}

func (m *Memory) UpdateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries().UpdateUser(ctx, user)
}

func (m *Memory) CreateToken(ctx context.Context, token *Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries().CreateToken(ctx, token)
}

func (m *Memory) GetLatestToken(ctx context.Context, userID uuid.UUID) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries().GetLatestToken(ctx, userID)
}

func (m *Memory) CountTokens(ctx context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries().CountTokens(ctx, userID)
}

func (m *Memory) CreateLogin(ctx context.Context, login *Login) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries().CreateLogin(ctx, login)
}

func (m *Memory) CreateProfileChange(ctx context.Context, change *ProfileChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries().CreateProfileChange(ctx, change)
}

func (m *Memory) ListProfileChanges(ctx context.Context, userID uuid.UUID) ([]ProfileChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries().ListProfileChanges(ctx, userID)
}

func (s *memoryState) clone() *memoryState {
	return &memoryState{
		users:   append([]User(nil), s.users...),
		tokens:  append([]Token(nil), s.tokens...),
		logins:  append([]Login(nil), s.logins...),
		changes: append([]ProfileChange(nil), s.changes...),
	}
}

// memoryQueries operates on a memoryState without locking: callers are responsible
// for holding Memory.mu
type memoryQueries struct {
	state *memoryState
	now   func() time.Time
}

func (q *memoryQueries) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	for i := range q.state.users {
		if q.state.users[i].ID == id {
			u := q.state.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (q *memoryQueries) GetUserByTwitchID(ctx context.Context, twitchID string) (*User, error) {
	for i := range q.state.users {
		if q.state.users[i].TwitchID == twitchID {
			u := q.state.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (q *memoryQueries) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	login = strings.ToLower(login)
	for i := range q.state.users {
		if q.state.users[i].Login == login {
			u := q.state.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (q *memoryQueries) CreateUser(ctx context.Context, user *User) error {
	for i := range q.state.users {
		if q.state.users[i].TwitchID == user.TwitchID {
			return fmt.Errorf("%w: twitch_id %s", ErrConflict, user.TwitchID)
		}
		if q.state.users[i].Login == user.Login {
			return fmt.Errorf("%w: login %s", ErrConflict, user.Login)
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = q.now()
	user.UpdatedAt = user.CreatedAt
	q.state.users = append(q.state.users, *user)
	return nil
}

func (q *memoryQueries) UpdateUser(ctx context.Context, user *User) error {
	index := -1
	for i := range q.state.users {
		if q.state.users[i].ID == user.ID {
			index = i
			continue
		}
		if q.state.users[i].Login == user.Login {
			return fmt.Errorf("%w: login %s", ErrConflict, user.Login)
		}
	}
	if index < 0 {
		return ErrNotFound
	}
	stored := &q.state.users[index]
	twitchID := stored.TwitchID
	stored.Profile = user.Profile
	stored.TwitchID = twitchID
	stored.UpdatedAt = q.now()
	*user = *stored
	return nil
}

func (q *memoryQueries) CreateToken(ctx context.Context, token *Token) error {
	if _, err := q.GetUser(ctx, token.UserID); err != nil {
		return fmt.Errorf("token references unknown user %s: %w", token.UserID, err)
	}
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	token.CreatedAt = q.now()
	q.state.tokens = append(q.state.tokens, *token)
	return nil
}

func (q *memoryQueries) GetLatestToken(ctx context.Context, userID uuid.UUID) (*Token, error) {
	for i := len(q.state.tokens) - 1; i >= 0; i-- {
		if q.state.tokens[i].UserID == userID {
			t := q.state.tokens[i]
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (q *memoryQueries) CountTokens(ctx context.Context, userID uuid.UUID) (int, error) {
	count := 0
	for i := range q.state.tokens {
		if q.state.tokens[i].UserID == userID {
			count++
		}
	}
	return count, nil
}

func (q *memoryQueries) CreateLogin(ctx context.Context, login *Login) error {
	found := false
	for i := range q.state.tokens {
		if q.state.tokens[i].ID == login.TokenID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("login references unknown token %s: %w", login.TokenID, ErrNotFound)
	}
	if login.ID == uuid.Nil {
		login.ID = uuid.New()
	}
	login.CreatedAt = q.now()
	q.state.logins = append(q.state.logins, *login)
	return nil
}

func (q *memoryQueries) CreateProfileChange(ctx context.Context, change *ProfileChange) error {
	if _, err := q.GetUser(ctx, change.UserID); err != nil {
		return fmt.Errorf("profile change references unknown user %s: %w", change.UserID, err)
	}
	if change.ID == uuid.Nil {
		change.ID = uuid.New()
	}
	change.CreatedAt = q.now()
	q.state.changes = append(q.state.changes, copyChange(change))
	return nil
}

func (q *memoryQueries) ListProfileChanges(ctx context.Context, userID uuid.UUID) ([]ProfileChange, error) {
	changes := make([]ProfileChange, 0)
	for i := len(q.state.changes) - 1; i >= 0; i-- {
		if q.state.changes[i].UserID == userID {
			changes = append(changes, copyChange(&q.state.changes[i]))
		}
	}
	return changes, nil
}

// copyChange returns a ProfileChange whose value maps aren't shared with c
func copyChange(c *ProfileChange) ProfileChange {
	copied := *c
	copied.PreviousValues = maps.Clone(c.PreviousValues)
	copied.NewValues = maps.Clone(c.NewValues)
	return copied
}
