// Package storetest provides store.Store wrappers for exercising failure paths in
// tests.
package storetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/golden-vcr/accounts/internal/store"
)

// ConflictingStore wraps a store.Store so that the next n calls to CreateUser made
// within a transaction fail with store.ErrConflict, as if a concurrent request had
// just created the same user
type ConflictingStore struct {
	store.Store

	mu        sync.Mutex
	remaining int
	attempts  int
}

func NewConflictingStore(inner store.Store, n int) *ConflictingStore {
	return &ConflictingStore{Store: inner, remaining: n}
}

// Attempts returns the number of transactions that have been started
func (s *ConflictingStore) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *ConflictingStore) Tx(ctx context.Context, fn func(q store.Queries) error) error {
	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()
	return s.Store.Tx(ctx, func(q store.Queries) error {
		return fn(&conflictingQueries{Queries: q, parent: s})
	})
}

func (s *ConflictingStore) take() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remaining <= 0 {
		return false
	}
	s.remaining--
	return true
}

type conflictingQueries struct {
	store.Queries
	parent *ConflictingStore
}

func (q *conflictingQueries) CreateUser(ctx context.Context, user *store.User) error {
	if q.parent.take() {
		return fmt.Errorf("%w: twitch_id %s", store.ErrConflict, user.TwitchID)
	}
	return q.Queries.CreateUser(ctx, user)
}

// FailingStore wraps a store.Store so that every CreateLogin fails with Err, which
// lets tests verify that a transaction leaves no partial writes behind
type FailingStore struct {
	store.Store
	Err error
}

func (s *FailingStore) Tx(ctx context.Context, fn func(q store.Queries) error) error {
	return s.Store.Tx(ctx, func(q store.Queries) error {
		return fn(&failingQueries{Queries: q, err: s.Err})
	})
}

type failingQueries struct {
	store.Queries
	err error
}

func (q *failingQueries) CreateLogin(ctx context.Context, login *store.Login) error {
	return q.err
}
