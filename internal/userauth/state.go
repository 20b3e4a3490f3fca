package userauth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// stateBuffer issues the single-use nonces that we pass to Twitch in the OAuth 'state'
// parameter, so that a callback can be matched to a login that we actually started.
// Nonces that are never consumed are evicted once they expire.
type stateBuffer struct {
	ttl    time.Duration
	now    func() time.Time
	mu     sync.Mutex
	states *cache.Cache
}

func newStateBuffer(ttl time.Duration) *stateBuffer {
	return &stateBuffer{
		ttl:    ttl,
		now:    time.Now,
		states: cache.New(ttl, ttl),
	}
}

func (b *stateBuffer) generate() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	value := hex.EncodeToString(bytes)
	b.states.Set(value, b.now().Add(b.ttl), b.ttl)
	return value
}

// consume reports whether value was issued by generate and has not yet expired or
// been consumed
func (b *stateBuffer) consume(value string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, found := b.states.Get(value)
	if !found {
		return false
	}
	b.states.Delete(value)
	return !v.(time.Time).Before(b.now())
}
