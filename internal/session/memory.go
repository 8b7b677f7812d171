package session

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemoryCapacity bounds how many live sessions a MemoryStore keeps.
// When full, the least recently used session is dropped, which logs that
// user out early rather than growing without limit.
const DefaultMemoryCapacity = 10_000

// MemoryStore keeps sessions in an expiring LRU and is safe for
// concurrent requests. The LRU locks each call on its own; mu makes the
// read-modify-write in Touch atomic with respect to Save and Delete, so a
// Touch racing a logout cannot re-add the deleted session.
type MemoryStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, Session]
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding up to capacity sessions, each
// expiring idle after being neither saved nor touched.
func NewMemoryStore(capacity int, idle time.Duration) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{cache: expirable.NewLRU[string, Session](capacity, nil, idle)}
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Add(s.ID, s)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

// Touch re-adds the entry; expirable.LRU resets the TTL on Add.
func (m *MemoryStore) Touch(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.cache.Get(id)
	if !ok {
		return ErrNotFound
	}
	m.cache.Add(id, s)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Remove(id)
	return nil
}

// Len reports the number of live sessions.
func (m *MemoryStore) Len() int {
	return m.cache.Len()
}

func (m *MemoryStore) Close() error {
	m.cache.Purge()
	return nil
}
