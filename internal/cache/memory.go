package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Cache used when no REDIS_URL is configured
// (single-replica deployments) and by tests. Expiry is checked lazily
// on read.
type Memory struct {
	mu    sync.Mutex
	items map[string]memItem
	// now is swappable in tests.
	now func() time.Time
}

type memItem struct {
	val       string
	expiresAt time.Time // zero = no expiry
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]memItem), now: time.Now}
}

func (m *Memory) get(key string) (memItem, bool) {
	it, ok := m.items[key]
	if !ok {
		return memItem{}, false
	}
	if !it.expiresAt.IsZero() && !m.now().Before(it.expiresAt) {
		delete(m.items, key)
		return memItem{}, false
	}
	return it, true
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key, val string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := memItem{val: val}
	if ttl > 0 {
		it.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = it
	return nil
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.get(key)
	if !ok {
		return "", false, nil
	}
	return it.val, true, nil
}

// Del implements Cache.
func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Expire implements Cache.
func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.get(key)
	if !ok {
		return nil
	}
	if ttl > 0 {
		it.expiresAt = m.now().Add(ttl)
	} else {
		it.expiresAt = time.Time{}
	}
	m.items[key] = it
	return nil
}

// MGet implements Cache.
func (m *Memory) MGet(_ context.Context, keys ...string) ([]Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Value, len(keys))
	for i, k := range keys {
		if it, ok := m.get(k); ok {
			out[i] = Value{Val: it.val, OK: true}
		}
	}
	return out, nil
}
