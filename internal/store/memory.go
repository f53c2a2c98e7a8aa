// Package store provides the key/value and archive backends used by the relay.
package store

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value   string
	expires time.Time
}

// MemoryKV is an in-process key/value store with per-key expiry.
type MemoryKV struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

// NewMemoryKV returns an empty store. A nil clock uses time.Now.
func NewMemoryKV(now func() time.Time) *MemoryKV {
	if now == nil {
		now = time.Now
	}
	return &MemoryKV{items: make(map[string]entry), now: now}
}

// Get returns the value for key if it has not expired.
func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.items, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores value under key. A non-positive ttl never expires.
func (m *MemoryKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.items[key] = e
	m.sweep()
	return nil
}

// sweep drops expired entries. Callers hold mu.
func (m *MemoryKV) sweep() {
	if len(m.items) < 1024 {
		return
	}
	now := m.now()
	for k, e := range m.items {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.items, k)
		}
	}
}

// Len reports the number of stored keys, including ones not yet swept.
func (m *MemoryKV) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
