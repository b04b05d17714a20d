// Package cache provides the short-lived cache used for upstream network data
// and generated AI responses.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Cache stores opaque values with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// GetJSON decodes a cached JSON value into dst.
func GetJSON(ctx context.Context, c Cache, key string, dst any) (bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes val as JSON and stores it.
func SetJSON(ctx context.Context, c Cache, key string, val any, ttl time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}

type memEntry struct {
	val     []byte
	expires time.Time
}

// Memory is an in-process Cache used when Redis is not configured.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memEntry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expires) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.val, true, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{val: append([]byte(nil), val...), expires: m.now().Add(ttl)}
	return nil
}
