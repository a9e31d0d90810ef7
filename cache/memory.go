package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// sweepInterval is how often the janitor removes expired entries.
const sweepInterval = 5 * time.Minute

type memoryEntry struct {
	data      []byte
	expiresAt time.Time // zero = no expiry
}

// MemoryStore is the in-process Store backend. Entries hold serialized JSON, so
// Get always hands back a fresh copy. Expired entries are dropped lazily on
// read and swept periodically by a janitor goroutine.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[string]memoryEntry
	connected bool
	stop      chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		return nil
	}
	m.connected = true
	m.stop = make(chan struct{})
	go m.janitor(m.stop)
	slog.Info("memory cache connected", slog.String("component", "cache"))
	return nil
}

func (m *MemoryStore) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil
	}
	close(m.stop)
	m.entries = make(map[string]memoryEntry)
	m.connected = false
	slog.Info("memory cache disconnected", slog.String("component", "cache"))
	return nil
}

func (m *MemoryStore) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *MemoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Error("memory cache set: marshal", slog.String("key", key), slog.Any("err", err))
		return false
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return false
	}
	m.entries[key] = memoryEntry{data: data, expiresAt: expiresAt}
	return true
}

func (m *MemoryStore) Get(ctx context.Context, key string, dest any) bool {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return false
	}
	e, ok := m.entries[key]
	if ok && !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		slog.Error("memory cache get: unmarshal", slog.String("key", key), slog.Any("err", err))
		return false
	}
	return true
}

func (m *MemoryStore) Del(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return false
	}
	delete(m.entries, key)
	return true
}

func (m *MemoryStore) Exists(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return false
	}
	e, ok := m.entries[key]
	if ok && !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		return false
	}
	return ok
}

// Len returns the number of stored entries, expired or not. Debug/monitoring only.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) janitor(stop chan struct{}) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *MemoryStore) sweep() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}
