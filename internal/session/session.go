// Package session tracks which issued access tokens are still live, so a
// token can be revoked before it expires.
package session

import (
	"context"
	"sync"
	"time"
)

type Record struct {
	Username string    `json:"username"`
	IssuedAt time.Time `json:"issued_at"`
}

type Registry interface {
	Register(ctx context.Context, id string, record Record, ttl time.Duration) error
	// Lookup reports the record for id, or ok=false when it expired or was revoked.
	Lookup(ctx context.Context, id string) (record Record, ok bool, err error)
	Revoke(ctx context.Context, id string) error
}

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

// MemoryRegistry keeps sessions in process. Expired entries are dropped lazily
// on lookup and on each Register.
type MemoryRegistry struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryRegistry) Register(_ context.Context, id string, record Record, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
	m.entries[id] = memoryEntry{record: record, expiresAt: now.Add(ttl)}
	return nil
}

func (m *MemoryRegistry) Lookup(_ context.Context, id string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if !ok {
		return Record{}, false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, id)
		return Record{}, false, nil
	}
	return entry.record, true, nil
}

func (m *MemoryRegistry) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}
