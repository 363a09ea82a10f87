package auth

import (
	"context"
	"encoding/json"
	"sync"
)

// SessionRecord binds a principal to an expiry on the server side. The
// principal is kept serialized; the engine never persists live objects.
type SessionRecord struct {
	Principal json.RawMessage `json:"principal"`
	Login     string          `json:"login"`
	Expiry    int64           `json:"expiry"`
}

// SessionStore holds session records between requests. Implementations may
// return expired records; the session manager always checks the expiry
// before reuse and expired records are discarded, never resurrected.
type SessionStore interface {
	Get(ctx context.Context, id string) (*SessionRecord, error)
	Put(ctx context.Context, id string, record *SessionRecord) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is the in-process store used when no external backend is
// configured. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*SessionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]*SessionRecord{}}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (m *MemoryStore) Put(_ context.Context, id string, record *SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *record
	m.records[id] = &copied
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}
