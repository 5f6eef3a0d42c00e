package credentials

import (
	"context"
	"sync"
)

// MemoryStore keeps credentials for the lifetime of the process only.
type MemoryStore struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Token(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Token, nil
}

func (m *MemoryStore) SetToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.Token = token
	return nil
}

func (m *MemoryStore) ClearToken(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.Token = ""
	return nil
}

func (m *MemoryStore) Load(context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{Token: m.snap.Token, User: append([]byte(nil), m.snap.User...)}, nil
}

func (m *MemoryStore) Save(_ context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = Snapshot{Token: s.Token, User: append([]byte(nil), s.User...)}
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = Snapshot{}
	return nil
}
