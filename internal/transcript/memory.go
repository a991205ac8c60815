package transcript

import (
	"context"
	"sync"
)

// MemoryStore keeps exchanges per session in process memory, trimmed to the
// most recent maxExchanges.
type MemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string][]Exchange
	maxExchanges int
}

func NewMemoryStore(maxExchanges int) *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string][]Exchange),
		maxExchanges: maxExchanges,
	}
}

func (m *MemoryStore) Save(_ context.Context, sessionID string, ex Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = append(m.sessions[sessionID], ex)
	m.trimLocked(sessionID)
	return nil
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) ([]Exchange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	exs := m.sessions[sessionID]
	out := make([]Exchange, len(exs))
	copy(out, exs)
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.Evict(sessionID)
	return nil
}

// Evict drops the session's exchanges.
func (m *MemoryStore) Evict(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}

// Len reports how many sessions have stored exchanges.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) trimLocked(sessionID string) {
	if m.maxExchanges <= 0 {
		return
	}
	exs := m.sessions[sessionID]
	if len(exs) > m.maxExchanges {
		m.sessions[sessionID] = exs[len(exs)-m.maxExchanges:]
	}
}
