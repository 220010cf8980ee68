package session

import (
	"sync"
	"time"
)

// DefaultTTL bounds how long an abandoned flow can trap a conversation.
const DefaultTTL = 30 * time.Minute

type entry struct {
	state     State
	pending   map[string]string
	updatedAt time.Time
}

type memoryManager struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[int64]*entry
	now      func() time.Time
}

// NewMemoryManager constructs an in-memory Manager. It is the cache layer of
// the Postgres manager and the standalone manager for tests and development.
// A ttl of zero disables expiry.
func NewMemoryManager(ttl time.Duration) Manager {
	return newMemoryManager(ttl)
}

func newMemoryManager(ttl time.Duration) *memoryManager {
	return &memoryManager{
		ttl:      ttl,
		sessions: make(map[int64]*entry),
		now:      time.Now,
	}
}

func (m *memoryManager) live(chatID int64) (*entry, bool) {
	e, ok := m.sessions[chatID]
	if !ok {
		return nil, false
	}
	if m.ttl > 0 && m.now().Sub(e.updatedAt) > m.ttl {
		return nil, false
	}
	return e, true
}

func (m *memoryManager) upsert(chatID int64) *entry {
	e, ok := m.live(chatID)
	if !ok {
		e = &entry{state: StateNone, pending: make(map[string]string)}
		m.sessions[chatID] = e
	}
	e.updatedAt = m.now()
	return e
}

// Get returns the session for a chat if it exists and has not expired,
// otherwise a default idle session.
func (m *memoryManager) Get(chatID int64) Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.live(chatID)
	if !ok {
		return NewSession()
	}
	pending := make(map[string]string, len(e.pending))
	for k, v := range e.pending {
		pending[k] = v
	}
	return Session{State: e.state, Pending: pending}
}

func (m *memoryManager) SetState(chatID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsert(chatID).state = st
}

func (m *memoryManager) SetPending(chatID int64, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsert(chatID).pending[key] = value
}

func (m *memoryManager) Pending(chatID int64, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.live(chatID)
	if !ok {
		return "", false
	}
	v, ok := e.pending[key]
	return v, ok
}

// Clear removes the entire session for a chat.
func (m *memoryManager) Clear(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}

// InProgress reports whether the chat currently has an active state.
func (m *memoryManager) InProgress(chatID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.live(chatID)
	return ok && e.state != StateNone
}
