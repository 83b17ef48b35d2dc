package confirm

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore — сессии в памяти процесса (одна реплика).
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]*Session)}
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *s
	m.sessions[s.PayoutID] = &c
	return nil
}

// Take атомарно достаёт и удаляет сессию. nil — сессии нет.
func (m *MemoryStore) Take(_ context.Context, payoutID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[payoutID]
	if !ok {
		return nil, nil
	}
	delete(m.sessions, payoutID)
	return s, nil
}

func (m *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len — число открытых сессий.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
