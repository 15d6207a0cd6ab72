package session

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      now,
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *MemoryStore) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	s, err := m.Get(ctx, id)
	if err != nil || s != nil {
		return s, err
	}
	return New(id, m.now(), m.ttl), nil
}

func (m *MemoryStore) GetMostRecentWithSymptom(_ context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var best *Session
	for _, s := range m.sessions {
		if !s.HasSymptom() || s.Expired(now) {
			continue
		}
		if best == nil || s.CreatedAt.After(best.CreatedAt) {
			best = s
		}
	}
	if best == nil {
		return nil, nil
	}
	return best.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current int64
	if existing, ok := m.sessions[s.ID]; ok {
		current = existing.Revision
	}
	if current != s.Revision {
		return ErrRevisionConflict
	}

	s.Revision++
	s.UpdatedAt = m.now()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}
