package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/d60-Lab/friendlyvoice/internal/model"
)

type entry struct {
	user     *model.User
	storedAt time.Time
}

// Memory is an in-process mirror with TTL and a size cap. When full, the
// oldest entry is evicted.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	counters
}

func NewMemory(ttl time.Duration, maxSize int) *Memory {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Memory{entries: map[string]*entry{}, ttl: ttl, maxSize: maxSize, now: time.Now}
}

func (m *Memory) expired(e *entry) bool {
	return m.ttl > 0 && m.now().Sub(e.storedAt) > m.ttl
}

func (m *Memory) Get(_ context.Context, id string) (*model.User, bool) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()

	if !ok {
		m.misses.Add(1)
		return nil, false
	}
	if m.expired(e) {
		m.mu.Lock()
		if cur, ok := m.entries[id]; ok && cur == e {
			delete(m.entries, id)
		}
		m.mu.Unlock()
		m.misses.Add(1)
		return nil, false
	}
	m.hits.Add(1)
	return e.user.Clone(), true
}

func (m *Memory) Put(_ context.Context, u *model.User) {
	if u == nil || u.ID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[u.ID]; !exists && len(m.entries) >= m.maxSize {
		m.evictOldestLocked()
	}
	m.entries[u.ID] = &entry{user: u.Clone(), storedAt: m.now()}
	m.puts.Add(1)
}

func (m *Memory) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range m.entries {
		if oldestID == "" || e.storedAt.Before(oldest) {
			oldestID, oldest = id, e.storedAt
		}
	}
	if oldestID != "" {
		delete(m.entries, oldestID)
		m.evictions.Add(1)
	}
}

func (m *Memory) All(_ context.Context) []*model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.User, 0, len(m.entries))
	for _, e := range m.entries {
		if m.expired(e) {
			continue
		}
		out = append(out, e.user.Clone())
	}
	return sortByID(out)
}

func (m *Memory) Remove(_ context.Context, id string) {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
}

func (m *Memory) Clear(_ context.Context) {
	m.mu.Lock()
	m.entries = map[string]*entry{}
	m.mu.Unlock()
}

func (m *Memory) Stats() Stats {
	m.mu.RLock()
	n := len(m.entries)
	m.mu.RUnlock()
	return m.snapshot(n)
}
