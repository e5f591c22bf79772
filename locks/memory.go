package locks

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker serializes sweeps inside one process.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		entries: map[string]memoryEntry{},
		now:     time.Now,
	}
}

// WithClock replaces the clock used for TTL checks.
func (l *MemoryLocker) WithClock(now func() time.Time) *MemoryLocker {
	if l != nil && now != nil {
		l.now = now
	}
	return l
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	key, err := normalizeKey(key, ttl)
	if err != nil {
		return nil, false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if entry, ok := l.entries[key]; ok && now.Before(entry.expiresAt) {
		return nil, false, nil
	}
	token := newToken()
	l.entries[key] = memoryEntry{token: token, expiresAt: now.Add(ttl)}
	return &memoryLease{locker: l, key: key, token: token}, true, nil
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	token  string
}

func (m *memoryLease) Release(context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()
	if entry, ok := m.locker.entries[m.key]; ok && entry.token == m.token {
		delete(m.locker.entries, m.key)
	}
	return nil
}

var _ Locker = (*MemoryLocker)(nil)
