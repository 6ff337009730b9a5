package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger is an in-process ledger for tests and dry runs.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[string]time.Time)}
}

func (m *MemoryLedger) HasSeen(_ context.Context, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[url]
	return ok, nil
}

func (m *MemoryLedger) MarkSeen(_ context.Context, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[url]; ok {
		return false, nil
	}
	m.seen[url] = time.Now()
	return true, nil
}

// Len returns the number of recorded urls.
func (m *MemoryLedger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}
