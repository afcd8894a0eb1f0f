package scheduler

import "sync"

// Slot is the deduplication key for reminder mail: one calendar day, one
// user, one hour-of-day bucket.
type Slot struct {
	Date   string
	UserID int64
	Hour   int
}

// DedupStore records which reminder slots have already been notified.
// The scheduler clears it wholesale when the observed calendar date
// advances. Process-local by default; a multi-instance deployment would
// swap in a shared implementation.
type DedupStore interface {
	Seen(s Slot) bool
	Mark(s Slot)
	Clear()
}

// MemoryDedupStore is the default mutex-guarded in-process store.
type MemoryDedupStore struct {
	mu    sync.RWMutex
	slots map[Slot]struct{}
}

func NewMemoryDedupStore() *MemoryDedupStore {
	return &MemoryDedupStore{slots: make(map[Slot]struct{})}
}

func (m *MemoryDedupStore) Seen(s Slot) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.slots[s]
	return ok
}

func (m *MemoryDedupStore) Mark(s Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[s] = struct{}{}
}

func (m *MemoryDedupStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = make(map[Slot]struct{})
}
