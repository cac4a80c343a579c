package store

import (
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string]entry // minionID -> name -> entry
	seq    int
	closed bool
}

type entry struct {
	data      []byte
	sequence  int
	timestamp time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]entry),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(minionID, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if m.data[minionID] == nil {
		m.data[minionID] = make(map[string]entry)
	}

	e, exists := m.data[minionID][name]
	if !exists {
		m.seq++
		e.sequence = m.seq
	}
	e.data = slices.Clone(data)
	e.timestamp = time.Now()
	m.data[minionID][name] = e
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(minionID, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	e, ok := m.data[minionID][name]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(e.data), nil
}

// List implements Store.
func (m *MemoryStore) List(minionID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]Info, 0, len(m.data[minionID]))
	for name, e := range m.data[minionID] {
		infos = append(infos, Info{
			MinionID:  minionID,
			Name:      name,
			Sequence:  e.sequence,
			Timestamp: e.timestamp,
			Size:      int64(len(e.data)),
		})
	}
	slices.SortFunc(infos, func(a, b Info) int {
		return a.Sequence - b.Sequence
	})
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(minionID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.data[minionID], name)
	return nil
}

// DeleteAll implements Store.
func (m *MemoryStore) DeleteAll(minionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.data, minionID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}
