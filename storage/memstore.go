package storage

import (
	"bytes"
	"sync"

	"github.com/ipfs/go-cid"
)

// MemStore is an in-memory Blockstore. The zero value is ready to use.
type MemStore struct {
	mu     sync.RWMutex
	blocks map[cid.Cid][]byte
}

var _ Blockstore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (m *MemStore) Put(id cid.Cid, data []byte) error {
	if err := Verify(id, data); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blocks == nil {
		m.blocks = make(map[cid.Cid][]byte)
	}
	if existing, ok := m.blocks[id]; ok {
		if !bytes.Equal(existing, data) {
			return ErrImmutable
		}
		return nil
	}
	m.blocks[id] = append([]byte(nil), data...)
	return nil
}

func (m *MemStore) Get(id cid.Cid) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MemStore) Has(id cid.Cid) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocks[id]
	return ok
}

// Len reports the number of stored blocks.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}
