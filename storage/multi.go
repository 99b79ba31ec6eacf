package storage

import "github.com/ipfs/go-cid"

// MultiStore provides ordered read fallback across several block stores.
//
// Reads try Stores in slice order; callers supply a fixed order so lookups
// are deterministic. Put writes only to the first store.
type MultiStore struct {
	Stores []Blockstore
}

var _ Blockstore = MultiStore{}

func (m MultiStore) Put(id cid.Cid, data []byte) error {
	if len(m.Stores) == 0 {
		return ErrNoBackends
	}
	return m.Stores[0].Put(id, data)
}

func (m MultiStore) Get(id cid.Cid) ([]byte, error) {
	for _, s := range m.Stores {
		b, err := s.Get(id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (m MultiStore) Has(id cid.Cid) bool {
	for _, s := range m.Stores {
		if s.Has(id) {
			return true
		}
	}
	return false
}
