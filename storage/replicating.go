package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"
)

// NamedStore associates a Blockstore with a stable backend name.
type NamedStore struct {
	Name  string
	Store Blockstore
}

// ReplicatingStore writes every block to all configured backends.
//
// Reads fall back in order. Use PutAll when the per-backend outcome matters.
type ReplicatingStore struct {
	Backends []NamedStore
}

var _ Blockstore = (*ReplicatingStore)(nil)

// PutAll verifies data once and then writes it to each backend in order.
//
// It returns the names of the backends that accepted the block. The first
// failing backend stops the write; earlier backends keep the block.
func (r ReplicatingStore) PutAll(id cid.Cid, data []byte) ([]string, error) {
	if err := Verify(id, data); err != nil {
		return nil, err
	}
	if len(r.Backends) == 0 {
		return nil, ErrNoBackends
	}

	written := make([]string, 0, len(r.Backends))
	for _, b := range r.Backends {
		if b.Store == nil {
			return written, fmt.Errorf("storage: nil store for backend %q", b.Name)
		}
		if err := b.Store.Put(id, data); err != nil {
			return written, fmt.Errorf("storage: backend %q: %w", b.Name, err)
		}
		written = append(written, b.Name)
	}
	return written, nil
}

func (r ReplicatingStore) Put(id cid.Cid, data []byte) error {
	_, err := r.PutAll(id, data)
	return err
}

func (r ReplicatingStore) Get(id cid.Cid) ([]byte, error) {
	for _, b := range r.Backends {
		if b.Store == nil {
			continue
		}
		out, err := b.Store.Get(id)
		if err == nil {
			return out, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (r ReplicatingStore) Has(id cid.Cid) bool {
	for _, b := range r.Backends {
		if b.Store != nil && b.Store.Has(id) {
			return true
		}
	}
	return false
}
