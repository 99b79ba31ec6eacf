// Package storage defines the block store used by the offline pinner and the
// composition helpers shared by its backends.
package storage

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/carpin/cidutil"
)

// Blockstore holds archive blocks keyed by their CID.
//
// Contract:
// - Put MUST verify that data hashes to id and MUST be idempotent.
// - Stored blocks are immutable.
// - Get MUST return ErrNotFound when the CID is absent.
type Blockstore interface {
	Put(id cid.Cid, data []byte) error
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}

// Verify checks data against id the way every backend's Put must, mapping
// failures onto the package sentinels.
func Verify(id cid.Cid, data []byte) error {
	if err := cidutil.Verify(id, data); err != nil {
		switch {
		case errors.Is(err, cidutil.ErrMismatch):
			return fmt.Errorf("%w: %s", ErrCIDMismatch, id)
		default:
			return fmt.Errorf("%w: %v", ErrInvalidCID, err)
		}
	}
	return nil
}
