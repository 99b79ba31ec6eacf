package pinning

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/carpin/car"
	"xdao.co/carpin/carstat"
)

// ArchiveSummary is what adapters report about an imported archive.
type ArchiveSummary struct {
	Root   cid.Cid
	Blocks []car.Block
	Bytes  uint64
}

// SummarizeArchive reads carBytes and totals its block bytes. The first
// declared root is the pinned root. Blocks are held to the same size limit
// the validator enforces.
func SummarizeArchive(carBytes []byte) (*ArchiveSummary, error) {
	a, err := car.Read(carBytes, car.MaxBlockSize(carstat.MaxBlockSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(a.Roots) == 0 {
		return nil, fmt.Errorf("%w: archive has no roots", ErrInvalidInput)
	}
	s := &ArchiveSummary{Root: a.Roots[0], Blocks: a.Blocks}
	for _, b := range a.Blocks {
		s.Bytes += uint64(len(b.Bytes))
	}
	return s, nil
}
