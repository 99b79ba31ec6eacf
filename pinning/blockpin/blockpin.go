// Package blockpin is an offline Pinner that imports content into a local
// block store. It replicates nowhere and exists for development and tests.
package blockpin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/carpin/pack"
	"xdao.co/carpin/pinning"
	"xdao.co/carpin/storage"
)

// Pinner writes every block to Store and remembers pinned roots.
type Pinner struct {
	Store  storage.Blockstore
	Pack   pack.Options
	Logger *slog.Logger

	mu   sync.RWMutex
	pins map[cid.Cid]pinning.Replication
}

var _ pinning.Pinner = (*Pinner)(nil)

func New(store storage.Blockstore, logger *slog.Logger) *Pinner {
	return &Pinner{Store: store, Logger: logger}
}

func (p *Pinner) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// Add packs data as a UnixFS file and imports it.
func (p *Pinner) Add(ctx context.Context, data []byte, opts pinning.AddOptions) (pinning.AddResult, error) {
	res, err := pack.Blob(data, p.Pack)
	if err != nil {
		return pinning.AddResult{}, fmt.Errorf("%w: %v", pinning.ErrInvalidInput, err)
	}
	out, err := p.AddCar(ctx, res.Car, opts)
	if err != nil {
		return pinning.AddResult{}, err
	}
	return pinning.AddResult{Cid: out.Cid, Size: res.Size}, nil
}

// AddCar imports every block of the archive. Blocks are verified against
// their CIDs by the store; the first failure aborts the import.
func (p *Pinner) AddCar(ctx context.Context, carBytes []byte, opts pinning.AddOptions) (pinning.AddResult, error) {
	if p.Store == nil {
		return pinning.AddResult{}, fmt.Errorf("%w: no block store", pinning.ErrUnavailable)
	}
	sum, err := pinning.SummarizeArchive(carBytes)
	if err != nil {
		return pinning.AddResult{}, err
	}
	for _, b := range sum.Blocks {
		if err := ctx.Err(); err != nil {
			return pinning.AddResult{}, err
		}
		if err := p.Store.Put(b.Cid, b.Bytes); err != nil {
			if errors.Is(err, storage.ErrCIDMismatch) || errors.Is(err, storage.ErrInvalidCID) {
				return pinning.AddResult{}, fmt.Errorf("%w: block %s: %v", pinning.ErrInvalidInput, b.Cid, err)
			}
			return pinning.AddResult{}, fmt.Errorf("blockpin: put %s: %w", b.Cid, err)
		}
	}

	p.mu.Lock()
	if p.pins == nil {
		p.pins = make(map[cid.Cid]pinning.Replication)
	}
	p.pins[sum.Root] = opts.Replication
	p.mu.Unlock()

	p.logger().Debug("blockpin: pinned archive",
		"root", sum.Root.String(),
		"blocks", len(sum.Blocks),
		"bytes", sum.Bytes,
		"replication", opts.Replication.String())
	return pinning.AddResult{Cid: sum.Root, Bytes: sum.Bytes}, nil
}

// Pinned reports whether id was pinned and with which replication mode.
func (p *Pinner) Pinned(id cid.Cid) (pinning.Replication, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.pins[id]
	return r, ok
}
