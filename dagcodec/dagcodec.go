// Package dagcodec decodes IPLD blocks far enough to enumerate their links.
//
// Each supported multicodec has a Decoder; a Registry maps codec codes to
// decoders and is passed explicitly to whatever needs one.
package dagcodec

import (
	"fmt"

	"github.com/ipfs/go-cid"
)

// Link is an outgoing edge of a decoded node.
//
// Tsize is the declared cumulative size of the linked DAG. Only dag-pb
// carries it, and even there it is optional.
type Link struct {
	Name  string
	Cid   cid.Cid
	Tsize *uint64
}

// Node is a decoded block.
type Node interface {
	Links() []Link
}

// Decoder decodes blocks of a single multicodec.
type Decoder interface {
	Code() uint64
	Decode(data []byte) (Node, error)
}

// Registry maps multicodec codes to decoders.
type Registry struct {
	decoders map[uint64]Decoder
}

// NewRegistry builds a registry. Later decoders replace earlier ones with
// the same code.
func NewRegistry(decoders ...Decoder) *Registry {
	r := &Registry{decoders: make(map[uint64]Decoder, len(decoders))}
	for _, d := range decoders {
		r.decoders[d.Code()] = d
	}
	return r
}

// DefaultRegistry returns a new registry with raw, dag-pb and dag-cbor.
func DefaultRegistry() *Registry {
	return NewRegistry(Raw{}, DagPB{}, DagCBOR{})
}

// Lookup returns the decoder for code.
func (r *Registry) Lookup(code uint64) (Decoder, bool) {
	if r == nil {
		return nil, false
	}
	d, ok := r.decoders[code]
	return d, ok
}

// Decode decodes data addressed by id with the decoder for id's codec.
func (r *Registry) Decode(id cid.Cid, data []byte) (Node, error) {
	d, ok := r.Lookup(id.Type())
	if !ok {
		return nil, fmt.Errorf("dagcodec: no decoder for codec 0x%x", id.Type())
	}
	return d.Decode(data)
}

// Raw is the raw (0x55) codec: opaque bytes without links.
type Raw struct{}

type rawNode []byte

func (rawNode) Links() []Link { return nil }

func (Raw) Code() uint64 { return cid.Raw }

func (Raw) Decode(data []byte) (Node, error) { return rawNode(data), nil }
