package dagcodec

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/datamodel"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// DagCBOR is the dag-cbor (0x71) codec. Every link in the decoded value is
// reported, named by its path from the root of the value.
type DagCBOR struct{}

type cborNode struct {
	links []Link
}

func (n cborNode) Links() []Link { return n.links }

func (DagCBOR) Code() uint64 { return cid.DagCBOR }

func (DagCBOR) Decode(data []byte) (Node, error) {
	nb := basicnode.Prototype.Any.NewBuilder()
	if err := dagcbor.Decode(nb, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("dag-cbor: %w", err)
	}
	var links []Link
	if err := collectLinks("", nb.Build(), &links); err != nil {
		return nil, err
	}
	return cborNode{links: links}, nil
}

// collectLinks walks n in encoded order. Map entries of a canonical block
// are already sorted, so the result is stable.
func collectLinks(path string, n datamodel.Node, out *[]Link) error {
	switch n.Kind() {
	case datamodel.Kind_Link:
		l, err := n.AsLink()
		if err != nil {
			return fmt.Errorf("dag-cbor: link at %q: %w", path, err)
		}
		cl, ok := l.(cidlink.Link)
		if !ok {
			return fmt.Errorf("dag-cbor: unsupported link type at %q", path)
		}
		*out = append(*out, Link{Name: path, Cid: cl.Cid})
	case datamodel.Kind_Map:
		it := n.MapIterator()
		for !it.Done() {
			k, v, err := it.Next()
			if err != nil {
				return fmt.Errorf("dag-cbor: %w", err)
			}
			key, err := k.AsString()
			if err != nil {
				return fmt.Errorf("dag-cbor: map key at %q: %w", path, err)
			}
			if err := collectLinks(joinPath(path, key), v, out); err != nil {
				return err
			}
		}
	case datamodel.Kind_List:
		it := n.ListIterator()
		for !it.Done() {
			i, v, err := it.Next()
			if err != nil {
				return fmt.Errorf("dag-cbor: %w", err)
			}
			if err := collectLinks(joinPath(path, strconv.FormatInt(i, 10)), v, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinPath(base, seg string) string {
	if base == "" {
		return seg
	}
	return base + "/" + seg
}
