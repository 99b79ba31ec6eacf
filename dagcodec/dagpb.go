package dagcodec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	dagpb "github.com/ipld/go-codec-dagpb"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/fluent/qp"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
)

// PBLink is a dag-pb link.
type PBLink struct {
	Hash  cid.Cid
	Name  *string
	Tsize *uint64
}

// PBNode is a decoded dag-pb node.
type PBNode struct {
	Data  []byte
	Links []PBLink
}

type pbNode struct {
	n *PBNode
}

func (p pbNode) Links() []Link {
	out := make([]Link, 0, len(p.n.Links))
	for _, l := range p.n.Links {
		link := Link{Cid: l.Hash, Tsize: l.Tsize}
		if l.Name != nil {
			link.Name = *l.Name
		}
		out = append(out, link)
	}
	return out
}

// DagPB is the dag-pb (0x70) codec.
type DagPB struct{}

func (DagPB) Code() uint64 { return cid.DagProtobuf }

func (DagPB) Decode(data []byte) (Node, error) {
	n, err := DecodePB(data)
	if err != nil {
		return nil, err
	}
	return pbNode{n: n}, nil
}

// DecodePB decodes a dag-pb node with go-codec-dagpb, which enforces the
// canonical field order and rejects unknown or repeated fields.
func DecodePB(b []byte) (*PBNode, error) {
	nb := dagpb.Type.PBNode.NewBuilder()
	if err := dagpb.DecodeBytes(nb, b); err != nil {
		return nil, fmt.Errorf("dag-pb: %w", err)
	}
	pn, ok := nb.Build().(dagpb.PBNode)
	if !ok {
		return nil, errors.New("dag-pb: unexpected node type")
	}

	out := &PBNode{}
	if d := pn.FieldData(); d.Exists() {
		out.Data = append([]byte{}, d.Must().Bytes()...)
	}
	it := pn.FieldLinks().Iterator()
	for !it.Done() {
		_, l := it.Next()
		cl, ok := l.FieldHash().Link().(cidlink.Link)
		if !ok {
			return nil, errors.New("dag-pb: link hash is not a cid")
		}
		link := PBLink{Hash: cl.Cid}
		if name := l.FieldName(); name.Exists() {
			s := name.Must().String()
			link.Name = &s
		}
		if tsize := l.FieldTsize(); tsize.Exists() {
			v := tsize.Must().Int()
			if v < 0 {
				return nil, fmt.Errorf("dag-pb: negative Tsize %d", v)
			}
			u := uint64(v)
			link.Tsize = &u
		}
		out.Links = append(out.Links, link)
	}
	return out, nil
}

// EncodePB encodes n in canonical dag-pb form: links first, then data.
func EncodePB(n *PBNode) ([]byte, error) {
	node, err := qp.BuildMap(dagpb.Type.PBNode, 2, func(ma datamodel.MapAssembler) {
		qp.MapEntry(ma, "Links", qp.List(int64(len(n.Links)), func(la datamodel.ListAssembler) {
			for _, l := range n.Links {
				qp.ListEntry(la, qp.Map(3, func(ma datamodel.MapAssembler) {
					qp.MapEntry(ma, "Hash", qp.Link(cidlink.Link{Cid: l.Hash}))
					if l.Name != nil {
						qp.MapEntry(ma, "Name", qp.String(*l.Name))
					}
					if l.Tsize != nil {
						qp.MapEntry(ma, "Tsize", qp.Int(int64(*l.Tsize)))
					}
				}))
			}
		}))
		if n.Data != nil {
			qp.MapEntry(ma, "Data", qp.Bytes(n.Data))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("dag-pb: build node: %w", err)
	}
	var buf bytes.Buffer
	if err := dagpb.Encode(node, &buf); err != nil {
		return nil, fmt.Errorf("dag-pb: %w", err)
	}
	return buf.Bytes(), nil
}
