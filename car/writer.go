package car

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/fluent/qp"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/multiformats/go-varint"
)

// Writer emits a CARv1 stream.
type Writer struct {
	w io.Writer
}

// NewWriter writes the header naming roots to w.
func NewWriter(w io.Writer, roots []cid.Cid) (*Writer, error) {
	for _, r := range roots {
		if !r.Defined() {
			return nil, fmt.Errorf("car: undefined root")
		}
	}
	h, err := qp.BuildMap(basicnode.Prototype.Map, 2, func(ma datamodel.MapAssembler) {
		qp.MapEntry(ma, "roots", qp.List(int64(len(roots)), func(la datamodel.ListAssembler) {
			for _, r := range roots {
				qp.ListEntry(la, qp.Link(cidlink.Link{Cid: r}))
			}
		}))
		qp.MapEntry(ma, "version", qp.Int(1))
	})
	if err != nil {
		return nil, fmt.Errorf("car: build header: %w", err)
	}
	var buf bytes.Buffer
	if err := dagcbor.Encode(h, &buf); err != nil {
		return nil, fmt.Errorf("car: encode header: %w", err)
	}
	if err := writeSection(w, buf.Bytes()); err != nil {
		return nil, err
	}
	return &Writer{w: w}, nil
}

// WriteBlock appends one section.
func (cw *Writer) WriteBlock(blk Block) error {
	if !blk.Cid.Defined() {
		return fmt.Errorf("car: undefined block cid")
	}
	return writeSection(cw.w, append(blk.Cid.Bytes(), blk.Bytes...))
}

// Encode returns the archive bytes for roots and blocks, in order.
func Encode(roots []cid.Cid, blocks ...Block) ([]byte, error) {
	var buf bytes.Buffer
	cw, err := NewWriter(&buf, roots)
	if err != nil {
		return nil, err
	}
	for _, blk := range blocks {
		if err := cw.WriteBlock(blk); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeSection(w io.Writer, b []byte) error {
	if _, err := w.Write(varint.ToUvarint(uint64(len(b)))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}
