// Package car reads and writes CARv1 content archives.
//
// A CARv1 stream is a varint-prefixed dag-cbor header naming the root CIDs,
// followed by varint-prefixed sections that each hold a CID and the block
// bytes it addresses. Decoding is delegated to go-car; this package adds the
// upload limits and error classes. The reader performs no DAG interpretation.
package car

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	carv2 "github.com/ipld/go-car/v2"
	"github.com/multiformats/go-varint"
)

// MaxHeaderSize bounds the header allocation for untrusted input.
const MaxHeaderSize = 32 << 20

// DefaultMaxSectionSize bounds a section when no block limit is set.
const DefaultMaxSectionSize = 8 << 20

// cidSlack is the room left for the section CID above a block limit.
const cidSlack = 2 << 10

// Block is a single (CID, bytes) section of an archive.
type Block struct {
	Cid   cid.Cid
	Bytes []byte
}

type options struct {
	maxBlockSize uint64
}

// Option configures a BlockReader.
type Option func(*options)

// MaxBlockSize makes the reader fail with *BlockTooBigError for any block
// payload larger than n bytes. Zero leaves only the DefaultMaxSectionSize
// bound on whole sections.
func MaxBlockSize(n uint64) Option {
	return func(o *options) { o.maxBlockSize = n }
}

// BlockReader iterates over the blocks of a CARv1 stream in order. Every
// block is checked against its CID.
type BlockReader struct {
	r          *bufio.Reader
	br         *carv2.BlockReader
	maxSection uint64
	opts       options
}

// NewBlockReader reads the archive header from r. Blocks are then pulled
// with Next.
func NewBlockReader(r io.Reader, opts ...Option) (*BlockReader, error) {
	out := &BlockReader{r: bufio.NewReader(r)}
	for _, o := range opts {
		o(&out.opts)
	}
	out.maxSection = DefaultMaxSectionSize
	if out.opts.maxBlockSize > 0 {
		out.maxSection = out.opts.maxBlockSize + cidSlack
	}

	br, err := carv2.NewBlockReader(out.r,
		carv2.MaxAllowedHeaderSize(MaxHeaderSize),
		carv2.MaxAllowedSectionSize(out.maxSection),
		carv2.ZeroLengthSectionAsEOF(false),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if br.Version != 1 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedHeader, br.Version)
	}
	out.br = br
	return out, nil
}

// Roots returns the root CIDs declared by the header.
func (br *BlockReader) Roots() []cid.Cid {
	return append([]cid.Cid(nil), br.br.Roots...)
}

// Next returns the next block, or io.EOF once the archive is exhausted.
//
// The section length is inspected before go-car allocates for it, so an
// oversized section is reported without reading its payload.
func (br *BlockReader) Next() (Block, error) {
	prefix, err := br.r.Peek(binary.MaxVarintLen64)
	if len(prefix) == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return Block{}, io.EOF
		}
		return Block{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if n, _, err := varint.FromUvarint(prefix); err == nil {
		if n == 0 {
			return Block{}, ErrZeroLengthSection
		}
		if n > br.maxSection {
			if br.opts.maxBlockSize > 0 {
				return Block{}, &BlockTooBigError{Size: n, Limit: br.opts.maxBlockSize}
			}
			return Block{}, fmt.Errorf("%w: %d > %d", ErrSectionTooLarge, n, br.maxSection)
		}
	}

	blk, err := br.br.Next()
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return Block{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return Block{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	default:
		return Block{}, fmt.Errorf("%w: %v", ErrInvalidSection, err)
	}

	data := blk.RawData()
	if br.opts.maxBlockSize > 0 && uint64(len(data)) > br.opts.maxBlockSize {
		return Block{}, &BlockTooBigError{Cid: blk.Cid(), Size: uint64(len(data)), Limit: br.opts.maxBlockSize}
	}
	return Block{Cid: blk.Cid(), Bytes: data}, nil
}

// Archive is a fully read CAR.
type Archive struct {
	Roots  []cid.Cid
	Blocks []Block
}

// Read decodes a complete in-memory archive.
func Read(b []byte, opts ...Option) (*Archive, error) {
	br, err := NewBlockReader(bytes.NewReader(b), opts...)
	if err != nil {
		return nil, err
	}
	out := &Archive{Roots: br.Roots()}
	for {
		blk, err := br.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out.Blocks = append(out.Blocks, blk)
	}
}
