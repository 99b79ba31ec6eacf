// Package pack turns plain uploads into archives: a single blob becomes a
// UnixFS file DAG and a set of named files becomes a UnixFS directory.
package pack

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/carpin/car"
	"xdao.co/carpin/cidutil"
	"xdao.co/carpin/dagcodec"
)

const (
	// DefaultChunkSize is the leaf size used when splitting blobs.
	DefaultChunkSize = 256 << 10
	// DefaultMaxLinks bounds the fan-out of intermediate file nodes.
	DefaultMaxLinks = 174
	// MaxChunkSize keeps every leaf within the 1MiB block limit.
	MaxChunkSize = 1 << 20
)

var (
	ErrNoFiles       = errors.New("pack: no files")
	ErrInvalidName   = errors.New("pack: invalid file name")
	ErrDuplicateName = errors.New("pack: duplicate file name")
	ErrChunkSize     = errors.New("pack: chunk size exceeds the block limit")
)

// Options tunes the DAG layout. Zero values select the defaults.
type Options struct {
	ChunkSize int
	MaxLinks  int
}

func (o Options) validate() error {
	if o.ChunkSize > MaxChunkSize {
		return fmt.Errorf("%w: %d > %d", ErrChunkSize, o.ChunkSize, MaxChunkSize)
	}
	return nil
}

func (o Options) chunkSize() int {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

func (o Options) maxLinks() int {
	if o.MaxLinks < 2 {
		return DefaultMaxLinks
	}
	return o.MaxLinks
}

// File is one named entry of a directory upload.
type File struct {
	Name string
	Data []byte
}

// Result is a packed archive.
type Result struct {
	Root cid.Cid
	Car  []byte
	// Size is the cumulative DAG size, the same figure the validator derives
	// for a dag-pb root.
	Size   uint64
	Blocks int
}

// entry is a built sub-DAG: its root, the cumulative size below and
// including it, and the file bytes it represents.
type entry struct {
	id       cid.Cid
	tsize    uint64
	filesize uint64
}

type builder struct {
	opts   Options
	blocks []car.Block
	seen   map[cid.Cid]struct{}
}

func newBuilder(opts Options) *builder {
	return &builder{opts: opts, seen: make(map[cid.Cid]struct{})}
}

func (b *builder) add(codec uint64, data []byte) (cid.Cid, error) {
	id, err := cidutil.Sum(codec, data)
	if err != nil {
		return cid.Undef, err
	}
	if _, ok := b.seen[id]; !ok {
		b.seen[id] = struct{}{}
		b.blocks = append(b.blocks, car.Block{Cid: id, Bytes: data})
	}
	return id, nil
}

// file builds a balanced UnixFS file DAG with raw leaves. Data that fits
// in one chunk is stored as a single raw block.
func (b *builder) file(data []byte) (entry, error) {
	size := b.opts.chunkSize()
	var level []entry
	for off := 0; off == 0 || off < len(data); off += size {
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		id, err := b.add(cid.Raw, chunk)
		if err != nil {
			return entry{}, err
		}
		n := uint64(len(chunk))
		level = append(level, entry{id: id, tsize: n, filesize: n})
	}

	fanout := b.opts.maxLinks()
	for len(level) > 1 {
		var next []entry
		for i := 0; i < len(level); i += fanout {
			end := i + fanout
			if end > len(level) {
				end = len(level)
			}
			e, err := b.fileNode(level[i:end])
			if err != nil {
				return entry{}, err
			}
			next = append(next, e)
		}
		level = next
	}
	return level[0], nil
}

func (b *builder) fileNode(children []entry) (entry, error) {
	var filesize uint64
	fs := &FSNode{Type: TypeFile}
	node := &dagcodec.PBNode{}
	for _, c := range children {
		filesize += c.filesize
		fs.Blocksizes = append(fs.Blocksizes, c.filesize)
		tsize := c.tsize
		node.Links = append(node.Links, dagcodec.PBLink{Hash: c.id, Name: new(string), Tsize: &tsize})
	}
	fs.Filesize = &filesize
	node.Data = fs.Marshal()

	enc, err := dagcodec.EncodePB(node)
	if err != nil {
		return entry{}, err
	}
	id, err := b.add(cid.DagProtobuf, enc)
	if err != nil {
		return entry{}, err
	}
	return entry{id: id, tsize: uint64(len(enc)) + sumTsize(children), filesize: filesize}, nil
}

func sumTsize(es []entry) uint64 {
	var n uint64
	for _, e := range es {
		n += e.tsize
	}
	return n
}

func (b *builder) finish(root entry) (*Result, error) {
	// Root first so a streaming reader meets it before its children.
	ordered := make([]car.Block, 0, len(b.blocks))
	for _, blk := range b.blocks {
		if blk.Cid.Equals(root.id) {
			ordered = append(ordered, blk)
		}
	}
	for _, blk := range b.blocks {
		if !blk.Cid.Equals(root.id) {
			ordered = append(ordered, blk)
		}
	}
	enc, err := car.Encode([]cid.Cid{root.id}, ordered...)
	if err != nil {
		return nil, err
	}
	return &Result{Root: root.id, Car: enc, Size: root.tsize, Blocks: len(ordered)}, nil
}

// Blob packs data as a UnixFS file.
func Blob(data []byte, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	b := newBuilder(opts)
	root, err := b.file(data)
	if err != nil {
		return nil, err
	}
	return b.finish(root)
}

// Directory packs files as a flat UnixFS directory. Names must be unique,
// non-empty and free of path separators; links are sorted by name.
func Directory(files []File, opts Options) (*Result, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	sorted := append([]File(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	b := newBuilder(opts)
	dir := &dagcodec.PBNode{Data: (&FSNode{Type: TypeDirectory}).Marshal()}
	var children []entry
	for i, f := range sorted {
		if f.Name == "" || f.Name == "." || f.Name == ".." || strings.ContainsRune(f.Name, '/') {
			return nil, fmt.Errorf("%w: %q", ErrInvalidName, f.Name)
		}
		if i > 0 && sorted[i-1].Name == f.Name {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, f.Name)
		}
		e, err := b.file(f.Data)
		if err != nil {
			return nil, err
		}
		name := f.Name
		tsize := e.tsize
		dir.Links = append(dir.Links, dagcodec.PBLink{Hash: e.id, Name: &name, Tsize: &tsize})
		children = append(children, e)
	}

	enc, err := dagcodec.EncodePB(dir)
	if err != nil {
		return nil, err
	}
	id, err := b.add(cid.DagProtobuf, enc)
	if err != nil {
		return nil, err
	}
	return b.finish(entry{id: id, tsize: uint64(len(enc)) + sumTsize(children)})
}
