// Package carstat validates uploaded CAR archives and derives the facts the
// upload pipeline records about them: the root CID, whether the archive holds
// the complete DAG below that root, and the DAG size when it can be known.
package carstat

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"

	"xdao.co/carpin/car"
	"xdao.co/carpin/dagcodec"
)

// MaxBlockSize is the largest block payload accepted in an archive (1MiB).
const MaxBlockSize = 1 << 20

// Structure classifies how much of the DAG below the root an archive holds.
type Structure string

const (
	// Complete means every block reachable from the root is present.
	Complete Structure = "Complete"
	// Partial means at least one reachable block is missing.
	Partial Structure = "Partial"
	// Unknown asks the validator to work it out.
	Unknown Structure = "Unknown"
)

// Known reports whether s is one of the defined structures.
func (s Structure) Known() bool {
	switch s {
	case Complete, Partial, Unknown:
		return true
	}
	return false
}

// Stat is the result of a successful validation.
//
// Size is nil when the DAG size cannot be derived from the archive, which is
// the case for roots that are neither dag-pb nor a lone raw block.
type Stat struct {
	Root      cid.Cid
	Size      *uint64
	Structure Structure
	Blocks    int
}

// Validator checks archives against the upload rules.
type Validator struct {
	// Registry selects decoders by codec. Nil means dagcodec.DefaultRegistry.
	Registry *dagcodec.Registry
	// MaxBlockSize overrides the 1MiB block limit when non-zero.
	MaxBlockSize uint64
}

// New returns a Validator with the default registry and block limit.
func New() *Validator {
	return &Validator{Registry: dagcodec.DefaultRegistry(), MaxBlockSize: MaxBlockSize}
}

// Validate checks a complete in-memory archive. See ValidateReader.
func (v *Validator) Validate(carBytes []byte, hint Structure) (*Stat, error) {
	return v.ValidateReader(bytes.NewReader(carBytes), hint)
}

// ValidateReader checks the archive read from r.
//
// The archive must declare exactly one root, contain at least one block,
// contain the root block, and hold no block larger than the block limit.
// A root with links must come with at least one other block.
//
// Roots whose codec has no decoder are accepted as is: Size stays nil and
// the structure is the caller's hint. When hint is Unknown the DAG is
// walked to decide between Complete and Partial. A hint that is not one of
// the defined structures, including empty, counts as Unknown.
func (v *Validator) ValidateReader(r io.Reader, hint Structure) (*Stat, error) {
	if !hint.Known() {
		hint = Unknown
	}
	limit := v.maxBlockSize()

	br, err := car.NewBlockReader(r, car.MaxBlockSize(limit))
	if err != nil {
		return nil, malformed(ReasonBadHeader, fmt.Sprintf("invalid CAR header: %v", err), err)
	}
	roots := br.Roots()
	if len(roots) == 0 {
		return nil, malformed(ReasonNoRoots, "missing roots", nil)
	}
	if len(roots) > 1 {
		return nil, malformed(ReasonTooManyRoots, "too many roots", nil)
	}
	root := roots[0]

	// Index the blocks once; the structure walk resolves links against it.
	index := make(map[cid.Cid][]byte)
	var (
		rootBytes []byte
		haveRoot  bool
		count     int
	)
	for {
		blk, err := br.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var tooBig *car.BlockTooBigError
			if errors.As(err, &tooBig) {
				return nil, malformed(ReasonBlockTooBig, fmt.Sprintf("block too big: %d > %d", tooBig.Size, limit), err)
			}
			return nil, malformed(ReasonBadSection, fmt.Sprintf("invalid CAR section: %v", err), err)
		}
		if uint64(len(blk.Bytes)) > limit {
			return nil, malformed(ReasonBlockTooBig, fmt.Sprintf("block too big: %d > %d", len(blk.Bytes), limit), nil)
		}
		count++
		if !haveRoot && blk.Cid.Equals(root) {
			rootBytes = blk.Bytes
			haveRoot = true
		}
		if _, ok := index[blk.Cid]; !ok {
			index[blk.Cid] = blk.Bytes
		}
	}
	if count == 0 {
		return nil, malformed(ReasonEmpty, "empty CAR", nil)
	}
	if !haveRoot {
		return nil, malformed(ReasonMissingRootBlock, "missing root block", nil)
	}

	stat := &Stat{Root: root, Structure: hint, Blocks: count}

	dec, ok := v.registry().Lookup(root.Type())
	if !ok {
		return stat, nil
	}

	// A lone raw block has no links: its size is its length.
	if count == 1 && root.Type() == cid.Raw {
		size := uint64(len(rootBytes))
		stat.Size = &size
		stat.Structure = Complete
		return stat, nil
	}

	node, err := dec.Decode(rootBytes)
	if err != nil {
		return nil, malformed(ReasonUndecodableBlock, fmt.Sprintf("undecodable root block %s: %v", root, err), err)
	}
	links := node.Links()
	if len(links) > 0 && count < 2 {
		return nil, malformed(ReasonRootLinksAlone, "CAR must contain at least one non-root block", nil)
	}

	if root.Type() == cid.DagProtobuf {
		size := cumulativeSize(rootBytes, links)
		stat.Size = &size
	}

	if hint == Unknown {
		s, err := v.walk(root, links, index)
		if err != nil {
			return nil, err
		}
		stat.Structure = s
	}
	return stat, nil
}

// walk resolves every link reachable from the root against index using an
// explicit stack. Each CID is decoded at most once, which also terminates
// on cyclic input.
func (v *Validator) walk(root cid.Cid, rootLinks []dagcodec.Link, index map[cid.Cid][]byte) (Structure, error) {
	visited := map[cid.Cid]struct{}{root: {}}
	var stack []cid.Cid

	push := func(links []dagcodec.Link) bool {
		for _, l := range links {
			if _, seen := visited[l.Cid]; seen {
				continue
			}
			if _, ok := index[l.Cid]; !ok {
				return false
			}
			visited[l.Cid] = struct{}{}
			stack = append(stack, l.Cid)
		}
		return true
	}

	if !push(rootLinks) {
		return Partial, nil
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// A block we cannot decode cannot be shown to be complete.
		dec, ok := v.registry().Lookup(id.Type())
		if !ok {
			return Partial, nil
		}
		node, err := dec.Decode(index[id])
		if err != nil {
			return "", malformed(ReasonUndecodableBlock, fmt.Sprintf("undecodable block %s: %v", id, err), err)
		}
		if !push(node.Links()) {
			return Partial, nil
		}
	}
	return Complete, nil
}

// cumulativeSize is the root block length plus the declared Tsize of each
// link, the figure IPFS implementations report as a dag-pb DAG's size.
// A link without Tsize counts as zero.
func cumulativeSize(rootBytes []byte, links []dagcodec.Link) uint64 {
	size := uint64(len(rootBytes))
	for _, l := range links {
		if l.Tsize != nil {
			size += *l.Tsize
		}
	}
	return size
}

// defaultRegistry is never mutated after initialization.
var defaultRegistry = dagcodec.DefaultRegistry()

func (v *Validator) registry() *dagcodec.Registry {
	if v.Registry == nil {
		return defaultRegistry
	}
	return v.Registry
}

func (v *Validator) maxBlockSize() uint64 {
	if v.MaxBlockSize == 0 {
		return MaxBlockSize
	}
	return v.MaxBlockSize
}
