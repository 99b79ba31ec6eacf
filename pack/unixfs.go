package pack

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// UnixFS node types.
const (
	TypeRaw       uint64 = 0
	TypeDirectory uint64 = 1
	TypeFile      uint64 = 2
)

const (
	fsType       protowire.Number = 1
	fsData       protowire.Number = 2
	fsFilesize   protowire.Number = 3
	fsBlocksizes protowire.Number = 4
)

// FSNode is the UnixFS payload carried in a dag-pb node's Data field.
type FSNode struct {
	Type       uint64
	Data       []byte
	Filesize   *uint64
	Blocksizes []uint64
}

// Marshal encodes n in field order.
func (n *FSNode) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fsType, protowire.VarintType)
	b = protowire.AppendVarint(b, n.Type)
	if n.Data != nil {
		b = protowire.AppendTag(b, fsData, protowire.BytesType)
		b = protowire.AppendBytes(b, n.Data)
	}
	if n.Filesize != nil {
		b = protowire.AppendTag(b, fsFilesize, protowire.VarintType)
		b = protowire.AppendVarint(b, *n.Filesize)
	}
	for _, s := range n.Blocksizes {
		b = protowire.AppendTag(b, fsBlocksizes, protowire.VarintType)
		b = protowire.AppendVarint(b, s)
	}
	return b
}

// UnmarshalFSNode decodes a UnixFS payload. Unknown fields are skipped.
func UnmarshalFSNode(b []byte) (*FSNode, error) {
	n := &FSNode{}
	haveType := false
	for len(b) > 0 {
		num, typ, m := protowire.ConsumeTag(b)
		if m < 0 {
			return nil, fmt.Errorf("unixfs: %w", protowire.ParseError(m))
		}
		b = b[m:]
		switch {
		case num == fsType && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("unixfs: %w", protowire.ParseError(m))
			}
			n.Type, haveType = v, true
			b = b[m:]
		case num == fsData && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("unixfs: %w", protowire.ParseError(m))
			}
			n.Data = append([]byte{}, v...)
			b = b[m:]
		case num == fsFilesize && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("unixfs: %w", protowire.ParseError(m))
			}
			n.Filesize = &v
			b = b[m:]
		case num == fsBlocksizes && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("unixfs: %w", protowire.ParseError(m))
			}
			n.Blocksizes = append(n.Blocksizes, v)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, fmt.Errorf("unixfs: %w", protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	if !haveType {
		return nil, fmt.Errorf("unixfs: missing type")
	}
	return n, nil
}
