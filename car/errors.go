package car

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
)

var (
	ErrMalformedHeader   = errors.New("car: malformed header")
	ErrTruncated         = errors.New("car: truncated section")
	ErrZeroLengthSection = errors.New("car: zero-length section")
	ErrSectionTooLarge   = errors.New("car: section too large")
	// ErrInvalidSection covers an unparsable section CID and block bytes
	// that do not hash to their CID.
	ErrInvalidSection = errors.New("car: invalid section")
)

// BlockTooBigError reports a block whose payload exceeds the reader's
// MaxBlockSize. The payload is never read into memory when the section
// length alone exceeds the limit; Cid is undefined and Size is the section
// length in that case.
type BlockTooBigError struct {
	Cid   cid.Cid
	Size  uint64
	Limit uint64
}

func (e *BlockTooBigError) Error() string {
	return fmt.Sprintf("car: block too big: %d > %d", e.Size, e.Limit)
}
