package cidutil

import (
	"errors"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var (
	// ErrMismatch is returned by Verify when bytes do not hash to the given CID.
	ErrMismatch = errors.New("cidutil: bytes do not match cid")
	ErrUndef    = errors.New("cidutil: undefined cid")
)

// CIDv1RawSHA256 returns a CIDv1 string using the "raw" multicodec
// and a sha2-256 multihash.
func CIDv1RawSHA256(data []byte) string {
	id, err := Sum(cid.Raw, data)
	if err != nil {
		// multihash.Sum only errors for invalid inputs; with SHA2_256 and -1 length,
		// this should be unreachable.
		return ""
	}
	return id.String()
}

// Sum returns a CIDv1 with the given multicodec and a sha2-256 multihash of data.
func Sum(codec uint64, data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(codec, sum), nil
}

// SumV0 returns a CIDv0 (dag-pb + sha2-256) for data.
func SumV0(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV0(sum), nil
}

// Verify recomputes the multihash of data using the CID's own prefix
// (version, codec, hash function and length) and reports ErrMismatch when
// the result differs from id.
func Verify(id cid.Cid, data []byte) error {
	if !id.Defined() {
		return ErrUndef
	}
	got, err := id.Prefix().Sum(data)
	if err != nil {
		return err
	}
	if !got.Equals(id) {
		return ErrMismatch
	}
	return nil
}

// V1 returns id in CIDv1 form. CIDv1 inputs are returned unchanged.
func V1(id cid.Cid) cid.Cid {
	if id.Version() == 1 {
		return id
	}
	return cid.NewCidV1(id.Type(), id.Hash())
}
