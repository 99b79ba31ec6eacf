// Package backup defines the optional collaborator that keeps a redundant
// copy of every uploaded archive, and the object key scheme its adapters
// share.
package backup

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"

	"xdao.co/carpin/carstat"
	"xdao.co/carpin/cidutil"
)

// Backup stores archive bytes and returns the location of the copy.
type Backup interface {
	BackupCar(ctx context.Context, userID string, root cid.Cid, carBytes []byte, structure carstat.Structure) (string, error)
}

// ContentType is the media type stored alongside archives.
const ContentType = "application/vnd.ipld.car"

// Key returns the object key for an archive.
//
// A complete DAG is stored once per root: complete/<root>.car. Anything else
// may be one of several partial archives for the same root, so it is keyed
// by uploader and archive hash: raw/<root>/<user>/<sha256>.car. Roots are
// always rendered as CIDv1.
func Key(userID string, root cid.Cid, carBytes []byte, structure carstat.Structure) (string, error) {
	rootStr := cidutil.V1(root).String()
	if structure == carstat.Complete {
		return fmt.Sprintf("complete/%s.car", rootStr), nil
	}
	if userID == "" {
		return "", fmt.Errorf("backup: user id is required for %s archives", structure)
	}
	digest, err := CarHash(carBytes)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("raw/%s/%s/%s.car", rootStr, userID, digest), nil
}

// CarHash is the base32 multibase form of the archive's sha2-256 multihash.
func CarHash(carBytes []byte) (string, error) {
	mh, err := multihash.Sum(carBytes, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return multibase.Encode(multibase.Base32, mh)
}

// Checksum returns the raw sha256 digest of the archive, for stores that
// verify uploads end to end.
func Checksum(carBytes []byte) []byte {
	sum := sha256.Sum256(carBytes)
	return sum[:]
}
