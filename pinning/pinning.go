// Package pinning defines the replication collaborator the upload pipeline
// hands validated archives to, plus helpers shared by its adapters.
package pinning

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
)

// Replication selects how far an add propagates before it returns.
type Replication int

const (
	// ReplicateSync returns only once the content is fully replicated.
	ReplicateSync Replication = iota
	// ReplicateBackground returns once the content is accepted locally;
	// propagation continues asynchronously.
	ReplicateBackground
)

func (r Replication) String() string {
	switch r {
	case ReplicateSync:
		return "sync"
	case ReplicateBackground:
		return "background"
	default:
		return fmt.Sprintf("Replication(%d)", int(r))
	}
}

// ParseReplication is the inverse of Replication.String.
func ParseReplication(s string) (Replication, error) {
	switch s {
	case "sync", "":
		return ReplicateSync, nil
	case "background":
		return ReplicateBackground, nil
	default:
		return 0, fmt.Errorf("pinning: unknown replication mode %q", s)
	}
}

// AddOptions configures a single add.
type AddOptions struct {
	Replication Replication
}

// AddResult describes added content.
//
// Add reports Size, the cumulative DAG size. AddCar reports Bytes, the total
// block bytes imported from the archive. A zero value means "not reported".
type AddResult struct {
	Cid   cid.Cid
	Size  uint64
	Bytes uint64
}

// Pinner is the replication collaborator.
type Pinner interface {
	// Add stores data as a file and pins it.
	Add(ctx context.Context, data []byte, opts AddOptions) (AddResult, error)
	// AddCar imports the blocks of a CARv1 archive and pins its root.
	AddCar(ctx context.Context, carBytes []byte, opts AddOptions) (AddResult, error)
}

var (
	// ErrInvalidInput marks content the pinner refused to accept.
	ErrInvalidInput = errors.New("pinning: invalid input")
	// ErrUnavailable marks a pinner that could not be reached.
	ErrUnavailable = errors.New("pinning: unavailable")
)
