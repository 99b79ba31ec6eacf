// Package kubo is a Pinner backed by the local Kubo "ipfs" CLI.
//
// It does not embed a network client; it shells out to the binary, which
// operates on the configured repo. Synchronous replication is approximated
// by announcing the root to the routing system before returning.
package kubo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/carpin/pinning"
)

type Options struct {
	// Bin is the path to the ipfs binary. If empty, "ipfs" is used.
	Bin string
	// RepoPath sets IPFS_PATH for every command when non-empty.
	RepoPath string
	// Env optionally overrides the command environment.
	// If nil, the process environment is used.
	Env []string
}

type Pinner struct {
	bin string
	env []string
}

var _ pinning.Pinner = (*Pinner)(nil)

func New(opts Options) *Pinner {
	bin := opts.Bin
	if bin == "" {
		bin = "ipfs"
	}
	env := opts.Env
	if opts.RepoPath != "" {
		if env == nil {
			env = os.Environ()
		}
		env = append(append([]string(nil), env...), "IPFS_PATH="+opts.RepoPath)
	}
	return &Pinner{bin: bin, env: env}
}

// AddCar imports the archive with its roots pinned. The byte count is
// computed from the archive itself rather than parsed from CLI output.
func (p *Pinner) AddCar(ctx context.Context, carBytes []byte, opts pinning.AddOptions) (pinning.AddResult, error) {
	sum, err := pinning.SummarizeArchive(carBytes)
	if err != nil {
		return pinning.AddResult{}, err
	}
	if _, err := p.run(ctx, carBytes, "dag", "import", "--pin-roots=true", "/dev/stdin"); err != nil {
		return pinning.AddResult{}, err
	}
	if err := p.provide(ctx, sum.Root, opts); err != nil {
		return pinning.AddResult{}, err
	}
	return pinning.AddResult{Cid: sum.Root, Bytes: sum.Bytes}, nil
}

// Add adds data as a file with CIDv1 raw leaves and pins it.
func (p *Pinner) Add(ctx context.Context, data []byte, opts pinning.AddOptions) (pinning.AddResult, error) {
	out, err := p.run(ctx, data, "add", "--quieter", "--pin=true", "--cid-version=1", "--raw-leaves=true")
	if err != nil {
		return pinning.AddResult{}, err
	}
	id, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return pinning.AddResult{}, fmt.Errorf("kubo: unexpected add output: %w", err)
	}

	out, err = p.run(ctx, nil, "files", "stat", "--format=<cumulsize>", "/ipfs/"+id.String())
	if err != nil {
		return pinning.AddResult{}, err
	}
	size, err := strconv.ParseUint(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return pinning.AddResult{}, fmt.Errorf("kubo: unexpected files stat output: %w", err)
	}

	if err := p.provide(ctx, id, opts); err != nil {
		return pinning.AddResult{}, err
	}
	return pinning.AddResult{Cid: id, Size: size}, nil
}

func (p *Pinner) provide(ctx context.Context, id cid.Cid, opts pinning.AddOptions) error {
	if opts.Replication != pinning.ReplicateSync {
		return nil
	}
	_, err := p.run(ctx, nil, "routing", "provide", id.String())
	return err
}

func (p *Pinner) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.bin, args...)
	if p.env != nil {
		cmd.Env = p.env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, exec.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", pinning.ErrUnavailable, err)
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		s := strings.TrimSpace(string(ee.Stderr))
		if s == "" {
			return nil, fmt.Errorf("kubo: %s: %v", args[0], err)
		}
		return nil, fmt.Errorf("kubo: %s: %s", args[0], s)
	}
	return nil, err
}
