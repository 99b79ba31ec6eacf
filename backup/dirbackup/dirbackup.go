// Package dirbackup keeps archive backups in a local directory, using the
// same key layout as the object store adapter.
package dirbackup

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"xdao.co/carpin/backup"
	"xdao.co/carpin/carstat"
)

type Backup struct {
	root string
}

var _ backup.Backup = (*Backup)(nil)

func New(root string) (*Backup, error) {
	if root == "" {
		return nil, errors.New("dirbackup: root directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Backup{root: abs}, nil
}

// BackupCar writes the archive under its key and returns a file:// URL.
// Existing identical copies are left in place.
func (b *Backup) BackupCar(ctx context.Context, userID string, root cid.Cid, carBytes []byte, structure carstat.Structure) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := backup.Key(userID, root, carBytes, structure)
	if err != nil {
		return "", err
	}
	path := filepath.Join(b.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, carBytes) {
		return fileURL(path), nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".backup-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(carBytes); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return fileURL(path), nil
}

func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
