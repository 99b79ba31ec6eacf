// Package badgerstore is a block store backed by an embedded Badger database.
package badgerstore

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ipfs/go-cid"

	"xdao.co/carpin/storage"
	"xdao.co/carpin/storage/storeregistry"
)

const keyPrefix = "b/"

// Config configures a Store.
type Config struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	// SyncWrites forces an fsync per write transaction.
	SyncWrites bool
}

// Store keeps blocks in Badger keyed by the binary CID.
type Store struct {
	db *badgerdb.DB
}

var _ storage.Blockstore = (*Store)(nil)

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*Store, error) {
	var opts badgerdb.Options
	switch {
	case cfg.InMemory:
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	case cfg.Dir != "":
		opts = badgerdb.DefaultOptions(cfg.Dir).WithSyncWrites(cfg.SyncWrites)
	default:
		return nil, errors.New("badgerstore: dir is required unless in_memory is set")
	}
	db, err := badgerdb.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func keyFor(id cid.Cid) []byte {
	return append([]byte(keyPrefix), id.Bytes()...)
}

func (s *Store) Put(id cid.Cid, data []byte) error {
	if err := storage.Verify(id, data); err != nil {
		return err
	}
	key := keyFor(id)
	return s.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err == nil {
			return item.Value(func(val []byte) error {
				if !bytes.Equal(val, data) {
					return storage.ErrImmutable
				}
				return nil
			})
		}
		if err != badgerdb.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, data)
	})
}

func (s *Store) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	var out []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyFor(id))
		if err == badgerdb.ErrKeyNotFound {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	err := s.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(keyFor(id))
		return err
	})
	return err == nil
}

func init() {
	storeregistry.MustRegister(storeregistry.Backend{
		Name:        "badger",
		Description: "Embedded Badger block store",
		Open: func(cfg map[string]string) (storage.Blockstore, func() error, error) {
			c := Config{Dir: cfg["dir"]}
			for key, dst := range map[string]*bool{"in_memory": &c.InMemory, "sync_writes": &c.SyncWrites} {
				if v, ok := cfg[key]; ok {
					b, err := strconv.ParseBool(v)
					if err != nil {
						return nil, nil, fmt.Errorf("badgerstore: invalid %s %q: %w", key, v, err)
					}
					*dst = b
				}
			}
			s, err := Open(c)
			if err != nil {
				return nil, nil, err
			}
			return s, s.Close, nil
		},
	})
}
