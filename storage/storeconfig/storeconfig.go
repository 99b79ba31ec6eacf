// Package storeconfig opens one or more registered block store backends from
// configuration.
package storeconfig

import (
	"errors"
	"fmt"

	"xdao.co/carpin/storage"
	"xdao.co/carpin/storage/storeregistry"
)

// Config describes how to open block store backends via storeregistry.
// Callers still need to link the desired backends via blank imports.
//
// WritePolicy values:
// - "first" (default): write only to the first backend; reads fall back in order
// - "all": write to every backend (see storage.ReplicatingStore)
//
// Example (YAML):
//
//	write_policy: all
//	backends:
//	  - name: badger
//	    config: {dir: /var/lib/carpin/blocks}
//	  - name: localfs
//	    id: mirror
//	    config: {dir: /mnt/mirror}
type Config struct {
	WritePolicy string          `mapstructure:"write_policy" yaml:"write_policy,omitempty"`
	Backends    []BackendConfig `mapstructure:"backends" yaml:"backends"`
}

type BackendConfig struct {
	// Name is the storeregistry backend name to open (e.g. "badger", "localfs").
	Name string `mapstructure:"name" yaml:"name"`
	// ID is an optional stable alias used in reports. If empty, Name is used.
	ID     string            `mapstructure:"id" yaml:"id,omitempty"`
	Config map[string]string `mapstructure:"config" yaml:"config,omitempty"`
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("storeconfig: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("storeconfig: backend name is required")
		}
		if _, ok := seen[b.id()]; ok {
			return fmt.Errorf("storeconfig: duplicate backend id %q", b.id())
		}
		seen[b.id()] = struct{}{}
	}
	switch c.WritePolicy {
	case "", "first", "all":
		return nil
	default:
		return fmt.Errorf("storeconfig: invalid write_policy %q", c.WritePolicy)
	}
}

// Open opens every configured backend and combines them per WritePolicy.
// The returned close function closes the backends in reverse order.
func (c Config) Open() (storage.Blockstore, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	named := make([]storage.NamedStore, 0, len(c.Backends))
	closers := make([]func() error, 0, len(c.Backends))
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	for _, b := range c.Backends {
		bs, closeFn, err := storeregistry.Open(b.Name, b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("storeconfig: backend %q: %w", b.id(), err)
		}
		named = append(named, storage.NamedStore{Name: b.id(), Store: bs})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].Store, closeAll, nil
	}
	if c.WritePolicy == "all" {
		return storage.ReplicatingStore{Backends: named}, closeAll, nil
	}
	stores := make([]storage.Blockstore, 0, len(named))
	for _, n := range named {
		stores = append(stores, n.Store)
	}
	return storage.MultiStore{Stores: stores}, closeAll, nil
}
