// Package app wires carpin's components together from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"xdao.co/carpin/backup"
	"xdao.co/carpin/backup/dirbackup"
	"xdao.co/carpin/backup/s3backup"
	"xdao.co/carpin/carstat"
	"xdao.co/carpin/config"
	"xdao.co/carpin/db"
	"xdao.co/carpin/metrics"
	"xdao.co/carpin/pinning"
	"xdao.co/carpin/pinning/blockpin"
	"xdao.co/carpin/pinning/kubo"
	"xdao.co/carpin/pinning/pinrpc"
	"xdao.co/carpin/storage"
	"xdao.co/carpin/upload"

	// Block store backends selectable from configuration.
	_ "xdao.co/carpin/storage/badgerstore"
	_ "xdao.co/carpin/storage/localfs"
)

// App holds the opened collaborators and the coordinator built on them.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics
	Store       *db.GormStore
	Pinner      pinning.Pinner
	Backup      backup.Backup
	Coordinator *upload.Coordinator

	closers []func() error
}

// New opens every collaborator named by cfg. On error, whatever was already
// opened is closed again.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (a *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	if cfg.Metrics.Enabled {
		a.Registry = NewRegistry()
		a.Metrics = metrics.New(a.Registry)
	}

	a.Store, err = db.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)

	pinner, closePinner, err := OpenPinner(cfg.Pinner, logger)
	if err != nil {
		return nil, fmt.Errorf("open pinner: %w", err)
	}
	a.closers = append(a.closers, closePinner)
	a.Pinner = pinner

	a.Backup, err = OpenBackup(ctx, cfg.Backup)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}

	a.Coordinator = &upload.Coordinator{
		Validator:         carstat.New(),
		Pinner:            a.Pinner,
		Backup:            a.Backup,
		Store:             a.Store,
		LocalAddThreshold: uint64(cfg.Upload.LocalAddThreshold),
		CallTimeout:       cfg.Upload.CallTimeout,
		Logger:            logger.With("component", "upload"),
		Metrics:           a.Metrics,
	}

	logger.Debug("app initialized",
		"pinner", cfg.Pinner.Kind,
		"backup", cfg.Backup.Kind,
		"database", cfg.Database.Type,
		"local_add_threshold", cfg.Upload.LocalAddThreshold.String(),
	)
	return a, nil
}

// Close releases collaborators in reverse opening order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// MetricsHandler serves the registry, or 404s when metrics are disabled.
func (a *App) MetricsHandler() http.Handler {
	if a.Registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry})
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// OpenPinner builds the configured replication collaborator.
func OpenPinner(cfg config.PinnerConfig, logger *slog.Logger) (pinning.Pinner, func() error, error) {
	switch cfg.Kind {
	case config.PinnerBlockpin:
		store, closeFn, err := OpenBlockstore(cfg)
		if err != nil {
			return nil, nil, err
		}
		return blockpin.New(store, logger.With("component", "blockpin")), closeFn, nil
	case config.PinnerKubo:
		p := kubo.New(kubo.Options{Bin: cfg.Kubo.Bin, RepoPath: cfg.Kubo.RepoPath})
		return p, func() error { return nil }, nil
	case config.PinnerRPC:
		c, err := pinrpc.Dial(cfg.RPC.Target, pinrpc.DialOptions{
			Timeout:     cfg.RPC.DialTimeout,
			MaxMsgBytes: int(cfg.RPC.MaxMessageSize),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("dial %s: %w", cfg.RPC.Target, err)
		}
		return c, c.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported pinner kind %q", cfg.Kind)
	}
}

// OpenBlockstore opens the block store behind the offline pinner.
func OpenBlockstore(cfg config.PinnerConfig) (storage.Blockstore, func() error, error) {
	store, closeFn, err := cfg.Blockstore.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open blockstore: %w", err)
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return store, closeFn, nil
}

// OpenBackup builds the configured backup collaborator. It returns nil
// when backups are disabled.
func OpenBackup(ctx context.Context, cfg config.BackupConfig) (backup.Backup, error) {
	switch cfg.Kind {
	case "", config.BackupNone:
		return nil, nil
	case config.BackupDir:
		b, err := dirbackup.New(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BackupS3:
		b, err := s3backup.NewFromConfig(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported backup kind %q", cfg.Kind)
	}
}
