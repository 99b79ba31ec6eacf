// Package upload accepts CAR archives: it validates them, hands them to the
// replication and backup collaborators concurrently, and records the result.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"xdao.co/carpin/backup"
	"xdao.co/carpin/carstat"
	"xdao.co/carpin/cidutil"
	"xdao.co/carpin/db"
	"xdao.co/carpin/metrics"
	"xdao.co/carpin/pack"
	"xdao.co/carpin/pinning"
)

// DefaultLocalAddThreshold is 2.5 MiB.
const DefaultLocalAddThreshold = 2621440

// MimeMultipart is recorded for directory uploads.
const MimeMultipart = "multipart/form-data"

// CarInput is one archive submission.
type CarInput struct {
	Car []byte
	// Type defaults to db.UploadTypeCar.
	Type db.UploadType
	// Structure is the caller's claim about completeness. Empty or Unknown
	// lets the validator work it out.
	Structure carstat.Structure
	MimeType  string
	Name      string
	Files     []db.File
	UserID    string
	KeyID     string
	Meta      map[string]any
}

// BlobInput is a single file to be packed into an archive.
type BlobInput struct {
	Data     []byte
	MimeType string
	Name     string
	UserID   string
	KeyID    string
	Meta     map[string]any
}

// File is one part of a multipart upload.
type File struct {
	Name string
	Type string
	Data []byte
}

// FilesInput is a multipart upload, packed as a flat directory.
type FilesInput struct {
	Files  []File
	Name   string
	UserID string
	KeyID  string
	Meta   map[string]any
}

// Coordinator runs the upload pipeline. Pinner and Store are required;
// a nil Backup disables backups.
type Coordinator struct {
	Validator *carstat.Validator
	Pinner    pinning.Pinner
	Backup    backup.Backup
	Store     db.Store
	Pack      pack.Options

	// LocalAddThreshold: archives strictly larger than this are replicated
	// in the background. Zero means DefaultLocalAddThreshold.
	LocalAddThreshold uint64
	// CallTimeout bounds each collaborator call on its own. Zero means the
	// caller's context is the only bound.
	CallTimeout time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// New returns a Coordinator with default validation and thresholds.
func New(pinner pinning.Pinner, store db.Store) *Coordinator {
	return &Coordinator{
		Validator:         carstat.New(),
		Pinner:            pinner,
		Store:             store,
		LocalAddThreshold: DefaultLocalAddThreshold,
	}
}

// UploadCar validates the archive and, when it is acceptable, replicates,
// backs up and records it. Validation errors are returned as is and leave
// no side effects.
func (c *Coordinator) UploadCar(ctx context.Context, in CarInput) (*db.Upload, error) {
	uploadType := in.uploadType()
	if len(in.Car) == 0 {
		c.Metrics.ObserveUpload(string(uploadType), metrics.OutcomeRejected, 0)
		return nil, ErrEmptyPayload
	}
	stat, err := c.validator().Validate(in.Car, in.Structure)
	if err != nil {
		c.Metrics.ObserveValidationFailure(string(carstat.ReasonOf(err)))
		c.Metrics.ObserveUpload(string(uploadType), metrics.OutcomeRejected, len(in.Car))
		c.logger().Debug("archive rejected", "type", uploadType, "bytes", len(in.Car), "error", err)
		return nil, err
	}
	return c.UploadCarWithStat(ctx, in, stat)
}

// UploadCarWithStat runs the side-effecting part of UploadCar for an archive
// the caller has already validated.
//
// Replication and backup run concurrently and are both awaited. If either
// fails the upload fails and no record is written; whatever the other call
// stored stays where it is.
func (c *Coordinator) UploadCarWithStat(ctx context.Context, in CarInput, stat *carstat.Stat) (*db.Upload, error) {
	uploadType := in.uploadType()
	mode := c.replication(len(in.Car))
	log := c.logger().With("root", stat.Root.String(), "type", uploadType)

	var (
		g         errgroup.Group
		added     pinning.AddResult
		backupURL string
	)
	g.Go(func() error {
		var err error
		added, err = observe(ctx, c, OpReplicate, func(ctx context.Context) (pinning.AddResult, error) {
			return c.Pinner.AddCar(ctx, in.Car, pinning.AddOptions{Replication: mode})
		})
		return err
	})
	if c.Backup != nil {
		g.Go(func() error {
			var err error
			backupURL, err = observe(ctx, c, OpBackup, func(ctx context.Context) (string, error) {
				return c.Backup.BackupCar(ctx, in.UserID, stat.Root, in.Car, stat.Structure)
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		c.Metrics.ObserveUpload(string(uploadType), metrics.OutcomeFailed, len(in.Car))
		log.Error("upload failed", "error", err)
		return nil, err
	}

	if added.Cid.Defined() && !cidutil.V1(added.Cid).Equals(cidutil.V1(stat.Root)) {
		log.Warn("pinner reported a different root", "pinned", added.Cid.String())
	}

	rec := &db.Upload{
		UserID:     in.UserID,
		KeyID:      in.KeyID,
		ContentCID: cidutil.V1(stat.Root).String(),
		SourceCID:  stat.Root.String(),
		MimeType:   in.MimeType,
		Type:       uploadType,
		Name:       in.Name,
		DagSize:    dagSize(stat, added),
		Structure:  stat.Structure,
		Files:      in.Files,
		Meta:       in.Meta,
		BackupURLs: []string{},
		Pins:       []db.Pin{{Service: db.PinServiceCluster, Status: db.PinQueued}},
	}
	if rec.Files == nil {
		rec.Files = []db.File{}
	}
	if backupURL != "" {
		rec.BackupURLs = []string{backupURL}
	}

	out, err := observe(ctx, c, OpPersist, func(ctx context.Context) (*db.Upload, error) {
		return c.Store.CreateUpload(ctx, rec)
	})
	if err != nil {
		c.Metrics.ObserveUpload(string(uploadType), metrics.OutcomeFailed, len(in.Car))
		log.Error("upload failed", "error", err)
		return nil, err
	}

	c.Metrics.ObserveUpload(string(uploadType), metrics.OutcomeAccepted, len(in.Car))
	log.Info("upload accepted",
		"id", out.ID,
		"structure", out.Structure,
		"replication", mode.String(),
		"bytes", len(in.Car),
	)
	return out, nil
}

// UploadBlob packs data as a single UnixFS file and uploads the archive.
func (c *Coordinator) UploadBlob(ctx context.Context, in BlobInput) (*db.Upload, error) {
	if len(in.Data) == 0 {
		c.Metrics.ObserveUpload(string(db.UploadTypeBlob), metrics.OutcomeRejected, 0)
		return nil, ErrEmptyPayload
	}
	res, err := pack.Blob(in.Data, c.Pack)
	if err != nil {
		c.Metrics.ObserveUpload(string(db.UploadTypeBlob), metrics.OutcomeRejected, len(in.Data))
		return nil, fmt.Errorf("upload: pack blob: %w", err)
	}
	return c.UploadCar(ctx, CarInput{
		Car:       res.Car,
		Type:      db.UploadTypeBlob,
		Structure: carstat.Complete,
		MimeType:  in.MimeType,
		Name:      in.Name,
		UserID:    in.UserID,
		KeyID:     in.KeyID,
		Meta:      in.Meta,
	})
}

// UploadFiles packs the files as a directory and uploads the archive.
func (c *Coordinator) UploadFiles(ctx context.Context, in FilesInput) (*db.Upload, error) {
	files := make([]pack.File, len(in.Files))
	meta := make([]db.File, len(in.Files))
	for i, f := range in.Files {
		files[i] = pack.File{Name: f.Name, Data: f.Data}
		meta[i] = db.File{Name: f.Name, Type: f.Type}
	}
	res, err := pack.Directory(files, c.Pack)
	if err != nil {
		c.Metrics.ObserveUpload(string(db.UploadTypeMultipart), metrics.OutcomeRejected, 0)
		return nil, err
	}
	return c.UploadCar(ctx, CarInput{
		Car:       res.Car,
		Type:      db.UploadTypeMultipart,
		Structure: carstat.Complete,
		MimeType:  MimeMultipart,
		Name:      in.Name,
		Files:     meta,
		UserID:    in.UserID,
		KeyID:     in.KeyID,
		Meta:      in.Meta,
	})
}

// replication picks background propagation for archives above the
// threshold so large uploads do not wait on the whole cluster.
func (c *Coordinator) replication(carLen int) pinning.Replication {
	threshold := c.LocalAddThreshold
	if threshold == 0 {
		threshold = DefaultLocalAddThreshold
	}
	if uint64(carLen) > threshold {
		return pinning.ReplicateBackground
	}
	return pinning.ReplicateSync
}

// dagSize prefers the validator's figure and falls back to what the pinner
// reported.
func dagSize(stat *carstat.Stat, added pinning.AddResult) *uint64 {
	if stat.Size != nil {
		size := *stat.Size
		return &size
	}
	switch {
	case added.Bytes > 0:
		size := added.Bytes
		return &size
	case added.Size > 0:
		size := added.Size
		return &size
	default:
		return nil
	}
}

// observe runs one collaborator call under CallTimeout, times it, and wraps
// a failure in *Error.
func observe[T any](ctx context.Context, c *Coordinator, op Op, call func(context.Context) (T, error)) (T, error) {
	if c.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.CallTimeout)
		defer cancel()
	}
	start := time.Now()
	v, err := call(ctx)
	c.Metrics.ObserveCall(string(op), time.Since(start), err)
	if err != nil {
		var zero T
		return zero, &Error{Op: op, Err: err}
	}
	return v, nil
}

func (in CarInput) uploadType() db.UploadType {
	if in.Type == "" {
		return db.UploadTypeCar
	}
	return in.Type
}

func (c *Coordinator) validator() *carstat.Validator {
	if c.Validator == nil {
		return defaultValidator
	}
	return c.Validator
}

var defaultValidator = carstat.New()

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
