// Package s3backup stores archive backups in an S3 (or S3-compatible) bucket.
package s3backup

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ipfs/go-cid"

	"xdao.co/carpin/backup"
	"xdao.co/carpin/carstat"
)

// Config holds configuration for the S3 backup.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string `mapstructure:"bucket" yaml:"bucket,omitempty"`

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// KeyPrefix is prepended to all object keys (e.g., "backups/").
	// Should end with "/" if non-empty.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// PutObjectAPI is the subset of the S3 client the backup needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Backup writes archives to a bucket.
type Backup struct {
	client PutObjectAPI
	cfg    Config
}

var _ backup.Backup = (*Backup)(nil)

// New creates a backup with an existing client.
func New(client PutObjectAPI, cfg Config) (*Backup, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3backup: bucket is required")
	}
	return &Backup{client: client, cfg: cfg}, nil
}

// NewFromConfig creates the S3 client from cfg and the default AWS
// credential chain.
func NewFromConfig(ctx context.Context, cfg Config) (*Backup, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3backup: failed to load AWS config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = awsCfg.Region
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return New(s3.NewFromConfig(awsCfg, s3Opts...), cfg)
}

// BackupCar uploads the archive and returns its object URL. The structure
// and root travel as object metadata; the payload is checksummed so S3
// rejects a corrupted transfer.
func (b *Backup) BackupCar(ctx context.Context, userID string, root cid.Cid, carBytes []byte, structure carstat.Structure) (string, error) {
	key, err := backup.Key(userID, root, carBytes, structure)
	if err != nil {
		return "", err
	}
	key = b.cfg.KeyPrefix + key

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(b.cfg.Bucket),
		Key:            aws.String(key),
		Body:           bytes.NewReader(carBytes),
		ContentLength:  aws.Int64(int64(len(carBytes))),
		ContentType:    aws.String(backup.ContentType),
		ChecksumSHA256: aws.String(base64.StdEncoding.EncodeToString(backup.Checksum(carBytes))),
		Metadata: map[string]string{
			"structure": string(structure),
			"root":      root.String(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("s3backup: put object %s: %w", key, err)
	}
	return b.URL(key), nil
}

// URL is the location reported for key: virtual-hosted AWS style, or
// path style under a custom endpoint.
func (b *Backup) URL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if b.cfg.Endpoint != "" {
		return strings.TrimRight(b.cfg.Endpoint, "/") + "/" + b.cfg.Bucket + "/" + escaped
	}
	region := b.cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.cfg.Bucket, region, escaped)
}
