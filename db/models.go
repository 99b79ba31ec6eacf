package db

import (
	"time"

	"xdao.co/carpin/carstat"
)

// UploadType records how the content arrived.
type UploadType string

const (
	UploadTypeCar       UploadType = "Car"
	UploadTypeBlob      UploadType = "Blob"
	UploadTypeMultipart UploadType = "Multipart"
)

// PinStatus is the replication state of a pin. The pipeline only ever
// writes PinQueued; later transitions belong to the pinning service.
type PinStatus string

const (
	PinQueued  PinStatus = "queued"
	PinPinning PinStatus = "pinning"
	PinPinned  PinStatus = "pinned"
	PinFailed  PinStatus = "failed"
)

// PinServiceCluster names the replication collaborator in pin records.
const PinServiceCluster = "IpfsCluster"

// Pin is a per-service replication status.
type Pin struct {
	Service string    `json:"service"`
	Status  PinStatus `json:"status"`
}

// File is per-file metadata for multipart uploads.
type File struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Upload is the persisted record of one accepted upload.
//
// ContentCID is always the CIDv1 string; SourceCID keeps the form the
// client used, which may be CIDv0.
type Upload struct {
	ID         string            `gorm:"primaryKey;size:36" json:"id"`
	UserID     string            `gorm:"index;size:64" json:"user_id"`
	KeyID      string            `gorm:"size:64" json:"key_id,omitempty"`
	ContentCID string            `gorm:"index;not null;size:128" json:"content_cid"`
	SourceCID  string            `gorm:"not null;size:128" json:"source_cid"`
	MimeType   string            `gorm:"size:255" json:"mime_type,omitempty"`
	Type       UploadType        `gorm:"size:16;not null" json:"type"`
	Name       string            `gorm:"size:255" json:"name,omitempty"`
	DagSize    *uint64           `json:"dag_size,omitempty"`
	Structure  carstat.Structure `gorm:"size:16;not null" json:"structure"`
	Files      []File            `gorm:"serializer:json" json:"files,omitempty"`
	Meta       map[string]any    `gorm:"serializer:json" json:"meta,omitempty"`
	BackupURLs []string          `gorm:"serializer:json" json:"backup_urls,omitempty"`
	Pins       []Pin             `gorm:"serializer:json" json:"pins"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// AllModels lists the models migrated at startup.
func AllModels() []any {
	return []any{&Upload{}}
}
