package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"xdao.co/carpin/carstat"
)

func createTestStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := Open(&Config{Type: DatabaseTypeSQLite, SQLite: SQLiteConfig{Path: ":memory:"}})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConfig(t *testing.T) {
	t.Run("default config uses sqlite", func(t *testing.T) {
		c := &Config{}
		c.ApplyDefaults()
		if c.Type != DatabaseTypeSQLite || c.SQLite.Path == "" {
			t.Fatalf("unexpected defaults: %+v", c)
		}
	})
	t.Run("postgres defaults and validation", func(t *testing.T) {
		c := &Config{Type: DatabaseTypePostgres}
		c.ApplyDefaults()
		if c.Postgres.Port != 5432 || c.Postgres.SSLMode != "disable" {
			t.Fatalf("unexpected defaults: %+v", c.Postgres)
		}
		if err := c.Validate(); err == nil {
			t.Fatalf("expected error without host")
		}
		c.Postgres.Host, c.Postgres.Database, c.Postgres.User = "db", "carpin", "carpin"
		if err := c.Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if c.Postgres.DSN() != "host=db port=5432 user=carpin password= dbname=carpin sslmode=disable" {
			t.Fatalf("DSN: %s", c.Postgres.DSN())
		}
	})
	t.Run("invalid type", func(t *testing.T) {
		if _, err := Open(&Config{Type: "oracle"}); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestCreateUpload(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	size := uint64(350)

	in := &Upload{
		UserID:     "user-1",
		ContentCID: "bafy-content",
		SourceCID:  "Qm-source",
		Type:       UploadTypeMultipart,
		MimeType:   "multipart/form-data",
		DagSize:    &size,
		Structure:  carstat.Complete,
		Files:      []File{{Name: "a.txt", Type: "text/plain"}},
		Meta:       map[string]any{"origin": "test"},
		BackupURLs: []string{"file:///b/complete/x.car"},
		Pins:       []Pin{{Service: PinServiceCluster, Status: PinQueued}},
	}
	first, err := s.CreateUpload(ctx, in)
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	if first.ID == "" || in.ID != "" {
		t.Fatalf("ID should be assigned on the returned copy only")
	}

	got, err := s.GetUpload(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if got.ContentCID != "bafy-content" || *got.DagSize != 350 || got.Structure != carstat.Complete {
		t.Fatalf("unexpected record: %+v", got)
	}
	if len(got.Files) != 1 || got.Files[0].Name != "a.txt" {
		t.Fatalf("files: %+v", got.Files)
	}
	if got.Meta["origin"] != "test" {
		t.Fatalf("meta: %+v", got.Meta)
	}
	if len(got.Pins) != 1 || got.Pins[0].Status != PinQueued {
		t.Fatalf("pins: %+v", got.Pins)
	}
	if len(got.BackupURLs) != 1 {
		t.Fatalf("backup urls: %+v", got.BackupURLs)
	}

	second, err := s.CreateUpload(ctx, in)
	if err != nil {
		t.Fatalf("CreateUpload(2): %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected distinct records")
	}
	list, err := s.ListUploadsByCID(ctx, "bafy-content")
	if err != nil {
		t.Fatalf("ListUploadsByCID: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}

	if _, err := s.GetUpload(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v want ErrNotFound", err)
	}
}

func TestOpen_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "uploads.db")
	s, err := Open(&Config{SQLite: SQLiteConfig{Path: path}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if _, err := s.CreateUpload(context.Background(), &Upload{ContentCID: "c", SourceCID: "c", Type: UploadTypeCar, Structure: carstat.Partial}); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
}
