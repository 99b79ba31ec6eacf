package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"xdao.co/carpin/db"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	data := t.TempDir()
	t.Setenv("XDG_DATA_HOME", data)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upload.LocalAddThreshold != DefaultLocalAddThreshold {
		t.Fatalf("threshold: got %d want %d", cfg.Upload.LocalAddThreshold, DefaultLocalAddThreshold)
	}
	if cfg.Pinner.Kind != PinnerBlockpin || cfg.Backup.Kind != BackupNone {
		t.Fatalf("unexpected kinds: pinner=%q backup=%q", cfg.Pinner.Kind, cfg.Backup.Kind)
	}
	if cfg.Database.Type != db.DatabaseTypeSQLite || !strings.HasPrefix(cfg.Database.SQLite.Path, data) {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}
	got := cfg.Pinner.Blockstore.Backends
	if len(got) != 1 || got[0].Name != "badger" || got[0].Config["dir"] != filepath.Join(data, "carpin", "blocks") {
		t.Fatalf("unexpected blockstore defaults: %+v", got)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
database:
  type: sqlite
  sqlite:
    path: ":memory:"
upload:
  local_add_threshold: 4MiB
  call_timeout: 30s
pinner:
  kind: rpc
  rpc:
    target: "127.0.0.1:7402"
    max_message_size: 128MiB
backup:
  kind: s3
  s3:
    bucket: carpin-backups
    region: us-east-1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upload.LocalAddThreshold != 4<<20 {
		t.Fatalf("threshold: got %d", cfg.Upload.LocalAddThreshold)
	}
	if cfg.Upload.CallTimeout != 30*time.Second {
		t.Fatalf("call timeout: got %v", cfg.Upload.CallTimeout)
	}
	if cfg.Pinner.Kind != PinnerRPC || cfg.Pinner.RPC.Target != "127.0.0.1:7402" || cfg.Pinner.RPC.MaxMessageSize != 128<<20 {
		t.Fatalf("unexpected pinner: %+v", cfg.Pinner)
	}
	if cfg.Backup.S3.Bucket != "carpin-backups" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  sqlite:
    path: ":memory:"
upload:
  local_add_threshold: 1MiB
`)
	t.Setenv("CARPIN_UPLOAD_LOCAL_ADD_THRESHOLD", "8MiB")
	t.Setenv("CARPIN_BACKUP_KIND", "dir")
	t.Setenv("CARPIN_BACKUP_DIR", "/srv/backups")
	t.Setenv("CARPIN_PINNER_KIND", "kubo")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upload.LocalAddThreshold != 8<<20 {
		t.Fatalf("threshold: got %d want %d", cfg.Upload.LocalAddThreshold, 8<<20)
	}
	if cfg.Backup.Kind != BackupDir || cfg.Backup.Dir != "/srv/backups" || cfg.Pinner.Kind != PinnerKubo {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.Backup, cfg.Pinner)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad pinner":    "pinner:\n  kind: cluster\n",
		"rpc no target": "pinner:\n  kind: rpc\n",
		"s3 no bucket":  "backup:\n  kind: s3\n",
		"dir no path":   "backup:\n  kind: dir\n",
		"bad size":      "upload:\n  local_add_threshold: lots\n",
		"bad level":     "logging:\n  level: chatty\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	cfg := Default()
	cfg.Upload.LocalAddThreshold = 3 << 20
	cfg.Backup.Kind = BackupDir
	cfg.Backup.Dir = "/var/backups/carpin"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode: got %v want 0600", info.Mode().Perm())
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Upload.LocalAddThreshold != 3<<20 || got.Backup.Dir != "/var/backups/carpin" {
		t.Fatalf("round trip mismatch: %+v %+v", got.Upload, got.Backup)
	}
}

func TestByteSize(t *testing.T) {
	b, err := ParseByteSize("2.5 MiB")
	if err != nil {
		t.Fatalf("ParseByteSize: %v", err)
	}
	if b != DefaultLocalAddThreshold {
		t.Fatalf("got %d want %d", b, DefaultLocalAddThreshold)
	}
	if b.String() != "2.5 MiB" {
		t.Fatalf("String: got %q", b.String())
	}
	if v, _ := ByteSize(1000001).MarshalYAML(); v != "1000001" {
		t.Fatalf("inexact sizes should marshal as numbers, got %v", v)
	}
	if _, err := ParseByteSize("many"); err == nil {
		t.Fatalf("expected error")
	}
}
