// Package config loads carpin configuration from a YAML file and CARPIN_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"xdao.co/carpin/backup/s3backup"
	"xdao.co/carpin/db"
	"xdao.co/carpin/internal/logger"
	"xdao.co/carpin/storage/storeconfig"
)

// DefaultLocalAddThreshold is the archive size above which replication
// runs in the background (2.5 MiB).
const DefaultLocalAddThreshold ByteSize = 2621440

// Pinner kinds.
const (
	PinnerBlockpin = "blockpin"
	PinnerKubo     = "kubo"
	PinnerRPC      = "rpc"
)

// Backup kinds. An empty kind disables backups.
const (
	BackupNone = "none"
	BackupS3   = "s3"
	BackupDir  = "dir"
)

// Config is the carpin configuration.
type Config struct {
	Logging  logger.Config `mapstructure:"logging" yaml:"logging"`
	Database db.Config     `mapstructure:"database" yaml:"database"`
	Upload   UploadConfig  `mapstructure:"upload" yaml:"upload"`
	Pinner   PinnerConfig  `mapstructure:"pinner" yaml:"pinner"`
	Backup   BackupConfig  `mapstructure:"backup" yaml:"backup"`
	Metrics  MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Server   ServerConfig  `mapstructure:"server" yaml:"server"`
}

// UploadConfig tunes the upload pipeline.
type UploadConfig struct {
	// LocalAddThreshold: archives strictly larger than this replicate in the
	// background, smaller ones synchronously.
	LocalAddThreshold ByteSize `mapstructure:"local_add_threshold" yaml:"local_add_threshold"`
	// CallTimeout bounds each collaborator call. Zero means no bound.
	CallTimeout time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
}

// PinnerConfig selects the replication collaborator.
type PinnerConfig struct {
	Kind       string             `mapstructure:"kind" yaml:"kind"`
	Blockstore storeconfig.Config `mapstructure:"blockstore" yaml:"blockstore,omitempty"`
	Kubo       KuboConfig         `mapstructure:"kubo" yaml:"kubo,omitempty"`
	RPC        RPCConfig          `mapstructure:"rpc" yaml:"rpc,omitempty"`
}

// KuboConfig locates the local ipfs binary and repository.
type KuboConfig struct {
	Bin      string `mapstructure:"bin" yaml:"bin,omitempty"`
	RepoPath string `mapstructure:"repo_path" yaml:"repo_path,omitempty"`
}

// RPCConfig points at a carpin-pind daemon.
type RPCConfig struct {
	Target         string        `mapstructure:"target" yaml:"target,omitempty"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout,omitempty"`
	MaxMessageSize ByteSize      `mapstructure:"max_message_size" yaml:"max_message_size,omitempty"`
}

// BackupConfig selects the optional backup collaborator.
type BackupConfig struct {
	Kind string          `mapstructure:"kind" yaml:"kind,omitempty"`
	Dir  string          `mapstructure:"dir" yaml:"dir,omitempty"`
	S3   s3backup.Config `mapstructure:"s3" yaml:"s3,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen,omitempty"`
}

// ServerConfig configures carpin-pind.
type ServerConfig struct {
	Listen         string   `mapstructure:"listen" yaml:"listen,omitempty"`
	MaxMessageSize ByteSize `mapstructure:"max_message_size" yaml:"max_message_size,omitempty"`
}

// envKeys are the scalar keys that CARPIN_* variables may override.
var envKeys = []string{
	"logging.level", "logging.format", "logging.output",
	"database.type", "database.sqlite.path",
	"database.postgres.host", "database.postgres.port", "database.postgres.database",
	"database.postgres.user", "database.postgres.password", "database.postgres.sslmode",
	"upload.local_add_threshold", "upload.call_timeout",
	"pinner.kind", "pinner.kubo.bin", "pinner.kubo.repo_path",
	"pinner.rpc.target", "pinner.rpc.dial_timeout", "pinner.rpc.max_message_size",
	"backup.kind", "backup.dir",
	"backup.s3.bucket", "backup.s3.region", "backup.s3.endpoint",
	"backup.s3.key_prefix", "backup.s3.force_path_style",
	"metrics.enabled", "metrics.listen",
	"server.listen", "server.max_message_size",
}

// Load reads configPath (or the default location when empty), applies
// CARPIN_* overrides and defaults, and validates the result. A missing
// file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	// CARPIN_UPLOAD_LOCAL_ADD_THRESHOLD=4MiB
	v.SetEnvPrefix("CARPIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(ConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills in missing values.
func (c *Config) ApplyDefaults() {
	c.Logging.ApplyDefaults()
	c.Database.ApplyDefaults()

	if c.Upload.LocalAddThreshold == 0 {
		c.Upload.LocalAddThreshold = DefaultLocalAddThreshold
	}
	if c.Upload.CallTimeout == 0 {
		c.Upload.CallTimeout = 5 * time.Minute
	}

	if c.Pinner.Kind == "" {
		c.Pinner.Kind = PinnerBlockpin
	}
	if c.Pinner.Kind == PinnerBlockpin && len(c.Pinner.Blockstore.Backends) == 0 {
		c.Pinner.Blockstore.Backends = []storeconfig.BackendConfig{{
			Name:   "badger",
			Config: map[string]string{"dir": filepath.Join(DataDir(), "blocks")},
		}}
	}
	if c.Pinner.RPC.DialTimeout == 0 {
		c.Pinner.RPC.DialTimeout = 10 * time.Second
	}
	if c.Pinner.RPC.MaxMessageSize == 0 {
		c.Pinner.RPC.MaxMessageSize = 64 << 20
	}

	if c.Backup.Kind == "" {
		c.Backup.Kind = BackupNone
	}

	if c.Metrics.Listen == "" {
		c.Metrics.Listen = "127.0.0.1:9402"
	}

	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:7402"
	}
	if c.Server.MaxMessageSize == 0 {
		c.Server.MaxMessageSize = 64 << 20
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if c.Upload.LocalAddThreshold == 0 {
		return errors.New("upload: local_add_threshold must be positive")
	}
	if c.Upload.CallTimeout < 0 {
		return errors.New("upload: call_timeout must not be negative")
	}

	switch c.Pinner.Kind {
	case PinnerBlockpin:
		if err := c.Pinner.Blockstore.Validate(); err != nil {
			return fmt.Errorf("pinner: %w", err)
		}
	case PinnerKubo:
	case PinnerRPC:
		if c.Pinner.RPC.Target == "" {
			return errors.New("pinner: rpc target is required")
		}
	default:
		return fmt.Errorf("pinner: unsupported kind %q", c.Pinner.Kind)
	}

	switch c.Backup.Kind {
	case BackupNone:
	case BackupDir:
		if c.Backup.Dir == "" {
			return errors.New("backup: dir is required")
		}
	case BackupS3:
		if c.Backup.S3.Bucket == "" {
			return errors.New("backup: s3 bucket is required")
		}
	default:
		return fmt.Errorf("backup: unsupported kind %q", c.Backup.Kind)
	}
	return nil
}

// Save writes cfg to path as YAML with owner-only permissions, since the
// file may hold database credentials.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ConfigDir is $XDG_CONFIG_HOME/carpin, falling back to ~/.config/carpin.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "carpin")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "carpin")
}

// DefaultConfigPath is the file Load reads when no path is given.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir is $XDG_DATA_HOME/carpin, falling back to ~/.local/share/carpin.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "carpin")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "carpin")
}
