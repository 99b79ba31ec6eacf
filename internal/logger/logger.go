// Package logger builds the slog loggers used by the carpin binaries.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logger configuration.
type Config struct {
	Level  string `mapstructure:"level" yaml:"level,omitempty"`   // DEBUG, INFO, WARN, ERROR
	Format string `mapstructure:"format" yaml:"format,omitempty"` // text, json
	Output string `mapstructure:"output" yaml:"output,omitempty"` // stdout, stderr, or file path
}

// ApplyDefaults fills in missing values.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "INFO"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

// Validate checks level and format names.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid log format %q", c.Format)
	}
}

// ParseLevel converts a level name to a slog.Level. Empty means INFO.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
}

// New builds a logger from cfg. The returned close function releases the
// log file when Output names one; it is a no-op otherwise.
func New(cfg Config) (*slog.Logger, func() error, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	closeFn := func() error { return nil }
	var out io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
		}
		out = f
		closeFn = f.Close
	}
	return NewWithWriter(out, cfg.Level, cfg.Format), closeFn, nil
}

// NewWithWriter builds a logger writing to w. Invalid level or format names
// fall back to INFO and text. This is primarily useful for testing.
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	lvl, _ := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Init builds a logger from cfg and installs it as slog's default.
func Init(cfg Config) (*slog.Logger, func() error, error) {
	l, closeFn, err := New(cfg)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(l)
	return l, closeFn, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
