// Package config provides configuration types and defaults for observerkit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zjrosen/observerkit/internal/log"
)

// Config holds all configuration options for observerkit.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// LogConfig controls the category logger.
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info (default), warn, error
	File  string `mapstructure:"file"`  // empty disables file logging unless --debug is set
}

// DispatchConfig selects where observer handlers run.
type DispatchConfig struct {
	// Async runs handlers on an OperationQueue instead of the posting goroutine.
	Async     bool `mapstructure:"async"`
	Workers   int  `mapstructure:"workers"`    // 1 keeps deliveries serial and FIFO
	QueueSize int  `mapstructure:"queue_size"` // pending deliveries before drops
}

// WatchConfig configures the file watcher behind `observerkit watch`.
type WatchConfig struct {
	Paths        []string      `mapstructure:"paths"`
	Debounce     time.Duration `mapstructure:"debounce"`
	DedupeWindow time.Duration `mapstructure:"dedupe_window"`
}

// TracingConfig holds OpenTelemetry configuration for notification posts.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/observerkit/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/observerkit/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "observerkit", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Level: "info",
		},
		Dispatch: DispatchConfig{
			Async:     false,
			Workers:   1,
			QueueSize: 1024,
		},
		Watch: WatchConfig{
			Paths:        []string{"."},
			Debounce:     100 * time.Millisecond,
			DedupeWindow: 2 * time.Second,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from home dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// Validate checks every section and returns the first error found.
func Validate(cfg Config) error {
	if err := ValidateLog(cfg.Log); err != nil {
		return err
	}
	if err := ValidateDispatch(cfg.Dispatch); err != nil {
		return err
	}
	if err := ValidateWatch(cfg.Watch); err != nil {
		return err
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateLog checks the log level name.
func ValidateLog(l LogConfig) error {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("log.level must be \"debug\", \"info\", \"warn\", or \"error\", got %q", l.Level)
	}
}

// ValidateDispatch checks worker and queue sizing. Zero values use defaults.
func ValidateDispatch(d DispatchConfig) error {
	if d.Workers < 0 {
		return fmt.Errorf("dispatch.workers must not be negative, got %d", d.Workers)
	}
	if d.QueueSize < 0 {
		return fmt.Errorf("dispatch.queue_size must not be negative, got %d", d.QueueSize)
	}
	return nil
}

// ValidateWatch checks watcher timings and paths.
func ValidateWatch(w WatchConfig) error {
	if w.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", w.Debounce)
	}
	if w.DedupeWindow < 0 {
		return fmt.Errorf("watch.dedupe_window must not be negative, got %s", w.DedupeWindow)
	}
	for i, p := range w.Paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("watch.paths[%d]: path is empty", i)
		}
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# observerkit configuration

# Logging
log:
  level: info      # debug, info, warn, error
  # file: debug.log

# Where observer handlers run
dispatch:
  async: false     # true runs handlers on a worker queue instead of the poster
  workers: 1       # 1 keeps deliveries serial and in order
  queue_size: 1024 # pending deliveries before new ones are dropped

# File watcher used by 'observerkit watch'
watch:
  paths:
    - .
  debounce: 100ms        # coalesce bursts of events for the same path
  dedupe_window: 2s      # suppress identical events repeated inside this window

# Tracing of notification posts
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/observerkit/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
