// Package config provides configuration types and defaults for switchboard.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/renholm/switchboard/internal/log"
)

// Config holds all configuration options for switchboard.
type Config struct {
	ManifestDirs []string      `mapstructure:"manifest_dirs"`
	DataDir      string        `mapstructure:"data_dir"`
	Journal      JournalConfig `mapstructure:"journal"`
	Cache        CacheConfig   `mapstructure:"cache"`
	Tracing      TracingConfig `mapstructure:"tracing"`
	Watch        WatchConfig   `mapstructure:"watch"`
}

// JournalConfig controls the sqlite audit trail of dispatch table
// mutations.
type JournalConfig struct {
	// Enabled controls whether registrations and releases are journaled.
	// Default: true
	Enabled bool `mapstructure:"enabled"`

	// Path overrides the journal database location.
	// Default: <data_dir>/journal.db
	Path string `mapstructure:"path"`
}

// CacheConfig controls the dispatch resolution cache.
type CacheConfig struct {
	// Enabled controls whether resolutions are cached between lookups.
	// Default: true
	Enabled bool `mapstructure:"enabled"`

	// TTL is how long a cached resolution stays valid without being
	// invalidated by a table mutation.
	// Default: 5m
	TTL time.Duration `mapstructure:"ttl"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for the "file" exporter.
	// Default: <data_dir>/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for the "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// 1.0 = all traces, 0.1 = 10% of traces
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// WatchConfig holds file watcher tuning.
type WatchConfig struct {
	// Debounce is the quiet period after a filesystem event before
	// manifests reload. Rapid bursts of writes coalesce into one reload.
	// Default: 250ms
	Debounce time.Duration `mapstructure:"debounce"`
}

// DefaultManifestDirs returns the manifest search path used when the
// config names none.
func DefaultManifestDirs() []string {
	return []string{"manifests"}
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		ManifestDirs: DefaultManifestDirs(),
		DataDir:      "", // Resolved against the working directory at runtime
		Journal: JournalConfig{
			Enabled: true,
			Path:    "", // Derived from data_dir at runtime
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     5 * time.Minute,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from data_dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Watch: WatchConfig{
			Debounce: 250 * time.Millisecond,
		},
	}
}

// Validate checks the full configuration for errors. Empty values fall
// back to defaults and are always valid.
func Validate(cfg Config) error {
	if err := ValidateManifestDirs(cfg.ManifestDirs); err != nil {
		return err
	}
	if err := ValidateTracing(cfg.Tracing); err != nil {
		return err
	}
	if err := ValidateWatch(cfg.Watch); err != nil {
		return err
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %v", cfg.Cache.TTL)
	}
	return nil
}

// ValidateManifestDirs checks the manifest directory list for errors.
// Returns nil if the list is empty (will use defaults).
func ValidateManifestDirs(dirs []string) error {
	for i, dir := range dirs {
		if dir == "" {
			return fmt.Errorf("manifest_dirs[%d]: directory must not be empty", i)
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
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate endpoint requirements when tracing is enabled. The
	// file path has a data-dir derived default, so only otlp can be
	// under-specified.
	if tracing.Enabled {
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// ValidateWatch checks watcher configuration for errors.
func ValidateWatch(watch WatchConfig) error {
	if watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %v", watch.Debounce)
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Switchboard Configuration

# Directories scanned for operator manifests (*.yaml, *.yml)
manifest_dirs:
  - manifests

# Data directory for the journal database and traces
# Default: .switchboard next to the config file
# data_dir: /path/to/.switchboard

# Registration journal - an audit trail of every dispatch table mutation
journal:
  enabled: true
  # path: /custom/journal.db  # Default: <data_dir>/journal.db

# Dispatch resolution cache
cache:
  enabled: true
  ttl: 5m

# File watcher tuning (used by 'switchboard watch')
watch:
  debounce: 250ms

# Distributed tracing configuration
# Enables end-to-end visibility into manifest loads and dispatch lookups
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: .switchboard/traces/traces.jsonl  # Output file for file exporter
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
#
# Example: Send traces to Jaeger via OTLP
# tracing:
#   enabled: true
#   exporter: otlp
#   otlp_endpoint: jaeger.internal:4317
#   sample_rate: 0.1  # Sample 10% of traces
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
