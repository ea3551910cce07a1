// Package config loads and validates the pipeline configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bhmob/bhlake/internal/errors"
)

// Config represents the complete pipeline configuration.
type Config struct {
	// DataSources configures the upstream feeds, keyed by source name.
	DataSources map[string]SourceConfig `yaml:"data_sources"`

	// Layers configures the bronze/silver/gold storage layers.
	Layers LayersConfig `yaml:"layers"`

	// Logging configures the pipeline logger.
	Logging LoggingConfig `yaml:"logging"`

	// Pipeline configures orchestration behavior.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Fetch configures the HTTP fetch strategy.
	Fetch FetchConfig `yaml:"fetch"`

	// Storage configures parquet output.
	Storage StorageConfig `yaml:"storage"`
}

// SourceConfig describes one upstream data source.
type SourceConfig struct {
	// Enabled controls whether the source participates in a run.
	// A disabled source is treated as absent.
	Enabled bool `yaml:"enabled"`

	// URL is the remote location of the source data.
	URL string `yaml:"url"`

	// File is an optional local file path, used instead of URL when set.
	File string `yaml:"file"`
}

// LayersConfig holds per-layer storage settings.
type LayersConfig struct {
	Bronze LayerConfig `yaml:"bronze"`
	Silver LayerConfig `yaml:"silver"`
	Gold   LayerConfig `yaml:"gold"`
}

// LayerConfig describes one storage layer.
type LayerConfig struct {
	// Path is the layer's base directory.
	Path string `yaml:"path"`

	// Format is the table file format. Only "parquet" is supported.
	Format string `yaml:"format"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`

	// File duplicates log output to the given path when set.
	File string `yaml:"file"`
}

// PipelineConfig configures orchestration behavior.
type PipelineConfig struct {
	// ContinueOnError keeps executing later stages after a stage failure.
	ContinueOnError *bool `yaml:"continue_on_error"`

	// HotspotSpeedThreshold is the speed below which a position counts
	// toward the slow-traffic hotspot grid.
	HotspotSpeedThreshold float64 `yaml:"hotspot_speed_threshold"`
}

// FetchConfig configures the HTTP fetch strategy.
type FetchConfig struct {
	// TimeoutSec is the per-attempt timeout in seconds.
	TimeoutSec int `yaml:"timeout_sec"`

	// Profiles is the ordered list of client profiles to try.
	Profiles []string `yaml:"profiles"`

	// Retries is the attempt count for the simple retry strategy.
	Retries int `yaml:"retries"`
}

// StorageConfig configures parquet output.
type StorageConfig struct {
	Compression CompressionConfig `yaml:"compression"`
}

// CompressionConfig configures parquet compression.
type CompressionConfig struct {
	// Algorithm is the compression algorithm: snappy, zstd, lz4, gzip, none.
	Algorithm string `yaml:"algorithm"`

	// Level is the compression level (for zstd: 1-22).
	Level int `yaml:"level"`
}

// DefaultConfig returns a configuration with sane defaults and no sources.
func DefaultConfig() *Config {
	cfg := &Config{
		DataSources: map[string]SourceConfig{},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a configuration file. A missing or unreadable
// file is fatal to the run and reported as ErrInvalidConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %v: %w", path, err, errors.ErrInvalidConfig)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %v: %w", path, err, errors.ErrInvalidConfig)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Layers.Bronze.Path == "" {
		c.Layers.Bronze.Path = "data/bronze"
	}
	if c.Layers.Silver.Path == "" {
		c.Layers.Silver.Path = "data/silver"
	}
	if c.Layers.Gold.Path == "" {
		c.Layers.Gold.Path = "data/gold"
	}
	if c.Layers.Bronze.Format == "" {
		c.Layers.Bronze.Format = "parquet"
	}
	if c.Layers.Silver.Format == "" {
		c.Layers.Silver.Format = "parquet"
	}
	if c.Layers.Gold.Format == "" {
		c.Layers.Gold.Format = "parquet"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Pipeline.ContinueOnError == nil {
		t := true
		c.Pipeline.ContinueOnError = &t
	}
	if c.Pipeline.HotspotSpeedThreshold == 0 {
		c.Pipeline.HotspotSpeedThreshold = 10.0
	}
	if c.Fetch.TimeoutSec == 0 {
		c.Fetch.TimeoutSec = 30
	}
	if c.Fetch.Retries == 0 {
		c.Fetch.Retries = 3
	}
	if c.Storage.Compression.Algorithm == "" {
		c.Storage.Compression.Algorithm = "zstd"
	}
	if c.Storage.Compression.Level == 0 {
		c.Storage.Compression.Level = 3
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	for _, layer := range []struct {
		name string
		cfg  LayerConfig
	}{
		{"bronze", c.Layers.Bronze},
		{"silver", c.Layers.Silver},
		{"gold", c.Layers.Gold},
	} {
		if layer.cfg.Format != "parquet" {
			return fmt.Errorf("layer %s: unsupported format %q: %w",
				layer.name, layer.cfg.Format, errors.ErrInvalidConfig)
		}
	}
	for name, src := range c.DataSources {
		if src.Enabled && src.URL == "" && src.File == "" {
			return fmt.Errorf("data source %s: url or file required: %w",
				name, errors.ErrInvalidConfig)
		}
	}
	if c.Pipeline.HotspotSpeedThreshold < 0 {
		return fmt.Errorf("hotspot_speed_threshold must be non-negative: %w",
			errors.ErrInvalidConfig)
	}
	return nil
}

// ContinueOnError reports whether later stages run after a stage failure.
// The default policy is to continue.
func (c *Config) ContinueOnError() bool {
	if c.Pipeline.ContinueOnError == nil {
		return true
	}
	return *c.Pipeline.ContinueOnError
}

// Source returns the named data source and whether it is enabled for this
// run. Disabled or unconfigured sources are absent.
func (c *Config) Source(name string) (SourceConfig, bool) {
	src, ok := c.DataSources[name]
	if !ok || !src.Enabled {
		return SourceConfig{}, false
	}
	return src, true
}

// FetchTimeout returns the per-attempt fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSec) * time.Second
}
