package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/paulschiretz/pgl-copy/pkg/buildinfo"
	"github.com/paulschiretz/pgl-copy/pkg/ignore"
	"github.com/paulschiretz/pgl-copy/pkg/pathcompress"
	"github.com/paulschiretz/pgl-copy/pkg/plog"
	"github.com/paulschiretz/pgl-copy/pkg/util"
)

// ConfigFileName is the name of the configuration file.
const ConfigFileName = "pgl-copy.config.json"

type PerformanceConfig struct {
	Workers              int `json:"workers" comment:"Number of copy workers. 0 selects the host CPU count."`
	LargeFileThresholdMB int `json:"largeFileThresholdMB" comment:"Files above this size are copied through the streaming path. Default is 10."`
	BufferSizeKB         int `json:"bufferSizeKB" comment:"Size of the I/O buffer in kilobytes for streaming copies. Default is 256 (256KB)."`
	RetryCount           int `json:"retryCount"`
	RetryWaitSeconds     int `json:"retryWaitSeconds"`
}

type IgnoreConfig struct {
	// Note: omitempty is intentionally not used for user-configurable slices
	// so that they appear in the generated config file for better discoverability.
	// Names match any path component (directory or file) by exact name.
	Names []string `json:"names"`
	// Patterns are normalized relative path prefixes; a trailing '/' marks
	// a folder rule. They are merged with the patterns from the ignore file.
	Patterns []string `json:"patterns"`
}

type ArchiveConfig struct {
	Enabled bool   `json:"enabled"`
	Format  string `json:"format"`
}

type Config struct {
	Version  string            `json:"version"`
	Source   string            `json:"-"` // Never added to config file
	Target   string            `json:"-"` // Never added to config file
	LogLevel string            `json:"logLevel"`
	Perf     PerformanceConfig `json:"performance"`
	Ignore   IgnoreConfig      `json:"ignore"`
	Archive  ArchiveConfig     `json:"archive"`
}

// NewDefault creates and returns a Config struct with sensible default values.
func NewDefault() Config {
	return Config{
		Version:  buildinfo.Version,
		Source:   "", // Intentionally empty to force user configuration.
		Target:   "", // Intentionally empty to force user configuration.
		LogLevel: "info",
		Perf: PerformanceConfig{
			Workers:              0,   // Auto-select from CPU count.
			LargeFileThresholdMB: 10,  // Streaming path for anything above 10MB.
			BufferSizeKB:         256, // Default to 256KB buffer. Keep it between 64KB-4MB
			RetryCount:           3,   // Default retries on failure.
			RetryWaitSeconds:     5,   // Default wait time between retries.
		},
		Ignore: IgnoreConfig{
			Names:    ignore.DefaultIgnoreNames,
			Patterns: []string{},
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Format:  "tar.zst",
		},
	}
}

// Load attempts to load a configuration from "pgl-copy.config.json" in the
// source directory. If the file doesn't exist, it returns the default config
// without an error. If the file exists but fails to parse, it returns an
// error and a zero-value config.
func Load(sourceDir string) (Config, error) {
	absSourcePath, err := filepath.Abs(sourceDir)
	if err != nil {
		return Config{}, fmt.Errorf("could not determine absolute path for load directory %s: %w", sourceDir, err)
	}

	configPath := filepath.Join(absSourcePath, ConfigFileName)

	file, err := os.Open(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDefault(), nil // Config file doesn't exist, which is a normal case.
		}
		return Config{}, fmt.Errorf("error opening config file %s: %w", configPath, err)
	}
	defer file.Close()

	plog.Info("Loading configuration", "path", configPath)
	// Start with default values, then overwrite with the file's content.
	// This makes the config loading resilient to missing fields in the JSON file.
	config := NewDefault()
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return Config{}, fmt.Errorf("error parsing config file %s: %w", configPath, err)
	}

	// The loaded file may predate the running binary; the struct carries
	// the binary's version from here on.
	if config.Version != buildinfo.Version {
		config.Version = buildinfo.Version
	}
	return config, nil
}

// Generate creates or overwrites a default pgl-copy.config.json file in the
// specified source directory.
func Generate(configToGenerate Config, sourceDir string) error {
	configPath := filepath.Join(sourceDir, ConfigFileName)
	jsonData, err := json.MarshalIndent(configToGenerate, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal default config to JSON: %w", err)
	}

	if err := os.WriteFile(configPath, jsonData, util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	plog.Info("Successfully saved config file", "path", configPath)
	return nil
}

// Validate checks the configuration for logical errors and inconsistencies.
// It cleans and expands the source and target paths in place.
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("source path cannot be empty")
	}
	if c.Target == "" {
		return fmt.Errorf("target path cannot be empty")
	}

	var err error

	c.Source, err = util.ExpandPath(c.Source)
	if err != nil {
		return fmt.Errorf("could not expand source path: %w", err)
	}
	c.Source = filepath.Clean(c.Source)
	if _, err := os.Stat(c.Source); os.IsNotExist(err) {
		return fmt.Errorf("source path '%s' does not exist", c.Source)
	}

	c.Target, err = util.ExpandPath(c.Target)
	if err != nil {
		return fmt.Errorf("could not expand target path: %w", err)
	}
	c.Target = filepath.Clean(c.Target)

	if c.Source == c.Target {
		return fmt.Errorf("source and target cannot be the same path")
	}

	if c.Perf.Workers < 0 {
		return fmt.Errorf("performance.workers cannot be negative")
	}
	if c.Perf.LargeFileThresholdMB < 1 {
		return fmt.Errorf("performance.largeFileThresholdMB must be at least 1")
	}
	if c.Perf.BufferSizeKB < 64 || c.Perf.BufferSizeKB > 4096 {
		return fmt.Errorf("performance.bufferSizeKB must be between 64 and 4096")
	}
	if c.Perf.RetryCount < 0 {
		return fmt.Errorf("performance.retryCount cannot be negative")
	}
	if c.Perf.RetryWaitSeconds < 0 {
		return fmt.Errorf("performance.retryWaitSeconds cannot be negative")
	}

	if c.Archive.Enabled {
		if _, err := pathcompress.ParseFormat(c.Archive.Format); err != nil {
			return fmt.Errorf("invalid archive format: %w", err)
		}
	}
	return nil
}

// RetryWait returns the configured retry wait as a duration.
func (c *Config) RetryWait() time.Duration {
	return time.Duration(c.Perf.RetryWaitSeconds) * time.Second
}

// LargeFileThreshold returns the streaming threshold in bytes.
func (c *Config) LargeFileThreshold() int64 {
	return int64(c.Perf.LargeFileThresholdMB) * 1024 * 1024
}

// BufferSize returns the I/O buffer size in bytes.
func (c *Config) BufferSize() int64 {
	return int64(c.Perf.BufferSizeKB) * 1024
}
