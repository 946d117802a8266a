package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kritzerenkrieg/FastDLX/internal/progress"
)

// Config defines configuration for the fastdlx CLI.
type Config struct {
	URL       string        `yaml:"url"`
	TargetDir string        `yaml:"target_dir"`
	SkipMaps  bool          `yaml:"skip_maps"`
	Quiet     bool          `yaml:"quiet"`
	LogFile   string        `yaml:"log_file"`
	ChunkSize int64         `yaml:"chunk_size"`
	Timeout   time.Duration `yaml:"timeout"`
	Retry     RetryConfig   `yaml:"retry"`
}

// RetryConfig defines per-file retry behavior. The delay schedule is
// linear: the wait before attempt k+1 is k * Delay.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		ChunkSize: 64 * 1024,
		Timeout:   30 * time.Second,
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    2 * time.Second,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with human-readable sizes and
// durations as strings.
type yamlConfig struct {
	URL       string          `yaml:"url"`
	TargetDir string          `yaml:"target_dir"`
	SkipMaps  bool            `yaml:"skip_maps"`
	Quiet     bool            `yaml:"quiet"`
	LogFile   string          `yaml:"log_file"`
	ChunkSize string          `yaml:"chunk_size"`
	Timeout   string          `yaml:"timeout"`
	Retry     yamlRetryConfig `yaml:"retry"`
}

type yamlRetryConfig struct {
	Attempts int    `yaml:"attempts"`
	Delay    string `yaml:"delay"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.URL != "" {
		cfg.URL = yc.URL
	}
	if yc.TargetDir != "" {
		cfg.TargetDir = yc.TargetDir
	}
	cfg.SkipMaps = yc.SkipMaps
	cfg.Quiet = yc.Quiet
	if yc.LogFile != "" {
		cfg.LogFile = yc.LogFile
	}
	if yc.ChunkSize != "" {
		size, err := progress.ParseBytes(yc.ChunkSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse chunk_size: %w", err)
		}
		cfg.ChunkSize = size
	}
	if yc.Timeout != "" {
		d, err := time.ParseDuration(yc.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Delay != "" {
		d, err := time.ParseDuration(yc.Retry.Delay)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.delay: %w", err)
		}
		cfg.Retry.Delay = d
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the FASTDLX_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("FASTDLX_URL"); v != "" {
		c.URL = v
	}
	if v := os.Getenv("FASTDLX_TARGET_DIR"); v != "" {
		c.TargetDir = v
	}
	if v := os.Getenv("FASTDLX_SKIP_MAPS"); v != "" {
		c.SkipMaps = v == "true" || v == "1"
	}
	if v := os.Getenv("FASTDLX_QUIET"); v != "" {
		c.Quiet = v == "true" || v == "1"
	}
	if v := os.Getenv("FASTDLX_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("FASTDLX_CHUNK_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse FASTDLX_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = size
	}
	if v := os.Getenv("FASTDLX_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse FASTDLX_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("FASTDLX_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse FASTDLX_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("FASTDLX_RETRY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse FASTDLX_RETRY_DELAY: %w", err)
		}
		c.Retry.Delay = d
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.TargetDir == "" {
		return errors.New("config: target_dir is required")
	}
	if c.Retry.Attempts <= 0 {
		return errors.New("config: retry.attempts must be positive")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: chunk_size must be positive")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.URL != "" {
		c.URL = override.URL
	}
	if override.TargetDir != "" {
		c.TargetDir = override.TargetDir
	}
	if override.SkipMaps {
		c.SkipMaps = override.SkipMaps
	}
	if override.Quiet {
		c.Quiet = override.Quiet
	}
	if override.LogFile != "" {
		c.LogFile = override.LogFile
	}
	if override.ChunkSize != 0 {
		c.ChunkSize = override.ChunkSize
	}
	if override.Timeout != 0 {
		c.Timeout = override.Timeout
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Delay != 0 {
		c.Retry.Delay = override.Retry.Delay
	}
	return c
}
