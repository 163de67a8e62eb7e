package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/recordstore/recordstore/internal/metrics"
	"github.com/recordstore/recordstore/internal/store"
)

// Configuration represents the complete application configuration.
type Configuration struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Watcher   WatcherConfig   `yaml:"watcher"`
	Aggregate AggregateConfig `yaml:"aggregate"`
	Metrics   metrics.Config  `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig represents HTTP server settings.
type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	EnableCORS   bool          `yaml:"enable_cors"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Backend is "file" or "s3"
	Backend string          `yaml:"backend"`
	File    FileStoreConfig `yaml:"file"`
	S3      store.S3Config  `yaml:"s3"`
}

// FileStoreConfig represents the file backend settings.
type FileStoreConfig struct {
	Path string `yaml:"path"`
}

// WatcherConfig represents change-watcher settings.
type WatcherConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Debounce     time.Duration `yaml:"debounce"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// AggregateConfig represents derived-aggregate settings.
type AggregateConfig struct {
	// Field is the numeric record field averaged by the stats endpoint
	Field string `yaml:"field"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Configuration {
	return &Configuration{
		Server: ServerConfig{
			Address:      "localhost:8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			EnableCORS:   false,
		},
		Store: StoreConfig{
			Backend: "file",
			File: FileStoreConfig{
				Path: "data/records.json",
			},
			S3: store.DefaultS3Config(),
		},
		Watcher: WatcherConfig{
			Enabled:      true,
			Debounce:     100 * time.Millisecond,
			PollInterval: 10 * time.Second,
		},
		Aggregate: AggregateConfig{
			Field: "price",
		},
		Metrics: metrics.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// LoadFromEnv loads configuration overrides from environment variables.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("RECORDSTORE_ADDRESS"); val != "" {
		c.Server.Address = val
	}
	if val := os.Getenv("RECORDSTORE_STORE_BACKEND"); val != "" {
		c.Store.Backend = val
	}
	if val := os.Getenv("RECORDSTORE_STORE_PATH"); val != "" {
		c.Store.File.Path = val
	}
	if val := os.Getenv("RECORDSTORE_S3_BUCKET"); val != "" {
		c.Store.S3.Bucket = val
	}
	if val := os.Getenv("RECORDSTORE_S3_KEY"); val != "" {
		c.Store.S3.Key = val
	}
	if val := os.Getenv("RECORDSTORE_S3_REGION"); val != "" {
		c.Store.S3.Region = val
	}
	if val := os.Getenv("RECORDSTORE_S3_ENDPOINT"); val != "" {
		c.Store.S3.Endpoint = val
	}
	if val := os.Getenv("RECORDSTORE_WATCHER_ENABLED"); val != "" {
		c.Watcher.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("RECORDSTORE_POLL_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Watcher.PollInterval = d
		}
	}
	if val := os.Getenv("RECORDSTORE_AGGREGATE_FIELD"); val != "" {
		c.Aggregate.Field = val
	}
	if val := os.Getenv("RECORDSTORE_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("RECORDSTORE_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("RECORDSTORE_LOG_FORMAT"); val != "" {
		c.Logging.Format = val
	}
	return nil
}

// Validate validates the configuration.
func (c *Configuration) Validate() error {
	switch c.Store.Backend {
	case "file":
		if c.Store.File.Path == "" {
			return fmt.Errorf("store.file.path must be set for the file backend")
		}
	case "s3":
		if c.Store.S3.Bucket == "" {
			return fmt.Errorf("store.s3.bucket must be set for the s3 backend")
		}
	default:
		return fmt.Errorf("invalid store.backend: %s (must be file or s3)", c.Store.Backend)
	}

	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Aggregate.Field == "" {
		return fmt.Errorf("aggregate.field must not be empty")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.ToUpper(c.Logging.Level) == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid logging.level: %s (must be one of: %s)",
			c.Logging.Level, strings.Join(validLogLevels, ", "))
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid logging.format: %s (must be text or json)", c.Logging.Format)
	}
	return nil
}
