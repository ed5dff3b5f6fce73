package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/skydb/pkg/codec"
	"github.com/ssargent/skydb/pkg/storage"
)

// Config represents the skydb configuration
type Config struct {
	DataDir string  `yaml:"data_dir"`
	Codec   Codec   `yaml:"codec"`
	Store   Store   `yaml:"store"`
	Storage Storage `yaml:"storage"`
	Logging Logging `yaml:"logging"`
}

// Codec selects the event wire layout
type Codec struct {
	Layout string `yaml:"layout"` // varint or fixed
}

// Store configures the segment log
type Store struct {
	FsyncInterval  time.Duration `yaml:"fsync_interval"`
	BufferSize     int           `yaml:"buffer_size"`
	MaxSegmentSize int64         `yaml:"max_segment_size"`
}

// Storage configures the pebble path storage
type Storage struct {
	Compression string `yaml:"compression"` // snappy or none
	Sync        bool   `yaml:"sync"`
}

// Logging contains logging configuration
type Logging struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Codec: Codec{
			Layout: codec.LayoutVarint.String(),
		},
		Store: Store{
			FsyncInterval:  100 * time.Millisecond,
			BufferSize:     64 * 1024,
			MaxSegmentSize: 64 * 1024 * 1024,
		},
		Storage: Storage{
			Compression: storage.CompressionSnappy.String(),
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from the specified path. Keys missing from
// the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	// Ensure config directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with secure permissions (0600)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate reports every invalid setting in the configuration
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if _, err := codec.ParseLayout(c.Codec.Layout); err != nil {
		errs = append(errs, fmt.Errorf("codec.layout: %w", err))
	}
	if c.Store.FsyncInterval < 0 {
		errs = append(errs, fmt.Errorf("store.fsync_interval must not be negative: %s", c.Store.FsyncInterval))
	}
	if c.Store.BufferSize < 0 {
		errs = append(errs, fmt.Errorf("store.buffer_size must not be negative: %d", c.Store.BufferSize))
	}
	if c.Store.MaxSegmentSize < 0 {
		errs = append(errs, fmt.Errorf("store.max_segment_size must not be negative: %d", c.Store.MaxSegmentSize))
	}
	if _, err := storage.ParseCompression(c.Storage.Compression); err != nil {
		errs = append(errs, fmt.Errorf("storage.compression: %w", err))
	}
	if _, err := zap.ParseAtomicLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	return errors.Join(errs...)
}

// Layout returns the configured codec layout
func (c *Config) Layout() codec.Layout {
	layout, err := codec.ParseLayout(c.Codec.Layout)
	if err != nil {
		return codec.LayoutVarint
	}
	return layout
}

// Compression returns the configured path compression
func (c *Config) Compression() storage.Compression {
	compression, err := storage.ParseCompression(c.Storage.Compression)
	if err != nil {
		return storage.CompressionSnappy
	}
	return compression
}

// EventsDir returns the directory holding the segment log
func (c *Config) EventsDir() string {
	return filepath.Join(c.DataDir, "events")
}

// PathsDir returns the directory holding the pebble path database
func (c *Config) PathsDir() string {
	return filepath.Join(c.DataDir, "paths")
}

// SchemaPath returns the file holding the property schema
func (c *Config) SchemaPath() string {
	return filepath.Join(c.DataDir, "schema.yaml")
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./sky.yaml"
	}

	// For Linux/macOS, use ~/.config/sky/config.yaml
	return filepath.Join(homeDir, ".config", "sky", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
