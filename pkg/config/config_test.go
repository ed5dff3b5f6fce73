package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/skydb/pkg/codec"
	"github.com/ssargent/skydb/pkg/storage"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "./data", config.DataDir)
	assert.Equal(t, "varint", config.Codec.Layout)
	assert.Equal(t, 100*time.Millisecond, config.Store.FsyncInterval)
	assert.Equal(t, 64*1024, config.Store.BufferSize)
	assert.Equal(t, int64(64*1024*1024), config.Store.MaxSegmentSize)
	assert.Equal(t, "snappy", config.Storage.Compression)
	assert.Equal(t, "info", config.Logging.Level)
	assert.NoError(t, config.Validate())
}

func TestLoadConfig(t *testing.T) {
	t.Run("load existing config", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")

		content := `data_dir: /var/lib/sky
codec:
  layout: fixed
store:
  fsync_interval: 250ms
  buffer_size: 8192
  max_segment_size: 1048576
storage:
  compression: none
  sync: true
logging:
  level: debug
`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

		config, err := LoadConfig(configPath)
		require.NoError(t, err)

		assert.Equal(t, "/var/lib/sky", config.DataDir)
		assert.Equal(t, codec.LayoutFixed, config.Layout())
		assert.Equal(t, 250*time.Millisecond, config.Store.FsyncInterval)
		assert.Equal(t, 8192, config.Store.BufferSize)
		assert.Equal(t, int64(1048576), config.Store.MaxSegmentSize)
		assert.Equal(t, storage.CompressionNone, config.Compression())
		assert.True(t, config.Storage.Sync)
		assert.Equal(t, "debug", config.Logging.Level)
	})

	t.Run("missing keys keep defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("data_dir: /tmp/sky\n"), 0600))

		config, err := LoadConfig(configPath)
		require.NoError(t, err)

		expected := DefaultConfig()
		expected.DataDir = "/tmp/sky"
		assert.Equal(t, expected, config)
	})

	t.Run("non-existent config", func(t *testing.T) {
		_, err := LoadConfig("/non/existent/config.yaml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "config file does not exist")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("data_dir: [unclosed"), 0600))

		_, err := LoadConfig(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("invalid values", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		content := "codec:\n  layout: protobuf\nlogging:\n  level: loud\n"
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

		_, err := LoadConfig(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "codec.layout")
		assert.Contains(t, err.Error(), "logging.level")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"bad layout", func(c *Config) { c.Codec.Layout = "json" }, "codec.layout"},
		{"negative fsync", func(c *Config) { c.Store.FsyncInterval = -time.Second }, "store.fsync_interval"},
		{"negative buffer", func(c *Config) { c.Store.BufferSize = -1 }, "store.buffer_size"},
		{"negative segment", func(c *Config) { c.Store.MaxSegmentSize = -1 }, "store.max_segment_size"},
		{"bad compression", func(c *Config) { c.Storage.Compression = "zstd" }, "storage.compression"},
		{"bad level", func(c *Config) { c.Logging.Level = "chatty" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestSaveConfig(t *testing.T) {
	t.Run("save config", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

		config := DefaultConfig()
		config.DataDir = "/custom/data"
		config.Codec.Layout = "fixed"

		require.NoError(t, SaveConfig(config, configPath))

		info, err := os.Stat(configPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		data, err := os.ReadFile(configPath)
		require.NoError(t, err)

		var raw map[string]interface{}
		require.NoError(t, yaml.Unmarshal(data, &raw))
		assert.Equal(t, "/custom/data", raw["data_dir"])

		loaded, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, config, loaded)
	})

	t.Run("invalid path", func(t *testing.T) {
		parent := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(parent, []byte("x"), 0600))

		err := SaveConfig(DefaultConfig(), filepath.Join(parent, "config.yaml"))
		assert.Error(t, err)
	})
}

func TestConfigDirs(t *testing.T) {
	config := DefaultConfig()
	config.DataDir = "/srv/sky"

	assert.Equal(t, filepath.Join("/srv/sky", "events"), config.EventsDir())
	assert.Equal(t, filepath.Join("/srv/sky", "paths"), config.PathsDir())
	assert.Equal(t, filepath.Join("/srv/sky", "schema.yaml"), config.SchemaPath())
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()
	assert.NotEmpty(t, path)
	assert.Equal(t, "config.yaml", filepath.Base(path))
}

func TestConfigExists(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	assert.False(t, ConfigExists(configPath))

	require.NoError(t, os.WriteFile(configPath, []byte("data_dir: x\n"), 0600))
	assert.True(t, ConfigExists(configPath))
}
