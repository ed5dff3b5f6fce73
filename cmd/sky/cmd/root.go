package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssargent/skydb/pkg/config"
	"github.com/ssargent/skydb/pkg/logging"
	"github.com/ssargent/skydb/pkg/metrics"
	"github.com/ssargent/skydb/pkg/schema"
	"github.com/ssargent/skydb/pkg/storage"
	"github.com/ssargent/skydb/pkg/store"
)

// app carries the resolved configuration into every subcommand
type app struct {
	configPath string
	config     *config.Config
	logger     *zap.Logger
	metrics    *metrics.Metrics
	schema     *schema.Schema
}

// NewRootCmd builds the sky command tree
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "sky",
		Short: "skydb - behavioral event storage",
		Long: `skydb stores timestamped events grouped by object. Each event may carry
an action and a small dictionary of key/value data, encoded in a compact
binary format.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.GetDefaultConfigPath(), "Path to the configuration file")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "Data directory (overrides config)")
	rootCmd.PersistentFlags().String("layout", "", "Codec layout: varint or fixed (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (overrides config)")

	rootCmd.AddCommand(
		newInitCmd(a),
		newEncodeCmd(a),
		newDecodeCmd(a),
		newAppendCmd(a),
		newEventsCmd(a),
		newStatsCmd(a),
		newPathCmd(a),
		newPropertyCmd(a),
	)

	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// load reads the config file when present, then applies flag overrides
func (a *app) load(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()
	if config.ConfigExists(a.configPath) {
		loaded, err := config.LoadConfig(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("layout") {
		cfg.Codec.Layout, _ = flags.GetString("layout")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.NewConsole(cfg.Logging.Level)
	if err != nil {
		return err
	}

	props, err := schema.Load(cfg.SchemaPath())
	if err != nil {
		return err
	}

	a.config = cfg
	a.logger = logger
	a.metrics, _ = metrics.New()
	a.schema = props
	return nil
}

// openStore opens the segment log in the configured data directory
func (a *app) openStore() (*store.EventStore, error) {
	s, err := store.NewEventStore(store.EventStoreConfig{
		DataDir:        a.config.EventsDir(),
		FsyncInterval:  a.config.Store.FsyncInterval,
		BufferSize:     a.config.Store.BufferSize,
		MaxSegmentSize: a.config.Store.MaxSegmentSize,
		Layout:         a.config.Layout(),
		Logger:         a.logger,
		Metrics:        a.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	recovery, err := s.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if recovery.BlocksTruncated > 0 {
		a.logger.Warn("recovered from corruption",
			zap.Int64("blocks_truncated", recovery.BlocksTruncated),
			zap.Int64("bytes_removed", recovery.FileSizeBefore-recovery.FileSizeAfter),
		)
	}
	return s, nil
}

// openPaths opens the pebble path storage in the configured data directory
func (a *app) openPaths() (*storage.PathStorage, error) {
	s, err := storage.NewPathStorage(a.config.PathsDir(), storage.Options{
		Layout:      a.config.Layout(),
		Compression: a.config.Compression(),
		Sync:        a.config.Storage.Sync,
		Logger:      a.logger,
		Metrics:     a.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open path storage: %w", err)
	}
	return s, nil
}
