package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/WowDevTools/everlook/internal/config"
	"github.com/WowDevTools/everlook/internal/logger"
	"github.com/WowDevTools/everlook/pkg/listfile"
	"github.com/WowDevTools/everlook/pkg/pack"
)

var (
	flagConfig    string
	flagListfiles string
	flagLogLevel  string
	flagLogFile   string
	flagWorkers   int

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:          "everlook",
	Short:        "Browse and extract World of Warcraft game archives",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}

		// CLI flags override file values.
		if flagListfiles != "" {
			cfg.Data.ListfilePath = flagListfiles
		}
		if flagLogLevel != "" {
			cfg.Logging.Level = flagLogLevel
		}
		if flagLogFile != "" {
			cfg.Logging.LogFile = flagLogFile
		}
		if flagWorkers > 0 {
			cfg.Data.OpenWorkers = flagWorkers
		}

		log, err = logger.New(cfg.Logging.Level, cfg.Logging.LogFile)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagListfiles, "listfiles", "", "listfile directory or zip/7z bundle")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "write logs to a rotating file")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "parallel archive open workers")

	rootCmd.AddCommand(infoCmd, listCmd, searchCmd, whichCmd, extractCmd, packCmd)
}

// openGroup builds the package group for a game directory, wiring in the
// configured listfile source and cache settings.
func openGroup(root string) (*pack.Group, error) {
	opts := []pack.Option{
		pack.WithLogger(log),
		pack.WithCache(cfg.Data.Cache),
	}
	if cfg.Data.OpenWorkers > 0 {
		opts = append(opts, pack.WithOpenWorkers(cfg.Data.OpenWorkers))
	}

	if cfg.Data.ListfilePath != "" {
		registry, err := loadListfiles(cfg.Data.ListfilePath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pack.WithListfiles(registry))
	}

	return pack.NewGroup(filepath.Base(root), root, opts...)
}

func loadListfiles(path string) (*listfile.Registry, error) {
	registry := listfile.NewRegistry()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("listfile source: %w", err)
	}
	if info.IsDir() {
		err = registry.LoadDir(path)
	} else {
		err = registry.LoadBundle(path)
	}
	if err != nil {
		return nil, err
	}

	log.Debug("loaded external listfiles",
		zap.String("source", path),
		zap.Int("listings", registry.Len()))
	return registry, nil
}
