package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blockberries/blockvault/config"
)

var (
	initDataDir  string
	initBackend  string
	initOverride bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new store configuration",
	Long: `Initialize a new blockvault configuration and data directory.

This command creates:
  - config.toml: store configuration
  - data/: directory for segment files and the side index

Example:
  blockvault init --data-dir ./vault --backend file`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initDataDir, "data-dir", ".", "directory for configuration and data")
	initCmd.Flags().StringVar(&initBackend, "backend", "file", "storage backend (file, leveldb, badger)")
	initCmd.Flags().BoolVar(&initOverride, "force", false, "override existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir := initDataDir
	if dataDir == "" {
		dataDir = "."
	}

	configPath := filepath.Join(dataDir, "config.toml")
	if _, err := os.Stat(configPath); err == nil && !initOverride {
		return fmt.Errorf("config.toml already exists; use --force to override")
	}

	abs, err := filepath.Abs(filepath.Join(dataDir, "data", "blocks"))
	if err != nil {
		return fmt.Errorf("resolving data directory: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.BlockStore.Backend = initBackend
	cfg.BlockStore.Location = abs

	switch cfg.BlockStore.Backend {
	case "file", "leveldb", "badger":
	default:
		return fmt.Errorf("invalid backend: %s (must be one of: file, leveldb, badger)", initBackend)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dataDir, err)
	}
	if err := cfg.EnsureDataDirs(); err != nil {
		return fmt.Errorf("creating data directories: %w", err)
	}

	if err := config.WriteConfigFile(configPath, cfg); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("Initialized blockvault store\n")
	fmt.Printf("  Backend:  %s\n", cfg.BlockStore.Backend)
	fmt.Printf("  Location: %s\n", cfg.BlockStore.Location)
	fmt.Printf("  Config:   %s\n", configPath)

	return nil
}
