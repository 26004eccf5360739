package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blockberries/blockvault/config"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"

	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "blockvault",
	Short: "Content-addressed block store",
	Long: `blockvault is a content-addressed store for BLOCK, UNDO and
MERKLE payloads, keyed by a 32-byte content hash.

It runs in front of a file-backed segment store or a direct KV
back-end (leveldb or badger), chosen by the configuration file.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.toml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(hasCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("blockvault %s\n", Version)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		fmt.Printf("  Built:      %s\n", BuildTime)
	},
}

// loadConfig loads configuration from the config file named by cfgFile.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", cfgFile)
	}
	return config.LoadConfig(cfgFile)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
