package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Open the store and print its configuration",
	Long: `Open the store described by the config file (running recovery if
the file back-end's index is stale) and print the configuration it was
opened with. Exits non-zero if the store cannot be opened.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	store, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if statsJSON {
		fmt.Printf(`{"backend":%q,"location":%q,"max_file_length":%d,"memory":%t,"magic":%d}`+"\n",
			cfg.BlockStore.Backend, cfg.BlockStore.Location, cfg.BlockStore.MaxFileLength,
			cfg.BlockStore.Memory, cfg.BlockStore.Network.Magic)
		return nil
	}

	fmt.Println("Store")
	fmt.Println("-----")
	fmt.Printf("Backend:         %s\n", cfg.BlockStore.Backend)
	fmt.Printf("Location:        %s\n", cfg.BlockStore.Location)
	fmt.Printf("Max file length: %d\n", cfg.BlockStore.MaxFileLength)
	fmt.Printf("Memory:          %v\n", cfg.BlockStore.Memory)
	fmt.Printf("Magic:           0x%08X\n", cfg.BlockStore.Network.Magic)
	fmt.Println()
	fmt.Println("Store opened successfully")
	return nil
}
