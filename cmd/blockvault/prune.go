package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blockberries/blockvault/blockstore"
)

var pruneType string

var pruneCmd = &cobra.Command{
	Use:   "prune <key>",
	Short: "Remove a payload, reclaiming its segment if it was the last one",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrune,
}

func init() {
	pruneCmd.Flags().StringVar(&pruneType, "type", "block", "payload type (block, undo, merkle)")
}

func runPrune(cmd *cobra.Command, args []string) error {
	t, err := payloadType(pruneType)
	if err != nil {
		return err
	}
	key, err := parseKey(args[0])
	if err != nil {
		return err
	}

	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var pruned bool
	switch t {
	case blockstore.Block:
		pruned, err = store.PruneBlock(key)
	case blockstore.Undo:
		pruned, err = store.PruneUndo(key)
	case blockstore.Merkle:
		pruned, err = store.PruneMerkle(key)
	}
	if err != nil {
		return fmt.Errorf("pruning payload: %w", err)
	}

	if pruned {
		fmt.Println("status:  pruned")
	} else {
		fmt.Println("status:  not found")
	}
	return nil
}
