package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blockberries/blockvault/blockstore"
)

var hasType string

var hasCmd = &cobra.Command{
	Use:   "has <key>",
	Short: "Test whether a payload exists",
	Args:  cobra.ExactArgs(1),
	RunE:  runHas,
}

func init() {
	hasCmd.Flags().StringVar(&hasType, "type", "block", "payload type (block, undo, merkle)")
}

func runHas(cmd *cobra.Command, args []string) error {
	t, err := payloadType(hasType)
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

	var ok bool
	switch t {
	case blockstore.Block:
		ok, err = store.HasBlock(key)
	case blockstore.Undo:
		ok, err = store.HasUndo(key)
	case blockstore.Merkle:
		ok, err = store.HasMerkle(key)
	}
	if err != nil {
		return fmt.Errorf("checking payload: %w", err)
	}

	fmt.Println(ok)
	if !ok {
		os.Exit(1)
	}
	return nil
}
