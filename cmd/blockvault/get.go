package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blockberries/blockvault/blockstore"
)

var (
	getType   string
	getOffset int64
	getSize   int64
	getOut    string
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read a payload by its content hash",
	Long: `Read a BLOCK, UNDO or MERKLE payload by its hex-encoded content
hash, optionally restricted to a byte range, and write it to a file or
stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringVar(&getType, "type", "block", "payload type (block, undo, merkle)")
	getCmd.Flags().Int64Var(&getOffset, "offset", 0, "byte offset to start reading from")
	getCmd.Flags().Int64Var(&getSize, "size", -1, "number of bytes to read (-1 for to the end)")
	getCmd.Flags().StringVar(&getOut, "out", "-", "output file (\"-\" for stdout)")
}

func runGet(cmd *cobra.Command, args []string) error {
	t, err := payloadType(getType)
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

	var payload []byte
	var ok bool
	switch t {
	case blockstore.Block:
		payload, ok, err = store.ReadBlock(key, getOffset, getSize)
	case blockstore.Undo:
		payload, ok, err = store.ReadUndo(key, getOffset, getSize)
	case blockstore.Merkle:
		payload, ok, err = store.ReadMerkle(key, getOffset, getSize)
	}
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}
	if !ok {
		return fmt.Errorf("key %s not found", key)
	}

	return writeOutput(getOut, payload)
}

func writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}
