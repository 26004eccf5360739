package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/blockberries/blockvault/blockstore"
)

var (
	putType string
)

var putCmd = &cobra.Command{
	Use:   "put <file>",
	Short: "Write a payload, keyed by the blake3 hash of its bytes",
	Long: `Write a BLOCK, UNDO or MERKLE payload read from a file (or stdin
with "-") and print its content hash.

For a MERKLE payload the first 32 bytes of the file must already be the
key it is stored under; put derives the printed key from the body's
leading bytes rather than hashing it.`,
	Args: cobra.ExactArgs(1),
	RunE: runPut,
}

func init() {
	putCmd.Flags().StringVar(&putType, "type", "block", "payload type (block, undo, merkle)")
}

func runPut(cmd *cobra.Command, args []string) error {
	t, err := payloadType(putType)
	if err != nil {
		return err
	}

	body, err := readInput(args[0])
	if err != nil {
		return err
	}

	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	key, err := keyForPut(t, body)
	if err != nil {
		return err
	}

	var written bool
	switch t {
	case blockstore.Block:
		written, err = store.WriteBlock(key, body)
	case blockstore.Undo:
		written, err = store.WriteUndo(key, body)
	case blockstore.Merkle:
		written, err = store.WriteMerkle(key, body)
	}
	if err != nil {
		return fmt.Errorf("writing payload: %w", err)
	}

	fmt.Printf("key:     %s\n", key)
	if written {
		fmt.Println("status:  written")
	} else {
		fmt.Println("status:  deduplicated (already present)")
	}
	return nil
}

// keyForPut derives the content hash a payload is stored under: the
// blake3 digest of the body for BLOCK/UNDO, or the body's leading
// KeySize bytes for MERKLE, where the key is embedded.
func keyForPut(t blockstore.PayloadType, body []byte) (blockstore.Key, error) {
	if t == blockstore.Merkle {
		if len(body) < blockstore.KeySize {
			return blockstore.Key{}, fmt.Errorf("merkle payload shorter than key size (%d bytes)", blockstore.KeySize)
		}
		var k blockstore.Key
		copy(k[:], body[:blockstore.KeySize])
		return k, nil
	}
	return hashKey(body)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
