package blockstore

import "fmt"

// PayloadType is the closed set of fixed-meaning payloads the store
// persists. Each has a distinct on-disk header layout and filename
// prefix.
type PayloadType uint8

const (
	// Block is a full block payload. Header: magic + length (8 bytes).
	Block PayloadType = iota
	// Undo is an undo-coins payload. Header: magic + length + a
	// 32-byte checksum of the body (40 bytes).
	Undo
	// Merkle is a merkle block payload. Header: magic + length (8 bytes).
	Merkle
)

// KeySize is the length in bytes of the content hash used to key every
// payload family.
const KeySize = 32

// Key is the 32-byte content hash supplied by the caller. Uniqueness is
// scoped per PayloadType.
type Key [KeySize]byte

// String returns the key as a hex string.
func (k Key) String() string {
	return fmt.Sprintf("%x", k[:])
}

// maxSegmentNumber is the highest segment number a file may carry; the
// filename field is five decimal digits.
const maxSegmentNumber = 99999

// filePrefix maps a payload type to its segment filename prefix.
func filePrefix(t PayloadType) (string, error) {
	switch t {
	case Block:
		return "blk", nil
	case Undo:
		return "blu", nil
	case Merkle:
		return "blm", nil
	default:
		return "", fmt.Errorf("%w: unknown file prefix", ErrConfig)
	}
}

// headerSize returns the fixed header size in bytes for a payload type:
// magic(4) + length(4), plus a 32-byte checksum for Undo.
func headerSize(t PayloadType) (int, error) {
	switch t {
	case Block, Merkle:
		return 8, nil
	case Undo:
		return 40, nil
	default:
		return 0, fmt.Errorf("%w: unknown file prefix", ErrConfig)
	}
}

// payloadTypes lists the closed set in a fixed order used whenever
// operations must iterate over, or lock, every type — e.g. Batch.Write
// acquires type locks in this order to avoid deadlock.
var payloadTypes = [...]PayloadType{Block, Undo, Merkle}
