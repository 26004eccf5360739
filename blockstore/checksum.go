package blockstore

import "github.com/zeebo/blake3"

// checksumSize is the width of the body checksum carried in an UNDO
// header.
const checksumSize = 32

// undoChecksum returns the blake3 digest of an UNDO payload body, the
// value stored in the header's checksum field and verified on read and
// during recovery.
func undoChecksum(body []byte) [checksumSize]byte {
	var out [checksumSize]byte
	sum := blake3.Sum256(body)
	copy(out[:], sum[:])
	return out
}

// verifyUndoChecksum reports whether stored matches the digest of body.
func verifyUndoChecksum(stored []byte, body []byte) bool {
	got := undoChecksum(body)
	return string(got[:]) == string(stored)
}
