package blockstore

// Store is the capability set both back-ends implement: writeX,
// readX, hasX, and pruneX are spelled out per payload type rather than
// taking a PayloadType parameter, matching the public operation
// names directly. There is no base implementation to inherit from and
// no unimplemented-method behavior to fall back on — a back-end either
// satisfies this interface or it doesn't, checked at compile time.
type Store interface {
	// Close releases the store's open resources (segment handles, the
	// index engine). A closed store must not be used again.
	Close() error
	// Ensure performs the equivalent of mkdir -p on the store's
	// configured location.
	Ensure() error

	WriteBlock(key Key, payload []byte) (bool, error)
	WriteUndo(key Key, payload []byte) (bool, error)
	WriteMerkle(key Key, payload []byte) (bool, error)

	// ReadBlock/ReadUndo/ReadMerkle read size bytes starting at offset.
	// size < 0 means "to the end of the record". A nil slice with
	// ok == false means the key is absent (the null payload case).
	ReadBlock(key Key, offset, size int64) ([]byte, bool, error)
	ReadUndo(key Key, offset, size int64) ([]byte, bool, error)
	ReadMerkle(key Key, offset, size int64) ([]byte, bool, error)

	HasBlock(key Key) (bool, error)
	HasUndo(key Key) (bool, error)
	HasMerkle(key Key) (bool, error)

	PruneBlock(key Key) (bool, error)
	PruneUndo(key Key) (bool, error)
	PruneMerkle(key Key) (bool, error)

	// Batch returns a new single-use staging batch.
	Batch() Batch
}

// Batch stages write/prune calls in memory without touching disk or
// the index; Write commits them atomically with respect to readers. A
// committed batch cannot be reused.
type Batch interface {
	WriteBlock(key Key, payload []byte)
	WriteUndo(key Key, payload []byte)
	WriteMerkle(key Key, payload []byte)

	PruneBlock(key Key)
	PruneUndo(key Key)
	PruneMerkle(key Key)

	// Write commits every staged operation atomically. A second call
	// to Write or Clear after a successful commit fails
	// ErrAlreadyCommitted.
	Write() error
	// Clear discards every staged operation without committing.
	Clear() error
}
