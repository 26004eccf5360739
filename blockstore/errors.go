package blockstore

import "errors"

// Sentinel errors, grouped the way types/validation.go groups its own:
// one var block per concern, each wrapped with fmt.Errorf("%w: ...")
// at the call site so errors.Is keeps working through the added context.
var (
	// ErrConfig covers a non-absolute location, a non-positive max file
	// length, or an unknown payload type passed to the store.
	ErrConfig = errors.New("blockstore: invalid configuration")

	// ErrRange covers a record field outside the uint32 range, a
	// segment number at or beyond the 100000 ceiling, or a read whose
	// offset/size falls outside the record's bounds.
	ErrRange = errors.New("blockstore: value out of range")

	// ErrWriteTooLarge is returned when payload+header exceeds the
	// store's configured max file length.
	ErrWriteTooLarge = errors.New("blockstore: block length above max file length")

	// ErrWriteConflict is returned when a second write for the same
	// payload type is attempted while one is already in flight.
	ErrWriteConflict = errors.New("blockstore: already writing")

	// ErrShortIO is returned when a header or body read/write returned
	// fewer bytes than requested.
	ErrShortIO = errors.New("blockstore: short io")

	// ErrAlreadyCommitted is returned by a second Write or Clear call
	// on a batch that has already committed.
	ErrAlreadyCommitted = errors.New("blockstore: already written")

	// ErrKeyNotFound is the KVEngine miss sentinel; Get/Has on absent
	// keys report this through errors.Is.
	ErrKeyNotFound = errors.New("blockstore: key not found")

	// ErrUpstreamIO wraps any error from the file or KV substrate,
	// surfaced after cleanup (fd closed, lock released).
	ErrUpstreamIO = errors.New("blockstore: upstream io error")

	// ErrChecksumMismatch is returned when an UNDO payload's stored
	// checksum doesn't match the blake3 digest of its body, whether
	// found by a normal read or by the recovery scanner.
	ErrChecksumMismatch = errors.New("blockstore: checksum mismatch")
)
