package blockstore

import "fmt"

// allocation is what the segment allocator hands the writer: the
// segment chosen to receive the next payload, its FileRecord as it
// stood before the write, and the segment's path. The allocator never
// touches disk or the index; the writer commits the updated FileRecord
// and current-segment pointer once the bytes are durable.
type allocation struct {
	segment uint32
	record  FileRecord
	path    string
	// advanced reports whether this allocation opened a new segment
	// beyond the previously recorded current segment, so the writer
	// knows whether the current-segment pointer needs updating too.
	advanced bool
}

// allocate chooses the segment that should receive a payload of
// payloadLength bytes for t, given the store's location and
// maxFileLength.
func allocate(engine KVEngine, location string, maxFileLength int64, t PayloadType, payloadLength int64) (allocation, error) {
	hdr, err := headerSize(t)
	if err != nil {
		return allocation{}, err
	}
	if payloadLength+int64(hdr) > maxFileLength {
		return allocation{}, fmt.Errorf("%w", ErrWriteTooLarge)
	}

	segment, ok, err := getCurrentSegment(engine, t)
	if err != nil {
		return allocation{}, err
	}
	// advanced tracks whether the current-segment pointer ("F|type")
	// needs to be (re)written: true when none existed yet, or when this
	// call opens a new segment beyond the previous one.
	advanced := !ok
	var current FileRecord
	if ok {
		current, _, err = getFileRecord(engine, t, segment)
		if err != nil {
			return allocation{}, err
		}
	}

	if int64(current.Length)+int64(hdr)+payloadLength > maxFileLength {
		segment++
		current = FileRecord{}
		advanced = true
	}
	if segment > maxSegmentNumber {
		return allocation{}, fmt.Errorf("%w: file number too large", ErrRange)
	}

	path, err := segmentPath(location, t, segment)
	if err != nil {
		return allocation{}, err
	}
	return allocation{segment: segment, record: current, path: path, advanced: advanced}, nil
}

// segmentState caches one payload type's current segment/FileRecord
// across several allocations within a single Batch.Write call, so the
// Nth write to a type in one batch sees the (Nth-1)th's effect even
// though none of those updates have reached the KV engine yet.
type segmentState struct {
	loaded  bool
	segment uint32
	record  FileRecord
}

// allocateWithState behaves like allocate but reads/writes its
// segment/FileRecord through state instead of the KV engine, so
// repeated calls for the same type within one batch stay consistent
// with each other before anything commits.
func allocateWithState(engine KVEngine, location string, maxFileLength int64, t PayloadType, payloadLength int64, state *segmentState) (allocation, error) {
	hdr, err := headerSize(t)
	if err != nil {
		return allocation{}, err
	}
	if payloadLength+int64(hdr) > maxFileLength {
		return allocation{}, fmt.Errorf("%w", ErrWriteTooLarge)
	}

	advanced := false
	if !state.loaded {
		segment, ok, err := getCurrentSegment(engine, t)
		if err != nil {
			return allocation{}, err
		}
		var current FileRecord
		if ok {
			current, _, err = getFileRecord(engine, t, segment)
			if err != nil {
				return allocation{}, err
			}
		}
		state.loaded = true
		state.segment = segment
		state.record = current
		advanced = !ok
	}

	if int64(state.record.Length)+int64(hdr)+payloadLength > maxFileLength {
		state.segment++
		state.record = FileRecord{}
		advanced = true
	}
	if state.segment > maxSegmentNumber {
		return allocation{}, fmt.Errorf("%w: file number too large", ErrRange)
	}

	path, err := segmentPath(location, t, state.segment)
	if err != nil {
		return allocation{}, err
	}
	return allocation{segment: state.segment, record: state.record, path: path, advanced: advanced}, nil
}
