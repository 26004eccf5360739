package blockstore

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Index key family prefixes: a one-byte family tag followed by the
// payload type byte, then a family-specific suffix.
const (
	blockRecordPrefix    = 'b' // b | type | hash -> BlockRecord
	fileRecordPrefix     = 'f' // f | type | segment# -> FileRecord
	currentSegmentPrefix = 'F' // F | type -> current segment# (4 bytes)
)

func blockRecordKey(t PayloadType, key Key) []byte {
	buf := make([]byte, 2+KeySize)
	buf[0] = blockRecordPrefix
	buf[1] = byte(t)
	copy(buf[2:], key[:])
	return buf
}

func fileRecordKey(t PayloadType, segment uint32) []byte {
	buf := make([]byte, 6)
	buf[0] = fileRecordPrefix
	buf[1] = byte(t)
	binary.BigEndian.PutUint32(buf[2:], segment)
	return buf
}

func currentSegmentKey(t PayloadType) []byte {
	return []byte{currentSegmentPrefix, byte(t)}
}

// getBlockRecord looks up a BlockRecord for (type, key). ok is false
// when absent; absence is not an error at this layer.
func getBlockRecord(engine KVEngine, t PayloadType, key Key) (BlockRecord, bool, error) {
	v, err := engine.Get(blockRecordKey(t, key))
	if errors.Is(err, ErrKeyNotFound) {
		return BlockRecord{}, false, nil
	}
	if err != nil {
		return BlockRecord{}, false, fmt.Errorf("%w: reading block record: %v", ErrUpstreamIO, err)
	}
	rec, err := DecodeBlockRecord(v)
	if err != nil {
		return BlockRecord{}, false, err
	}
	return rec, true, nil
}

// getFileRecord looks up a segment's FileRecord. ok is false when the
// segment has never been opened.
func getFileRecord(engine KVEngine, t PayloadType, segment uint32) (FileRecord, bool, error) {
	v, err := engine.Get(fileRecordKey(t, segment))
	if errors.Is(err, ErrKeyNotFound) {
		return FileRecord{}, false, nil
	}
	if err != nil {
		return FileRecord{}, false, fmt.Errorf("%w: reading file record: %v", ErrUpstreamIO, err)
	}
	rec, err := DecodeFileRecord(v)
	if err != nil {
		return FileRecord{}, false, err
	}
	return rec, true, nil
}

// getCurrentSegment looks up the segment# currently receiving writes
// for t. ok is false when no segment has ever been allocated.
func getCurrentSegment(engine KVEngine, t PayloadType) (uint32, bool, error) {
	v, err := engine.Get(currentSegmentKey(t))
	if errors.Is(err, ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: reading current segment: %v", ErrUpstreamIO, err)
	}
	if len(v) != 4 {
		return 0, false, fmt.Errorf("%w: current segment value must be 4 bytes, got %d", ErrRange, len(v))
	}
	return binary.BigEndian.Uint32(v), true, nil
}

func encodeSegmentNumber(segment uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, segment)
	return buf
}
