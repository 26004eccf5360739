package blockstore

import (
	"encoding/binary"
	"fmt"
)

// recordSize is the fixed on-disk encoded size of both BlockRecord and
// FileRecord: three little-endian uint32 fields.
const recordSize = 12

// BlockRecord locates one payload's body within a segment file of the
// file back-end. position is the byte offset of the payload body (not
// the header) within the segment; the header immediately precedes it.
type BlockRecord struct {
	File     uint32
	Position uint32
	Length   uint32
}

// NewBlockRecord validates and constructs a BlockRecord. Negative or
// out-of-uint32-range inputs are the only constructor failure mode; the
// call site passes ints/int64s gathered from arithmetic on segment
// sizes, so the range check happens here rather than at the call site.
func NewBlockRecord(file, position, length int64) (BlockRecord, error) {
	f, err := toUint32(file, "file")
	if err != nil {
		return BlockRecord{}, err
	}
	p, err := toUint32(position, "position")
	if err != nil {
		return BlockRecord{}, err
	}
	l, err := toUint32(length, "length")
	if err != nil {
		return BlockRecord{}, err
	}
	return BlockRecord{File: f, Position: p, Length: l}, nil
}

// Encode returns the fixed 12-byte little-endian encoding: file,
// position, length in order.
func (r BlockRecord) Encode() []byte {
	buf := make([]byte, recordSize)
	binary.LittleEndian.PutUint32(buf[0:4], r.File)
	binary.LittleEndian.PutUint32(buf[4:8], r.Position)
	binary.LittleEndian.PutUint32(buf[8:12], r.Length)
	return buf
}

// DecodeBlockRecord decodes a 12-byte buffer. Decode of a well-sized
// buffer cannot fail structurally; only the length check can fail.
func DecodeBlockRecord(buf []byte) (BlockRecord, error) {
	if len(buf) != recordSize {
		return BlockRecord{}, fmt.Errorf("%w: block record must be %d bytes, got %d", ErrRange, recordSize, len(buf))
	}
	return BlockRecord{
		File:     binary.LittleEndian.Uint32(buf[0:4]),
		Position: binary.LittleEndian.Uint32(buf[4:8]),
		Length:   binary.LittleEndian.Uint32(buf[8:12]),
	}, nil
}

// FileRecord tracks a segment's live-byte bookkeeping. blocks is the
// live payload count; used is the bytes of live headers+bodies; length
// is the total bytes written to the segment so far (monotonic).
type FileRecord struct {
	Blocks uint32
	Used   uint32
	Length uint32
}

// NewFileRecord validates and constructs a FileRecord.
func NewFileRecord(blocks, used, length int64) (FileRecord, error) {
	b, err := toUint32(blocks, "blocks")
	if err != nil {
		return FileRecord{}, err
	}
	u, err := toUint32(used, "used")
	if err != nil {
		return FileRecord{}, err
	}
	l, err := toUint32(length, "length")
	if err != nil {
		return FileRecord{}, err
	}
	return FileRecord{Blocks: b, Used: u, Length: l}, nil
}

// Encode returns the fixed 12-byte little-endian encoding: blocks,
// used, length in order.
func (r FileRecord) Encode() []byte {
	buf := make([]byte, recordSize)
	binary.LittleEndian.PutUint32(buf[0:4], r.Blocks)
	binary.LittleEndian.PutUint32(buf[4:8], r.Used)
	binary.LittleEndian.PutUint32(buf[8:12], r.Length)
	return buf
}

// DecodeFileRecord decodes a 12-byte buffer.
func DecodeFileRecord(buf []byte) (FileRecord, error) {
	if len(buf) != recordSize {
		return FileRecord{}, fmt.Errorf("%w: file record must be %d bytes, got %d", ErrRange, recordSize, len(buf))
	}
	return FileRecord{
		Blocks: binary.LittleEndian.Uint32(buf[0:4]),
		Used:   binary.LittleEndian.Uint32(buf[4:8]),
		Length: binary.LittleEndian.Uint32(buf[8:12]),
	}, nil
}

// toUint32 range-checks a value gathered as int64 arithmetic against
// the uint32 domain a record field is encoded into.
func toUint32(v int64, field string) (uint32, error) {
	if v < 0 || v > 1<<32-1 {
		return 0, fmt.Errorf("%w: %s out of uint32 range: %d", ErrRange, field, v)
	}
	return uint32(v), nil
}
