package blockstore

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/blockberries/blockvault/logging"
)

// writeLocks implements per-type single-flight serialization: one lock
// per payload type, acquired with TryLock so a
// second concurrent writer for the same type observes ErrWriteConflict
// instead of blocking.
type writeLocks struct {
	locks [len(payloadTypes)]sync.Mutex
}

func (w *writeLocks) tryLock(t PayloadType) bool {
	return w.locks[t].TryLock()
}

func (w *writeLocks) unlock(t PayloadType) {
	w.locks[t].Unlock()
}

// lock blocks until the per-type lock is acquired; used by Batch, which
// takes all three type locks for its duration rather than failing fast.
func (w *writeLocks) lock(t PayloadType) {
	w.locks[t].Lock()
}

// fileWriter implements writes for the file back-end: dedup check,
// per-type single-flight locking, segment allocation, header+body
// append, fsync, then an atomic index batch commit.
type fileWriter struct {
	location      string
	maxFileLength int64
	magic         uint32
	engine        KVEngine
	locks         *writeLocks
	metrics       Metrics
	logger        *logging.Logger
}

// writePayload performs one write of (t, key, body) and reports
// whether a write actually happened (false means dedup, a no-op).
func (w *fileWriter) writePayload(t PayloadType, key Key, body []byte) (bool, error) {
	// Step 1: dedup, checked before lock acquisition so repeated writes
	// of the same hash never contend on the type lock.
	if _, ok, err := getBlockRecord(w.engine, t, key); err != nil {
		return false, err
	} else if ok {
		w.metrics.WriteDedup(t)
		w.logger.Debug("write dedup", logging.PayloadType(t.String()), logging.Key(key.String()))
		return false, nil
	}

	// Step 2: single-flight per type.
	if !w.locks.tryLock(t) {
		w.metrics.WriteConflict(t)
		w.logger.Warn("write conflict", logging.PayloadType(t.String()), logging.Key(key.String()))
		return false, fmt.Errorf("%w", ErrWriteConflict)
	}
	defer w.locks.unlock(t)

	ok, err := w.appendLocked(t, key, body)
	if err != nil {
		w.metrics.WriteError(t)
		w.logger.Error("write failed", logging.PayloadType(t.String()), logging.Key(key.String()), logging.Error(err))
		return false, err
	}
	w.metrics.WriteOK(t, len(body))
	w.logger.Debug("write ok", logging.PayloadType(t.String()), logging.Key(key.String()), logging.Size(len(body)))
	return ok, nil
}

// appendLocked performs the allocate/open/write/fsync/index-commit
// sequence; the caller already holds the type lock.
func (w *fileWriter) appendLocked(t PayloadType, key Key, body []byte) (bool, error) {
	// Re-check dedup under the lock: another batch may have committed
	// this exact key between the unlocked check above and lock
	// acquisition.
	if _, ok, err := getBlockRecord(w.engine, t, key); err != nil {
		return false, err
	} else if ok {
		return false, nil
	}

	alloc, err := allocate(w.engine, w.location, w.maxFileLength, t, int64(len(body)))
	if err != nil {
		return false, err
	}

	hdr, err := headerSize(t)
	if err != nil {
		return false, err
	}

	header, err := encodeHeader(t, w.magic, body)
	if err != nil {
		return false, err
	}

	f, err := openSegmentForAppend(alloc.path)
	if err != nil {
		return false, err
	}
	if err := w.appendBytes(f, alloc, hdr, header, body); err != nil {
		_ = f.close()
		return false, err
	}
	if err := f.sync(); err != nil {
		_ = f.close()
		return false, err
	}
	if err := f.close(); err != nil {
		return false, fmt.Errorf("%w: closing segment: %v", ErrUpstreamIO, err)
	}

	position := int64(alloc.record.Length) + int64(hdr)
	rec, err := NewBlockRecord(int64(alloc.segment), position, int64(len(body)))
	if err != nil {
		return false, err
	}
	newFile, err := NewFileRecord(
		int64(alloc.record.Blocks)+1,
		int64(alloc.record.Used)+int64(hdr)+int64(len(body)),
		int64(alloc.record.Length)+int64(hdr)+int64(len(body)),
	)
	if err != nil {
		return false, err
	}

	batch := w.engine.NewBatch()
	batch.Put(blockRecordKey(t, key), rec.Encode())
	batch.Put(fileRecordKey(t, alloc.segment), newFile.Encode())
	if alloc.advanced {
		batch.Put(currentSegmentKey(t), encodeSegmentNumber(alloc.segment))
	}
	if err := batch.Commit(); err != nil {
		return false, fmt.Errorf("%w: committing write index batch: %v", ErrUpstreamIO, err)
	}
	return true, nil
}

// appendBytes writes the header then the body at the position implied
// by the segment's current length, failing ErrShortIO on a partial
// write of either.
func (w *fileWriter) appendBytes(f *segmentFile, alloc allocation, hdr int, header, body []byte) error {
	offset := int64(alloc.record.Length)
	if err := f.writeAt(header, offset); err != nil {
		return fmt.Errorf("could not write block magic: %w", err)
	}
	if err := f.writeAt(body, offset+int64(hdr)); err != nil {
		return fmt.Errorf("could not write block: %w", err)
	}
	return nil
}

// encodeHeader composes magic|length[|checksum].
func encodeHeader(t PayloadType, magic uint32, body []byte) ([]byte, error) {
	hdr, err := headerSize(t)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, hdr)
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(body)))
	if t == Undo {
		sum := undoChecksum(body)
		copy(buf[8:40], sum[:])
	}
	return buf, nil
}
