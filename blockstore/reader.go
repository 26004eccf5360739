package blockstore

import (
	"fmt"

	"github.com/blockberries/blockvault/logging"
)

// fileReader implements reads for the file back-end: resolve key to a
// BlockRecord, open the segment, and perform one positioned read with
// bounds checking (UNDO takes a second read for the checksum stored
// in its header). Reads take no locks; they may run
// concurrently with writes to any type.
type fileReader struct {
	location string
	engine   KVEngine
	metrics  Metrics
	cache    *segmentCache
	logger   *logging.Logger
}

// readPayload returns the payload for (t, key), or (nil, false) if the
// key is absent. size<0 means "to the end of
// the record starting at offset".
func (r *fileReader) readPayload(t PayloadType, key Key, offset, size int64) ([]byte, bool, error) {
	rec, ok, err := getBlockRecord(r.engine, t, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	if size < 0 {
		size = int64(rec.Length) - offset
	}
	if offset > int64(rec.Length) || offset+size > int64(rec.Length) || offset < 0 || size < 0 {
		return nil, false, fmt.Errorf("%w: out-of-bounds read", ErrRange)
	}

	path, err := segmentPath(r.location, t, rec.File)
	if err != nil {
		return nil, false, err
	}
	f, err := r.cache.getForRead(path)
	if err != nil {
		r.metrics.ReadError(t)
		r.logger.Error("read failed opening segment", logging.PayloadType(t.String()), logging.Key(key.String()), logging.Error(err))
		return nil, false, err
	}

	if t == Undo {
		buf, err := r.readUndoVerified(f, rec, key, offset, size)
		if err != nil {
			return nil, false, err
		}
		r.metrics.ReadOK(t, len(buf))
		r.logger.Debug("read ok", logging.PayloadType(t.String()), logging.Key(key.String()), logging.Size(len(buf)))
		return buf, true, nil
	}

	buf := make([]byte, size)
	if err := f.readAt(buf, int64(rec.Position)+offset); err != nil {
		r.metrics.ReadError(t)
		r.logger.Error("read failed", logging.PayloadType(t.String()), logging.Key(key.String()), logging.Error(err))
		return nil, false, fmt.Errorf("wrong number of bytes read: %w", err)
	}
	r.metrics.ReadOK(t, len(buf))
	r.logger.Debug("read ok", logging.PayloadType(t.String()), logging.Key(key.String()), logging.Size(len(buf)))
	return buf, true, nil
}

// readUndoVerified reads an UNDO record's full body, recomputes its
// checksum against the 32 bytes stored just ahead of it in the header,
// and slices out [offset:offset+size] only once the digest matches.
func (r *fileReader) readUndoVerified(f *segmentFile, rec BlockRecord, key Key, offset, size int64) ([]byte, error) {
	body := make([]byte, rec.Length)
	if err := f.readAt(body, int64(rec.Position)); err != nil {
		r.metrics.ReadError(Undo)
		r.logger.Error("read failed", logging.PayloadType(Undo.String()), logging.Key(key.String()), logging.Error(err))
		return nil, fmt.Errorf("wrong number of bytes read: %w", err)
	}

	sum := make([]byte, checksumSize)
	if err := f.readAt(sum, int64(rec.Position)-int64(checksumSize)); err != nil {
		r.metrics.ReadError(Undo)
		r.logger.Error("read failed reading checksum", logging.PayloadType(Undo.String()), logging.Key(key.String()), logging.Error(err))
		return nil, fmt.Errorf("wrong number of bytes read: %w", err)
	}
	if !verifyUndoChecksum(sum, body) {
		r.metrics.ReadError(Undo)
		r.logger.Error("checksum mismatch", logging.PayloadType(Undo.String()), logging.Key(key.String()))
		return nil, fmt.Errorf("%w", ErrChecksumMismatch)
	}
	return body[offset : offset+size], nil
}

// hasPayload reports whether (t, key) has an index entry.
func (r *fileReader) hasPayload(t PayloadType, key Key) (bool, error) {
	_, ok, err := getBlockRecord(r.engine, t, key)
	return ok, err
}
