package blockstore

import (
	"fmt"

	"github.com/blockberries/blockvault/logging"
)

// filePruner decrements a segment's live bookkeeping,
// unlink the segment once its live count reaches zero, and delete the
// BlockRecord (and, on unlink, the FileRecord) in a single index
// batch. The file unlink itself happens only after that batch commits.
type filePruner struct {
	location string
	engine   KVEngine
	metrics  Metrics
	cache    *segmentCache
	logger   *logging.Logger
}

// prunePayload removes (t, key) and reports whether it existed.
func (p *filePruner) prunePayload(t PayloadType, key Key) (bool, error) {
	rec, ok, err := getBlockRecord(p.engine, t, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	hdr, err := headerSize(t)
	if err != nil {
		return false, err
	}

	fileRec, ok, err := getFileRecord(p.engine, t, rec.File)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("%w: missing file record for segment %d", ErrUpstreamIO, rec.File)
	}

	newBlocks := int64(fileRec.Blocks) - 1
	newUsed := int64(fileRec.Used) - int64(hdr) - int64(rec.Length)

	batch := p.engine.NewBatch()
	batch.Delete(blockRecordKey(t, key))

	unlink := newBlocks == 0
	if unlink {
		batch.Delete(fileRecordKey(t, rec.File))
	} else {
		newFile, err := NewFileRecord(newBlocks, newUsed, int64(fileRec.Length))
		if err != nil {
			return false, err
		}
		batch.Put(fileRecordKey(t, rec.File), newFile.Encode())
	}

	if err := batch.Commit(); err != nil {
		p.logger.Error("prune failed", logging.PayloadType(t.String()), logging.Key(key.String()), logging.Error(err))
		return false, fmt.Errorf("%w: committing prune index batch: %v", ErrUpstreamIO, err)
	}

	if unlink {
		path, err := segmentPath(p.location, t, rec.File)
		if err != nil {
			return false, err
		}
		p.cache.invalidate(path)
		if err := unlinkSegment(path); err != nil {
			p.logger.Error("segment unlink failed", logging.PayloadType(t.String()), logging.Segment(rec.File), logging.Error(err))
			return false, err
		}
		p.metrics.SegmentReclaimed(t)
		p.logger.Info("segment reclaimed", logging.PayloadType(t.String()), logging.Segment(rec.File))
	}

	p.metrics.PruneOK(t)
	p.logger.Info("prune ok", logging.PayloadType(t.String()), logging.Key(key.String()))
	return true, nil
}
