package blockstore

import (
	"fmt"

	"github.com/blockberries/blockvault/logging"
)

// fileBatch stages write/prune calls for the file back-end. Write
// acquires all three type locks in the fixed payloadTypes order to
// avoid deadlock against concurrent single-writes and other batches
// performs the segment appends per type in staging order,
// then commits every index update as one KV batch.
type fileBatch struct {
	store     *fileStore
	committed bool
	ops       []fileBatchOp
	// staged tracks keys already written earlier in this same
	// uncommitted batch, so a repeated WriteBlock/WriteUndo/WriteMerkle
	// call for a key staged moments ago dedups against it instead of
	// the committed index, which won't see it until Write() commits.
	staged map[PayloadType]map[Key]struct{}
}

type fileBatchOp struct {
	t       PayloadType
	key     Key
	prune   bool
	payload []byte
}

func (b *fileBatch) WriteBlock(key Key, payload []byte) {
	b.ops = append(b.ops, fileBatchOp{t: Block, key: key, payload: payload})
}
func (b *fileBatch) WriteUndo(key Key, payload []byte) {
	b.ops = append(b.ops, fileBatchOp{t: Undo, key: key, payload: payload})
}
func (b *fileBatch) WriteMerkle(key Key, payload []byte) {
	b.ops = append(b.ops, fileBatchOp{t: Merkle, key: key, payload: payload})
}

func (b *fileBatch) PruneBlock(key Key)  { b.ops = append(b.ops, fileBatchOp{t: Block, key: key, prune: true}) }
func (b *fileBatch) PruneUndo(key Key)   { b.ops = append(b.ops, fileBatchOp{t: Undo, key: key, prune: true}) }
func (b *fileBatch) PruneMerkle(key Key) { b.ops = append(b.ops, fileBatchOp{t: Merkle, key: key, prune: true}) }

func (b *fileBatch) Write() error {
	if b.committed {
		return fmt.Errorf("%w", ErrAlreadyCommitted)
	}

	for _, t := range payloadTypes {
		b.store.locks.lock(t)
	}
	defer func() {
		for _, t := range payloadTypes {
			b.store.locks.unlock(t)
		}
	}()

	batch := b.store.engine.NewBatch()
	var unlinks []string
	states := make(map[PayloadType]*segmentState)

	for _, op := range b.ops {
		if op.prune {
			if err := b.stagePrune(batch, op, &unlinks); err != nil {
				return err
			}
			continue
		}
		if b.alreadyStaged(op.t, op.key) {
			b.store.metrics.WriteDedup(op.t)
			continue
		}
		state := states[op.t]
		if state == nil {
			state = &segmentState{}
			states[op.t] = state
		}
		if err := b.stageWrite(batch, op, state); err != nil {
			return err
		}
		b.markStaged(op.t, op.key)
	}

	if err := batch.Commit(); err != nil {
		b.store.logger.Error("batch commit failed", logging.Error(err))
		return fmt.Errorf("%w: committing batch: %v", ErrUpstreamIO, err)
	}
	b.committed = true
	b.store.logger.Debug("batch committed", logging.Count(len(b.ops)))

	for _, path := range unlinks {
		b.store.cache.invalidate(path)
		if err := unlinkSegment(path); err != nil {
			return err
		}
	}
	return nil
}

// alreadyStaged reports whether key was already written earlier in
// this batch, the uncommitted-ops half of stageWrite's dedup check.
func (b *fileBatch) alreadyStaged(t PayloadType, key Key) bool {
	keys := b.staged[t]
	if keys == nil {
		return false
	}
	_, ok := keys[key]
	return ok
}

// markStaged records key as written for the remainder of this batch.
func (b *fileBatch) markStaged(t PayloadType, key Key) {
	if b.staged == nil {
		b.staged = make(map[PayloadType]map[Key]struct{})
	}
	if b.staged[t] == nil {
		b.staged[t] = make(map[Key]struct{})
	}
	b.staged[t][key] = struct{}{}
}

// stageWrite performs the dedup check, allocation and segment append
// for a single staged write, and stages its index updates into batch.
// A dedup hit is silently skipped, matching write()'s false-return
// semantics outside a batch. The committed index is the only dedup
// source consulted here; Write() checks staged ops from this same
// batch via alreadyStaged before calling stageWrite at all.
func (b *fileBatch) stageWrite(batch KVBatch, op fileBatchOp, state *segmentState) error {
	if _, ok, err := getBlockRecord(b.store.engine, op.t, op.key); err != nil {
		return err
	} else if ok {
		b.store.metrics.WriteDedup(op.t)
		return nil
	}

	alloc, err := allocateWithState(b.store.engine, b.store.location, b.store.maxFileLength, op.t, int64(len(op.payload)), state)
	if err != nil {
		b.store.metrics.WriteError(op.t)
		return err
	}
	hdr, err := headerSize(op.t)
	if err != nil {
		return err
	}
	header, err := encodeHeader(op.t, b.store.magic, op.payload)
	if err != nil {
		return err
	}

	f, err := openSegmentForAppend(alloc.path)
	if err != nil {
		b.store.metrics.WriteError(op.t)
		return err
	}
	offset := int64(alloc.record.Length)
	writeErr := f.writeAt(header, offset)
	if writeErr == nil {
		writeErr = f.writeAt(op.payload, offset+int64(hdr))
	}
	if writeErr == nil {
		writeErr = f.sync()
	}
	closeErr := f.close()
	if writeErr != nil {
		b.store.metrics.WriteError(op.t)
		return writeErr
	}
	if closeErr != nil {
		b.store.metrics.WriteError(op.t)
		return fmt.Errorf("%w: closing segment: %v", ErrUpstreamIO, closeErr)
	}

	position := offset + int64(hdr)
	rec, err := NewBlockRecord(int64(alloc.segment), position, int64(len(op.payload)))
	if err != nil {
		return err
	}
	newFile, err := NewFileRecord(
		int64(alloc.record.Blocks)+1,
		int64(alloc.record.Used)+int64(hdr)+int64(len(op.payload)),
		int64(alloc.record.Length)+int64(hdr)+int64(len(op.payload)),
	)
	if err != nil {
		return err
	}

	batch.Put(blockRecordKey(op.t, op.key), rec.Encode())
	batch.Put(fileRecordKey(op.t, alloc.segment), newFile.Encode())
	if alloc.advanced {
		batch.Put(currentSegmentKey(op.t), encodeSegmentNumber(alloc.segment))
	}
	// Keep state in step with what this op just staged, so the next
	// write to the same type within this batch allocates against the
	// post-write length rather than the pre-batch state still sitting
	// in the KV engine.
	state.segment = alloc.segment
	state.record = newFile
	b.store.metrics.WriteOK(op.t, len(op.payload))
	return nil
}

// stagePrune mirrors filePruner.prunePayload but stages into batch
// instead of committing immediately, appending any resulting segment
// path to unlinks for post-commit removal.
func (b *fileBatch) stagePrune(batch KVBatch, op fileBatchOp, unlinks *[]string) error {
	rec, ok, err := getBlockRecord(b.store.engine, op.t, op.key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	hdr, err := headerSize(op.t)
	if err != nil {
		return err
	}
	fileRec, ok, err := getFileRecord(b.store.engine, op.t, rec.File)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: missing file record for segment %d", ErrUpstreamIO, rec.File)
	}

	newBlocks := int64(fileRec.Blocks) - 1
	newUsed := int64(fileRec.Used) - int64(hdr) - int64(rec.Length)

	batch.Delete(blockRecordKey(op.t, op.key))
	if newBlocks == 0 {
		batch.Delete(fileRecordKey(op.t, rec.File))
		path, err := segmentPath(b.store.location, op.t, rec.File)
		if err != nil {
			return err
		}
		*unlinks = append(*unlinks, path)
		b.store.metrics.SegmentReclaimed(op.t)
	} else {
		newFile, err := NewFileRecord(newBlocks, newUsed, int64(fileRec.Length))
		if err != nil {
			return err
		}
		batch.Put(fileRecordKey(op.t, rec.File), newFile.Encode())
	}
	b.store.metrics.PruneOK(op.t)
	return nil
}

func (b *fileBatch) Clear() error {
	if b.committed {
		return fmt.Errorf("%w", ErrAlreadyCommitted)
	}
	b.ops = nil
	b.staged = nil
	return nil
}
