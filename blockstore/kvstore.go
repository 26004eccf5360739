package blockstore

import (
	"errors"
	"fmt"

	"github.com/blockberries/blockvault/logging"
)

// kvStore implements Store for the KV back-end: each payload is
// stored directly as prefix(type)|hash -> body, with no segment files
// or side index. write/read/has/prune map straight onto the engine's
// get/put/has/del.
type kvStore struct {
	engine  KVEngine
	metrics Metrics
	logger  *logging.Logger
}

func openKVStore(cfg Config, engine Backend, metrics Metrics, logger *logging.Logger) (Store, error) {
	logger = logger.WithComponent("kvstore")
	logger.Debug("opening kv store", logging.Backend(string(engine)), logging.Path(cfg.Location))
	kv, err := openEngine(cfg.Location, engine, cfg.Memory)
	if err != nil {
		return nil, err
	}
	return &kvStore{engine: kv, metrics: metrics, logger: logger}, nil
}

func (s *kvStore) Ensure() error {
	return nil
}

func (s *kvStore) Close() error {
	return s.engine.Close()
}

func (s *kvStore) kvKey(t PayloadType, key Key) []byte {
	prefix, _ := filePrefix(t)
	buf := make([]byte, len(prefix)+KeySize)
	copy(buf, prefix)
	copy(buf[len(prefix):], key[:])
	return buf
}

func (s *kvStore) write(t PayloadType, key Key, payload []byte) (bool, error) {
	k := s.kvKey(t, key)
	exists, err := s.engine.Has(k)
	if err != nil {
		s.metrics.WriteError(t)
		s.logger.Error("write failed", logging.PayloadType(t.String()), logging.Key(key.String()), logging.Error(err))
		return false, fmt.Errorf("%w: %v", ErrUpstreamIO, err)
	}
	if exists {
		s.metrics.WriteDedup(t)
		s.logger.Debug("write dedup", logging.PayloadType(t.String()), logging.Key(key.String()))
		return false, nil
	}
	if err := s.engine.Put(k, payload); err != nil {
		s.metrics.WriteError(t)
		s.logger.Error("write failed", logging.PayloadType(t.String()), logging.Key(key.String()), logging.Error(err))
		return false, fmt.Errorf("%w: %v", ErrUpstreamIO, err)
	}
	s.metrics.WriteOK(t, len(payload))
	s.logger.Debug("write ok", logging.PayloadType(t.String()), logging.Key(key.String()), logging.Size(len(payload)))
	return true, nil
}

func (s *kvStore) read(t PayloadType, key Key, offset, size int64) ([]byte, bool, error) {
	v, err := s.engine.Get(s.kvKey(t, key))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		s.metrics.ReadError(t)
		s.logger.Error("read failed", logging.PayloadType(t.String()), logging.Key(key.String()), logging.Error(err))
		return nil, false, fmt.Errorf("%w: %v", ErrUpstreamIO, err)
	}

	if size < 0 {
		size = int64(len(v)) - offset
	}
	if offset < 0 || offset > int64(len(v)) || offset+size > int64(len(v)) || size < 0 {
		s.metrics.ReadError(t)
		return nil, false, fmt.Errorf("%w: out-of-bounds read", ErrRange)
	}
	out := v[offset : offset+size]
	s.metrics.ReadOK(t, len(out))
	s.logger.Debug("read ok", logging.PayloadType(t.String()), logging.Key(key.String()), logging.Size(len(out)))
	return out, true, nil
}

func (s *kvStore) has(t PayloadType, key Key) (bool, error) {
	ok, err := s.engine.Has(s.kvKey(t, key))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUpstreamIO, err)
	}
	return ok, nil
}

func (s *kvStore) prune(t PayloadType, key Key) (bool, error) {
	k := s.kvKey(t, key)
	exists, err := s.engine.Has(k)
	if err != nil {
		s.logger.Error("prune failed", logging.PayloadType(t.String()), logging.Key(key.String()), logging.Error(err))
		return false, fmt.Errorf("%w: %v", ErrUpstreamIO, err)
	}
	if !exists {
		return false, nil
	}
	if err := s.engine.Delete(k); err != nil {
		s.logger.Error("prune failed", logging.PayloadType(t.String()), logging.Key(key.String()), logging.Error(err))
		return false, fmt.Errorf("%w: %v", ErrUpstreamIO, err)
	}
	s.metrics.PruneOK(t)
	s.logger.Info("prune ok", logging.PayloadType(t.String()), logging.Key(key.String()))
	return true, nil
}

func (s *kvStore) WriteBlock(key Key, payload []byte) (bool, error) {
	return s.write(Block, key, payload)
}
func (s *kvStore) WriteUndo(key Key, payload []byte) (bool, error) {
	return s.write(Undo, key, payload)
}
func (s *kvStore) WriteMerkle(key Key, payload []byte) (bool, error) {
	return s.write(Merkle, key, payload)
}

func (s *kvStore) ReadBlock(key Key, offset, size int64) ([]byte, bool, error) {
	return s.read(Block, key, offset, size)
}
func (s *kvStore) ReadUndo(key Key, offset, size int64) ([]byte, bool, error) {
	return s.read(Undo, key, offset, size)
}
func (s *kvStore) ReadMerkle(key Key, offset, size int64) ([]byte, bool, error) {
	return s.read(Merkle, key, offset, size)
}

func (s *kvStore) HasBlock(key Key) (bool, error)  { return s.has(Block, key) }
func (s *kvStore) HasUndo(key Key) (bool, error)   { return s.has(Undo, key) }
func (s *kvStore) HasMerkle(key Key) (bool, error) { return s.has(Merkle, key) }

func (s *kvStore) PruneBlock(key Key) (bool, error)  { return s.prune(Block, key) }
func (s *kvStore) PruneUndo(key Key) (bool, error)   { return s.prune(Undo, key) }
func (s *kvStore) PruneMerkle(key Key) (bool, error) { return s.prune(Merkle, key) }

func (s *kvStore) Batch() Batch {
	return &kvBatch{store: s, batch: s.engine.NewBatch()}
}

// kvBatch stages writes/prunes for the KV back-end and commits them as
// one atomic KV engine batch.
type kvBatch struct {
	store     *kvStore
	batch     KVBatch
	committed bool
	ops       []kvBatchOp
}

type kvBatchOp struct {
	t       PayloadType
	key     Key
	write   bool
	prune   bool
	payload []byte
}

func (b *kvBatch) stageWrite(t PayloadType, key Key, payload []byte) {
	b.ops = append(b.ops, kvBatchOp{t: t, key: key, write: true, payload: payload})
}

func (b *kvBatch) stagePrune(t PayloadType, key Key) {
	b.ops = append(b.ops, kvBatchOp{t: t, key: key, prune: true})
}

func (b *kvBatch) WriteBlock(key Key, payload []byte)  { b.stageWrite(Block, key, payload) }
func (b *kvBatch) WriteUndo(key Key, payload []byte)   { b.stageWrite(Undo, key, payload) }
func (b *kvBatch) WriteMerkle(key Key, payload []byte) { b.stageWrite(Merkle, key, payload) }

func (b *kvBatch) PruneBlock(key Key)  { b.stagePrune(Block, key) }
func (b *kvBatch) PruneUndo(key Key)   { b.stagePrune(Undo, key) }
func (b *kvBatch) PruneMerkle(key Key) { b.stagePrune(Merkle, key) }

func (b *kvBatch) Write() error {
	if b.committed {
		return fmt.Errorf("%w", ErrAlreadyCommitted)
	}
	for _, op := range b.ops {
		k := b.store.kvKey(op.t, op.key)
		if op.write {
			b.batch.Put(k, op.payload)
		} else {
			b.batch.Delete(k)
		}
	}
	if err := b.batch.Commit(); err != nil {
		b.store.logger.Error("batch commit failed", logging.Error(err))
		return fmt.Errorf("%w: committing batch: %v", ErrUpstreamIO, err)
	}
	b.committed = true
	for _, op := range b.ops {
		if op.write {
			b.store.metrics.WriteOK(op.t, len(op.payload))
		} else {
			b.store.metrics.PruneOK(op.t)
		}
	}
	b.store.logger.Debug("batch committed", logging.Count(len(b.ops)))
	return nil
}

func (b *kvBatch) Clear() error {
	if b.committed {
		return fmt.Errorf("%w", ErrAlreadyCommitted)
	}
	b.ops = nil
	return nil
}
