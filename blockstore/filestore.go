package blockstore

import (
	"fmt"

	"github.com/blockberries/blockvault/logging"
)

// openSegmentCacheSize bounds the number of segment read descriptors
// the file store keeps open at once (LRU-bounded fds).
const openSegmentCacheSize = 256

// fileStore implements Store for the file back-end: capped
// segment files per payload type, a side index in a KVEngine, and a
// crash-recovery scanner invoked on open.
type fileStore struct {
	location      string
	maxFileLength int64
	magic         uint32
	engine        KVEngine
	locks         *writeLocks
	cache         *segmentCache
	metrics       Metrics

	writer   *fileWriter
	reader   *fileReader
	pruner   *filePruner
	hashFunc HashFunc
	logger   *logging.Logger
}

func openFileStore(cfg Config, hashFunc HashFunc, metrics Metrics, logger *logging.Logger) (Store, error) {
	logger = logger.WithComponent("filestore")
	logger.Debug("opening file store", logging.Path(cfg.Location))

	if err := ensureDir(cfg.Location); err != nil {
		return nil, err
	}

	engine, err := openEngine(cfg.Location, cfg.IndexEngine, cfg.Memory)
	if err != nil {
		return nil, err
	}

	stale, err := needsRecovery(engine, cfg.Location)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	if stale {
		if hashFunc == nil {
			_ = engine.Close()
			return nil, fmt.Errorf("%w: recovery required but no HashFunc supplied", ErrConfig)
		}
		stats, err := runRecovery(engine, cfg.Location, cfg.MaxFileLength, cfg.Magic, hashFunc, logger)
		if err != nil {
			_ = engine.Close()
			return nil, err
		}
		metrics.RecoveryRun(stats)
	}

	s := &fileStore{
		location:      cfg.Location,
		maxFileLength: cfg.MaxFileLength,
		magic:         cfg.Magic,
		engine:        engine,
		locks:         &writeLocks{},
		cache:         newSegmentCache(openSegmentCacheSize, metrics),
		metrics:       metrics,
		hashFunc:      hashFunc,
		logger:        logger,
	}
	s.writer = &fileWriter{location: s.location, maxFileLength: s.maxFileLength, magic: s.magic, engine: s.engine, locks: s.locks, metrics: s.metrics, logger: logger.WithComponent("writer")}
	s.reader = &fileReader{location: s.location, engine: s.engine, metrics: s.metrics, cache: s.cache, logger: logger.WithComponent("reader")}
	s.pruner = &filePruner{location: s.location, engine: s.engine, metrics: s.metrics, cache: s.cache, logger: logger.WithComponent("pruner")}
	return s, nil
}

func (s *fileStore) Ensure() error {
	return ensureDir(s.location)
}

func (s *fileStore) Close() error {
	s.cache.closeAll()
	return s.engine.Close()
}

func (s *fileStore) WriteBlock(key Key, payload []byte) (bool, error) {
	return s.writer.writePayload(Block, key, payload)
}
func (s *fileStore) WriteUndo(key Key, payload []byte) (bool, error) {
	return s.writer.writePayload(Undo, key, payload)
}
func (s *fileStore) WriteMerkle(key Key, payload []byte) (bool, error) {
	return s.writer.writePayload(Merkle, key, payload)
}

func (s *fileStore) ReadBlock(key Key, offset, size int64) ([]byte, bool, error) {
	return s.reader.readPayload(Block, key, offset, size)
}
func (s *fileStore) ReadUndo(key Key, offset, size int64) ([]byte, bool, error) {
	return s.reader.readPayload(Undo, key, offset, size)
}
func (s *fileStore) ReadMerkle(key Key, offset, size int64) ([]byte, bool, error) {
	return s.reader.readPayload(Merkle, key, offset, size)
}

func (s *fileStore) HasBlock(key Key) (bool, error)  { return s.reader.hasPayload(Block, key) }
func (s *fileStore) HasUndo(key Key) (bool, error)   { return s.reader.hasPayload(Undo, key) }
func (s *fileStore) HasMerkle(key Key) (bool, error) { return s.reader.hasPayload(Merkle, key) }

func (s *fileStore) PruneBlock(key Key) (bool, error)  { return s.pruner.prunePayload(Block, key) }
func (s *fileStore) PruneUndo(key Key) (bool, error)   { return s.pruner.prunePayload(Undo, key) }
func (s *fileStore) PruneMerkle(key Key) (bool, error) { return s.pruner.prunePayload(Merkle, key) }

func (s *fileStore) Batch() Batch {
	return &fileBatch{store: s}
}
