package blockstore

import (
	"fmt"
	"path/filepath"

	"github.com/blockberries/blockvault/logging"
)

// Backend selects which Store implementation Open constructs.
type Backend string

const (
	// BackendFile is the file-backed store: capped segment files with
	// a side index kept in an ordered KV engine.
	BackendFile Backend = "file"
	// BackendLevelDB is the KV-backed store using goleveldb directly.
	BackendLevelDB Backend = "leveldb"
	// BackendBadger is the KV-backed store using badger/v4 directly.
	BackendBadger Backend = "badger"
)

// defaultMaxFileLength is used by DefaultConfig; it has no significance
// to the algorithms, which treat it as an opaque positive cap.
const defaultMaxFileLength = 128 * 1024 * 1024

// Config configures a Store. Location must be an absolute path.
// MaxFileLength applies only to the file back-end. Memory, when true,
// replaces the on-disk KV engine with an in-process one: for a
// KV-backed store that engine holds the payloads, for the file back-end
// it holds the side index (segment files are still written under
// Location).
type Config struct {
	Backend       Backend
	Location      string
	MaxFileLength int64
	Memory        bool
	Magic         uint32
	// IndexEngine selects the KV engine backing the file store's side
	// index; it is ignored when Backend is BackendLevelDB or
	// BackendBadger, since those ARE the KV engine.
	IndexEngine Backend
}

// DefaultConfig returns a Config with conservative, non-empty
// defaults; Location is left blank and must be set by the caller.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendFile,
		MaxFileLength: defaultMaxFileLength,
		IndexEngine:   BackendLevelDB,
	}
}

// Validate checks the fields Open and the allocator depend on,
// matching the store's construction-time failure modes.
func (c Config) Validate() error {
	if !filepath.IsAbs(c.Location) {
		return fmt.Errorf("%w: location not absolute: %q", ErrConfig, c.Location)
	}
	switch c.Backend {
	case BackendFile:
		if c.MaxFileLength <= 0 {
			return fmt.Errorf("%w: invalid max file length: %d", ErrConfig, c.MaxFileLength)
		}
		if !c.Memory {
			switch c.IndexEngine {
			case BackendLevelDB, BackendBadger:
			default:
				return fmt.Errorf("%w: unknown index engine: %q", ErrConfig, c.IndexEngine)
			}
		}
	case BackendLevelDB, BackendBadger:
	default:
		return fmt.Errorf("%w: unknown backend: %q", ErrConfig, c.Backend)
	}
	return nil
}

// Open constructs and opens a Store per Config.Backend. hashFunc is
// required by the file back-end's recovery scanner; it may be
// nil for the KV back-end, which never scans segment files. A nil
// logger discards every log line.
func Open(cfg Config, hashFunc HashFunc, metrics Metrics, logger *logging.Logger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	switch cfg.Backend {
	case BackendFile:
		return openFileStore(cfg, hashFunc, metrics, logger)
	case BackendLevelDB:
		return openKVStore(cfg, BackendLevelDB, metrics, logger)
	case BackendBadger:
		return openKVStore(cfg, BackendBadger, metrics, logger)
	default:
		return nil, fmt.Errorf("%w: unknown backend: %q", ErrConfig, cfg.Backend)
	}
}

func openEngine(location string, engine Backend, memory bool) (KVEngine, error) {
	if memory {
		return OpenMemoryEngine(), nil
	}
	switch engine {
	case BackendLevelDB:
		return OpenLevelDBEngine(location)
	case BackendBadger:
		return OpenBadgerEngine(location)
	default:
		return nil, fmt.Errorf("%w: unknown index engine: %q", ErrConfig, engine)
	}
}
