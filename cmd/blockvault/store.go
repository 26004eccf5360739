package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/zeebo/blake3"

	"github.com/blockberries/blockvault/blockstore"
	"github.com/blockberries/blockvault/config"
	"github.com/blockberries/blockvault/logging"
	"github.com/blockberries/blockvault/metrics"
)

// hashKey derives a content hash the way a BLOCK or UNDO payload would
// be keyed when no caller-supplied key is available, e.g. the recovery
// scanner re-deriving keys from segment bodies.
func hashKey(body []byte) (blockstore.Key, error) {
	sum := blake3.Sum256(body)
	var k blockstore.Key
	copy(k[:], sum[:])
	return k, nil
}

// parseKey decodes a hex-encoded content hash given on the command line.
func parseKey(s string) (blockstore.Key, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return blockstore.Key{}, fmt.Errorf("invalid key %q: %w", s, err)
	}
	if len(b) != blockstore.KeySize {
		return blockstore.Key{}, fmt.Errorf("key %q must be %d bytes, got %d", s, blockstore.KeySize, len(b))
	}
	var k blockstore.Key
	copy(k[:], b)
	return k, nil
}

// payloadType maps the CLI's --type flag to a blockstore.PayloadType.
func payloadType(s string) (blockstore.PayloadType, error) {
	switch s {
	case "block":
		return blockstore.Block, nil
	case "undo":
		return blockstore.Undo, nil
	case "merkle":
		return blockstore.Merkle, nil
	default:
		return 0, fmt.Errorf("invalid type %q (must be one of: block, undo, merkle)", s)
	}
}

// openStore loads the configuration named by cfgFile and opens the
// store it describes, wired to a Prometheus metrics recorder when
// enabled and a logger matching the configured level and format.
func openStore() (blockstore.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger := newLogger(cfg)
	logger.Debug("opening store", logging.Backend(cfg.BlockStore.Backend), logging.Path(cfg.BlockStore.Location))

	var m blockstore.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
	} else {
		m = metrics.NewNopMetrics()
	}

	store, err := blockstore.Open(cfg.ToBlockStoreConfig(), hashKey, m, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	return store, cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	level := parseLevel(cfg.Logging.Level)
	if cfg.Logging.Format == "json" {
		return logging.NewJSONLogger(os.Stderr, level)
	}
	return logging.NewTextLogger(os.Stderr, level)
}

// parseLevel maps a config level string to a slog.Level, defaulting to
// info for anything config.Validate would already have rejected.
func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
