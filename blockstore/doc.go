// Package blockstore implements a content-addressed block store.
//
// It persists three kinds of fixed-meaning binary payloads — full blocks,
// undo coins, and merkle blocks — each keyed by a 32-byte hash. Two
// back-ends share the Store contract: a file-backed store that packs
// payloads into capped, append-only segment files indexed by a
// KVEngine, and a KV-backed store that delegates persistence directly
// to the same KVEngine.
package blockstore
