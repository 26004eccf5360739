package blockstore

import (
	"bytes"
	"sort"
	"sync"
)

// memoryEngine is an in-process KVEngine backed by a map whose keys are
// sorted when an iterator is created. Every
// Get/Value/Key returns a fresh copy so callers can never mutate
// engine-internal state through a returned slice.
type memoryEngine struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// OpenMemoryEngine returns a KVEngine that keeps all data in memory.
// It is used for tests and for Config.Memory deployments; it never
// persists anything to disk.
func OpenMemoryEngine() KVEngine {
	return &memoryEngine{data: make(map[string][]byte)}
}

func (e *memoryEngine) Get(key []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (e *memoryEngine) Put(key, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (e *memoryEngine) Delete(key []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.data, string(key))
	return nil
}

func (e *memoryEngine) Has(key []byte) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.data[string(key)]
	return ok, nil
}

func (e *memoryEngine) NewIterator(prefix []byte) KVIterator {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var keys []string
	for k := range e.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = append([]byte(nil), e.data[k]...)
	}
	return &memoryIterator{keys: keys, values: values, pos: -1}
}

func (e *memoryEngine) NewBatch() KVBatch {
	return &memoryBatch{engine: e}
}

func (e *memoryEngine) Close() error {
	return nil
}

type memoryIterator struct {
	keys   []string
	values [][]byte
	pos    int
}

func (i *memoryIterator) Next() bool {
	i.pos++
	return i.pos < len(i.keys)
}

func (i *memoryIterator) Key() []byte {
	return []byte(i.keys[i.pos])
}

func (i *memoryIterator) Value() []byte {
	return i.values[i.pos]
}

func (i *memoryIterator) Close() {}

type memoryOp struct {
	key    []byte
	value  []byte
	delete bool
}

type memoryBatch struct {
	engine *memoryEngine
	ops    []memoryOp
}

func (b *memoryBatch) Put(key, value []byte) {
	b.ops = append(b.ops, memoryOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
}

func (b *memoryBatch) Delete(key []byte) {
	b.ops = append(b.ops, memoryOp{key: append([]byte(nil), key...), delete: true})
}

func (b *memoryBatch) Commit() error {
	b.engine.mu.Lock()
	defer b.engine.mu.Unlock()
	for _, op := range b.ops {
		if op.delete {
			delete(b.engine.data, string(op.key))
			continue
		}
		b.engine.data[string(op.key)] = op.value
	}
	return nil
}
