package blockstore

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// leveldbEngine adapts github.com/syndtr/goleveldb to KVEngine.
type leveldbEngine struct {
	db *leveldb.DB
}

// OpenLevelDBEngine opens (creating if absent) a goleveldb database at
// path as a KVEngine.
func OpenLevelDBEngine(path string) (KVEngine, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{NoSync: false})
	if err != nil {
		return nil, fmt.Errorf("opening leveldb: %w", err)
	}
	return &leveldbEngine{db: db}, nil
}

func (e *leveldbEngine) Get(key []byte) ([]byte, error) {
	v, err := e.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (e *leveldbEngine) Put(key, value []byte) error {
	return e.db.Put(key, value, &opt.WriteOptions{Sync: true})
}

func (e *leveldbEngine) Delete(key []byte) error {
	return e.db.Delete(key, &opt.WriteOptions{Sync: true})
}

func (e *leveldbEngine) Has(key []byte) (bool, error) {
	return e.db.Has(key, nil)
}

func (e *leveldbEngine) NewIterator(prefix []byte) KVIterator {
	it := e.db.NewIterator(util.BytesPrefix(prefix), nil)
	return &leveldbIterator{it: it}
}

func (e *leveldbEngine) NewBatch() KVBatch {
	return &leveldbBatch{db: e.db, batch: new(leveldb.Batch)}
}

func (e *leveldbEngine) Close() error {
	return e.db.Close()
}

type leveldbIterator struct {
	it iterator
}

// iterator is the subset of goleveldb's Iterator this adapter needs.
type iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
}

func (i *leveldbIterator) Next() bool {
	return i.it.Next()
}

func (i *leveldbIterator) Key() []byte {
	return append([]byte(nil), i.it.Key()...)
}

func (i *leveldbIterator) Value() []byte {
	return append([]byte(nil), i.it.Value()...)
}

func (i *leveldbIterator) Close() {
	i.it.Release()
}

type leveldbBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func (b *leveldbBatch) Put(key, value []byte) {
	b.batch.Put(key, value)
}

func (b *leveldbBatch) Delete(key []byte) {
	b.batch.Delete(key)
}

func (b *leveldbBatch) Commit() error {
	return b.db.Write(b.batch, &opt.WriteOptions{Sync: true})
}
