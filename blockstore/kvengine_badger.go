package blockstore

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// badgerEngine adapts github.com/dgraph-io/badger/v4 to KVEngine.
type badgerEngine struct {
	db *badger.DB
}

// OpenBadgerEngine opens (creating if absent) a BadgerDB database at
// path as a KVEngine.
func OpenBadgerEngine(path string) (KVEngine, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithCompression(options.Snappy).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badgerdb: %w", err)
	}
	return &badgerEngine{db: db}, nil
}

func (e *badgerEngine) Get(key []byte) ([]byte, error) {
	var out []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *badgerEngine) Put(key, value []byte) error {
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (e *badgerEngine) Delete(key []byte) error {
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (e *badgerEngine) Has(key []byte) (bool, error) {
	err := e.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (e *badgerEngine) NewIterator(prefix []byte) KVIterator {
	txn := e.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = true
	it := txn.NewIterator(opts)
	it.Rewind()
	return &badgerIterator{txn: txn, it: it, first: true}
}

func (e *badgerEngine) NewBatch() KVBatch {
	return &badgerBatch{wb: e.db.NewWriteBatch()}
}

func (e *badgerEngine) Close() error {
	return e.db.Close()
}

type badgerIterator struct {
	txn   *badger.Txn
	it    *badger.Iterator
	first bool
}

func (i *badgerIterator) Next() bool {
	if i.first {
		i.first = false
	} else {
		i.it.Next()
	}
	return i.it.Valid()
}

func (i *badgerIterator) Key() []byte {
	return append([]byte(nil), i.it.Item().Key()...)
}

func (i *badgerIterator) Value() []byte {
	v, _ := i.it.Item().ValueCopy(nil)
	return v
}

func (i *badgerIterator) Close() {
	i.it.Close()
	i.txn.Discard()
}

// badgerBatch adapts badger.WriteBatch to KVBatch. Unlike
// leveldb.Batch.Put/Delete (kvengine_leveldb.go), which only append to
// an in-memory buffer and cannot fail, WriteBatch.Set/Delete can fail
// independently of Flush (e.g. a value too large, or the batch already
// finished). KVBatch.Put/Delete return no error, so the first failure
// is latched in firstErr and the batch is cancelled; Commit reports it
// instead of flushing a batch that's missing a staged op.
type badgerBatch struct {
	wb       *badger.WriteBatch
	firstErr error
}

func (b *badgerBatch) Put(key, value []byte) {
	if b.firstErr != nil {
		return
	}
	if err := b.wb.Set(key, value); err != nil {
		b.firstErr = err
		b.wb.Cancel()
	}
}

func (b *badgerBatch) Delete(key []byte) {
	if b.firstErr != nil {
		return
	}
	if err := b.wb.Delete(key); err != nil {
		b.firstErr = err
		b.wb.Cancel()
	}
}

func (b *badgerBatch) Commit() error {
	if b.firstErr != nil {
		return fmt.Errorf("staging batch op: %w", b.firstErr)
	}
	return b.wb.Flush()
}
