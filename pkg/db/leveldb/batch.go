package leveldb

import (
	"sync/atomic"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/trustdble/tablekv/pkg/db"
)

type Batch struct {
	store *KVStore
	batch *leveldb.Batch
	done  atomic.Bool
}

func (s *KVStore) NewBatch() db.Batch {
	return &Batch{store: s, batch: new(leveldb.Batch)}
}

func (b *Batch) Put(key, value []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.batch.Put(key, value)
	return nil
}

func (b *Batch) Delete(key []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.batch.Delete(key)
	return nil
}

func (b *Batch) Commit() error {
	if b.done.Load() {
		return db.ErrBatchDone
	}

	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	if b.store.closed {
		return db.ErrClosed
	}

	if err := b.store.db.Write(b.batch, syncWrites); err != nil {
		return err
	}
	b.done.Store(true)
	return nil
}

func (b *Batch) Close() error {
	if b.done.CompareAndSwap(false, true) {
		b.batch.Reset()
	}
	return nil
}
