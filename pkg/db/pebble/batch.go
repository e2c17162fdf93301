package pebble

import (
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"github.com/trustdble/tablekv/pkg/db"
)

// Batch collects writes that land together on Commit.
type Batch struct {
	store     *KVStore
	batch     *pebble.Batch
	committed atomic.Bool
	closed    atomic.Bool
}

func (p *KVStore) NewBatch() db.Batch {
	return &Batch{
		store: p,
		batch: p.db.NewBatch(),
	}
}

func (b *Batch) done() bool {
	return b.committed.Load() || b.closed.Load()
}

func (b *Batch) Put(key, value []byte) error {
	if b.done() {
		return ErrBatchDone
	}
	return b.batch.Set(key, value, nil)
}

func (b *Batch) Delete(key []byte) error {
	if b.done() {
		return ErrBatchDone
	}
	return b.batch.Delete(key, nil)
}

func (b *Batch) Commit() error {
	if b.done() {
		return ErrBatchDone
	}

	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	if b.store.closed {
		return ErrClosed
	}

	if err := b.batch.Commit(pebble.Sync); err != nil {
		return err
	}
	b.committed.Store(true)
	return nil
}

// Close releases the batch. Uncommitted writes are discarded.
func (b *Batch) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.batch.Close()
}
