package ledger

import (
	"errors"
	"fmt"

	"github.com/trustdble/tablekv/pkg/db"
)

// KVStub implements Stub and Batcher on top of a db.KVStore.
type KVStub struct {
	kv db.KVStore
}

// NewKVStub wraps kv. The stub does not own kv; closing it is up to the caller.
func NewKVStub(kv db.KVStore) *KVStub {
	return &KVStub{kv: kv}
}

func (s *KVStub) PutState(key string, value []byte) error {
	return s.kv.Put([]byte(key), value)
}

func (s *KVStub) GetState(key string) ([]byte, error) {
	value, err := s.kv.Get([]byte(key))
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *KVStub) GetStringState(key string) (string, error) {
	value, err := s.GetState(key)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

func (s *KVStub) DelState(key string) error {
	return s.kv.Delete([]byte(key))
}

func (s *KVStub) GetStateByRange(start, end string) (StateIterator, error) {
	iter, err := s.kv.NewIterator([]byte(start), []byte(end))
	if err != nil {
		return nil, err
	}
	return &stateIterator{iter: iter}, nil
}

// ApplyBatch commits puts then dels in a single db batch.
func (s *KVStub) ApplyBatch(puts []KV, dels []string) error {
	batch := s.kv.NewBatch()
	defer batch.Close() //nolint:errcheck

	for _, kv := range puts {
		if err := batch.Put([]byte(kv.Key), kv.Value); err != nil {
			return fmt.Errorf("batch put %q: %w", kv.Key, err)
		}
	}
	for _, key := range dels {
		if err := batch.Delete([]byte(key)); err != nil {
			return fmt.Errorf("batch delete %q: %w", key, err)
		}
	}
	return batch.Commit()
}

type stateIterator struct {
	iter db.Iterator
}

func (it *stateIterator) Next() bool             { return it.iter.Next() }
func (it *stateIterator) Key() string            { return string(it.iter.Key()) }
func (it *stateIterator) Value() ([]byte, error) { return it.iter.Value() }
func (it *stateIterator) Close() error           { return it.iter.Close() }

var (
	_ Stub    = (*KVStub)(nil)
	_ Batcher = (*KVStub)(nil)
)
