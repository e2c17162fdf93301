package leveldb

import (
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/trustdble/tablekv/pkg/db"
)

type Iterator struct {
	iter iterator.Iterator
}

func (s *KVStore) NewIterator(start, end []byte) (db.Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, db.ErrClosed
	}

	return &Iterator{iter: s.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)}, nil
}

func (it *Iterator) Next() bool {
	return it.iter.Next()
}

func (it *Iterator) Key() []byte {
	key := it.iter.Key()
	result := make([]byte, len(key))
	copy(result, key)
	return result
}

func (it *Iterator) Value() ([]byte, error) {
	if !it.iter.Valid() {
		if err := it.iter.Error(); err != nil {
			return nil, err
		}
		return nil, db.ErrIteratorInvalid
	}

	val := it.iter.Value()
	result := make([]byte, len(val))
	copy(result, val)
	return result, nil
}

func (it *Iterator) Valid() bool {
	return it.iter.Valid()
}

func (it *Iterator) Close() error {
	err := it.iter.Error()
	it.iter.Release()
	return err
}
