// Package leveldb provides a db.KVStore backed by goleveldb.
package leveldb

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/trustdble/tablekv/pkg/db"
)

// Options configures a leveldb backed KVStore.
type Options struct {
	// Path of the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
}

// KVStore is a db.KVStore on top of a goleveldb database.
type KVStore struct {
	db     *leveldb.DB
	closed bool
	mu     sync.RWMutex
}

var syncWrites = &opt.WriteOptions{Sync: true}

// NewKVStore opens an in-memory store.
func NewKVStore() (*KVStore, error) {
	return Open(Options{InMemory: true})
}

// Open opens (creating if needed) a leveldb store with the given options.
func Open(opts Options) (*KVStore, error) {
	var (
		ldb *leveldb.DB
		err error
	)
	switch {
	case opts.InMemory:
		ldb, err = leveldb.Open(storage.NewMemStorage(), nil)
	case opts.Path == "":
		return nil, errors.New("leveldb: path required for on-disk store")
	default:
		ldb, err = leveldb.OpenFile(opts.Path, nil)
	}
	if err != nil {
		return nil, err
	}
	return &KVStore{db: ldb}, nil
}

func (s *KVStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, db.ErrClosed
	}

	// goleveldb already returns a private copy.
	value, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, db.ErrNotFound
	}
	return value, err
}

func (s *KVStore) Put(key, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return db.ErrClosed
	}
	return s.db.Put(key, value, syncWrites)
}

func (s *KVStore) Delete(key []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return db.ErrClosed
	}
	return s.db.Delete(key, syncWrites)
}

func (s *KVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var _ db.KVStore = (*KVStore)(nil)
