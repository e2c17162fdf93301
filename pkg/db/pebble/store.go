package pebble

import (
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/trustdble/tablekv/pkg/db"
)

const (
	defaultCacheSize        = 64 << 20 // 64MB
	defaultMemTableSize     = 32 << 20 // 32MB
	defaultMaxMemTableTotal = 128 << 20
)

// Options configures a pebble backed KVStore.
type Options struct {
	// Path of the database directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps all data in a memory filesystem; used by tests and
	// throwaway nodes.
	InMemory  bool
	CacheSize int64
}

// KVStore is a db.KVStore on top of a pebble database.
type KVStore struct {
	db     *pebble.DB
	cache  *pebble.Cache
	closed bool
	mu     sync.RWMutex
}

// NewKVStore opens an in-memory store.
func NewKVStore() (*KVStore, error) {
	return Open(Options{InMemory: true})
}

// Open opens (creating if needed) a pebble store with the given options.
func Open(opts Options) (*KVStore, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	cache := pebble.NewCache(opts.CacheSize)
	pebbleOpts := &pebble.Options{
		Cache:                       cache,
		MemTableSize:                defaultMemTableSize,
		MemTableStopWritesThreshold: defaultMaxMemTableTotal / defaultMemTableSize,
	}
	path := opts.Path
	if opts.InMemory {
		pebbleOpts.FS = vfs.NewMem()
		path = ""
	} else if path == "" {
		cache.Unref()
		return nil, errors.New("pebble: path required for on-disk store")
	}

	pdb, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		cache.Unref()
		return nil, err
	}

	return &KVStore{db: pdb, cache: cache}, nil
}

func (p *KVStore) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrClosed
	}

	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (p *KVStore) Put(key, value []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	return p.db.Set(key, value, pebble.Sync)
}

func (p *KVStore) Delete(key []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	return p.db.Delete(key, pebble.Sync)
}

func (p *KVStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	err := p.db.Close()
	p.cache.Unref()
	return err
}

var _ db.KVStore = (*KVStore)(nil)
