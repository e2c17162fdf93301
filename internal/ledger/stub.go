// Package ledger defines the ordered state store that table data lives in,
// and adapts a pkg/db KVStore to it.
package ledger

// Stub is the state access surface of the underlying ledger. Keys are
// strings; ordering is lexicographic over their bytes.
type Stub interface {
	PutState(key string, value []byte) error
	// GetState returns nil and no error when the key is absent.
	GetState(key string) ([]byte, error)
	// GetStringState returns "" and no error when the key is absent.
	GetStringState(key string) (string, error)
	DelState(key string) error
	// GetStateByRange iterates keys in [start, end) in ascending order.
	GetStateByRange(start, end string) (StateIterator, error)
}

// StateIterator is a finite, single pass sequence of state entries.
// It must be closed after use.
type StateIterator interface {
	Next() bool
	Key() string
	Value() ([]byte, error)
	Close() error
}

// KV is a single state write.
type KV struct {
	Key   string
	Value []byte
}

// Batcher is implemented by stubs that can apply a group of writes and
// deletions atomically.
type Batcher interface {
	ApplyBatch(puts []KV, dels []string) error
}
