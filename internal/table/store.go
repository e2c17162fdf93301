// Package table emulates named tables on a flat, ordered ledger key space.
//
// A row lives under the composite key table#key. Range scans over
// [table#, table$) return exactly one table's rows. Table identifiers, row
// keys and values all travel as hex text; values are stored as raw bytes.
//
// Batch operations are sequential by default: Put and Delete stop at the
// first failing pair and leave earlier writes in place. WithAtomicBatches
// switches to check-everything-then-commit when the stub supports it.
package table

import (
	"slices"

	"github.com/rs/zerolog"

	"github.com/trustdble/tablekv/internal/ledger"
)

// Store is the table facade over a ledger stub. It holds no state of its own
// and is safe for concurrent use as far as the stub is.
type Store struct {
	stub   ledger.Stub
	log    zerolog.Logger
	atomic bool
}

type Option func(*Store)

// WithLogger sets the logger used for not-found and validation warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithAtomicBatches makes Put and Delete all-or-nothing when the stub
// implements ledger.Batcher.
func WithAtomicBatches() Option {
	return func(s *Store) { s.atomic = true }
}

func NewStore(stub ledger.Stub, opts ...Option) *Store {
	s := &Store{stub: stub, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put writes every key/value pair of pairs into table, in ascending key order.
func (s *Store) Put(table string, pairs map[string]string) error {
	if err := s.validateTable(table); err != nil {
		return err
	}
	if b, ok := s.batcher(); ok {
		return s.putAtomic(b, table, pairs)
	}

	for _, key := range sortedKeys(pairs) {
		if err := validateKey(key); err != nil {
			return err
		}
		raw, err := decodeValue(key, pairs[key])
		if err != nil {
			return err
		}
		if err := s.stub.PutState(CompositeKey(table, key), raw); err != nil {
			return err
		}
	}
	s.log.Debug().Str("table", table).Int("rows", len(pairs)).Msg("put")
	return nil
}

func (s *Store) putAtomic(b ledger.Batcher, table string, pairs map[string]string) error {
	puts := make([]ledger.KV, 0, len(pairs))
	for _, key := range sortedKeys(pairs) {
		if err := validateKey(key); err != nil {
			return err
		}
		raw, err := decodeValue(key, pairs[key])
		if err != nil {
			return err
		}
		puts = append(puts, ledger.KV{Key: CompositeKey(table, key), Value: raw})
	}
	if err := b.ApplyBatch(puts, nil); err != nil {
		return err
	}
	s.log.Debug().Str("table", table).Int("rows", len(pairs)).Msg("put batch")
	return nil
}

// Get returns the hex encoded value of key in table. A missing key and a key
// holding an empty value are both reported as *NotFoundError.
func (s *Store) Get(table, key string) (string, error) {
	if err := s.validateTable(table); err != nil {
		return "", err
	}
	if err := validateKey(key); err != nil {
		return "", err
	}

	raw, err := s.stub.GetState(CompositeKey(table, key))
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		s.log.Warn().Str("table", table).Str("key", key).Msg("key does not exist")
		return "", &NotFoundError{Key: key}
	}
	return encode(raw), nil
}

// GetAll returns every row of table keyed by row key, values hex encoded.
// The whole table is read into memory.
func (s *Store) GetAll(table string) (rows map[string]string, err error) {
	if err := s.validateTable(table); err != nil {
		return nil, err
	}

	lower, upper := RangeBounds(table)
	iter, err := s.stub.GetStateByRange(lower, upper)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := iter.Close(); cerr != nil && err == nil {
			rows, err = nil, cerr
		}
	}()

	rows = make(map[string]string)
	for iter.Next() {
		key, err := RowKey(iter.Key())
		if err != nil {
			return nil, err
		}
		value, err := iter.Value()
		if err != nil {
			return nil, err
		}
		rows[key] = encode(value)
	}
	return rows, nil
}

// Delete removes keys from table in the given order. Each key is checked for
// existence right before it is deleted; the first missing key aborts with
// *NotFoundError and keys after it are left untouched.
func (s *Store) Delete(table string, keys []string) error {
	if err := s.validateTable(table); err != nil {
		return err
	}
	if b, ok := s.batcher(); ok {
		return s.deleteAtomic(b, table, keys)
	}

	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return err
		}
		compositeKey := CompositeKey(table, key)
		exists, err := s.Exists(compositeKey)
		if err != nil {
			return err
		}
		if !exists {
			s.log.Warn().Str("table", table).Str("key", key).Msg("key does not exist")
			return &NotFoundError{Key: key}
		}
		if err := s.stub.DelState(compositeKey); err != nil {
			return err
		}
	}
	s.log.Debug().Str("table", table).Int("rows", len(keys)).Msg("delete")
	return nil
}

func (s *Store) deleteAtomic(b ledger.Batcher, table string, keys []string) error {
	dels := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return err
		}
		compositeKey := CompositeKey(table, key)
		exists, err := s.Exists(compositeKey)
		if err != nil {
			return err
		}
		// A repeated key would already be gone by the time the sequential
		// path reached it.
		if _, dup := seen[compositeKey]; !exists || dup {
			s.log.Warn().Str("table", table).Str("key", key).Msg("key does not exist")
			return &NotFoundError{Key: key}
		}
		seen[compositeKey] = struct{}{}
		dels = append(dels, compositeKey)
	}
	if err := b.ApplyBatch(nil, dels); err != nil {
		return err
	}
	s.log.Debug().Str("table", table).Int("rows", len(keys)).Msg("delete batch")
	return nil
}

// Exists probes an exact composite key. It is not table scoped. Empty values
// count as absent.
func (s *Store) Exists(compositeKey string) (bool, error) {
	value, err := s.stub.GetStringState(compositeKey)
	if err != nil {
		return false, err
	}
	return value != "", nil
}

// Drop deletes every row of table, including rows holding an empty value.
// Rows come from the range scan, so there is no per-key existence check.
func (s *Store) Drop(table string) error {
	rows, err := s.GetAll(table)
	if err != nil {
		return err
	}
	dels := make([]string, 0, len(rows))
	for _, key := range sortedKeys(rows) {
		dels = append(dels, CompositeKey(table, key))
	}

	if b, ok := s.batcher(); ok {
		if err := b.ApplyBatch(nil, dels); err != nil {
			return err
		}
	} else {
		for _, compositeKey := range dels {
			if err := s.stub.DelState(compositeKey); err != nil {
				return err
			}
		}
	}
	s.log.Debug().Str("table", table).Int("rows", len(dels)).Msg("drop")
	return nil
}

func (s *Store) validateTable(table string) error {
	if err := ValidateEncoded(table); err != nil {
		s.log.Warn().Str("table", table).Msg("illegal table name")
		return err
	}
	return nil
}

func (s *Store) batcher() (ledger.Batcher, bool) {
	if !s.atomic {
		return nil, false
	}
	b, ok := s.stub.(ledger.Batcher)
	return b, ok
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
