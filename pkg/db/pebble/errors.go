package pebble

import "github.com/trustdble/tablekv/pkg/db"

const (
	ErrInIteratorCreation = "pebble: create iterator: %w"
	ErrIteratorValue      = "pebble: read iterator value: %w"
)

// Re-exported so callers holding a *pebble.KVStore need not import pkg/db.
var (
	ErrClosed          = db.ErrClosed
	ErrNotFound        = db.ErrNotFound
	ErrBatchDone       = db.ErrBatchDone
	ErrIteratorInvalid = db.ErrIteratorInvalid
)
