package table

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEncoding = errors.New("invalid hex encoding")
	ErrNotFound        = errors.New("key not found")
	ErrMalformedKey    = errors.New("malformed composite key")
)

// EncodingError reports a table identifier, row key or value that is not
// valid hex text. For values, Value holds the row key the value belongs to.
type EncodingError struct {
	Field string
	Value string
	Err   error
}

func (e *EncodingError) Error() string {
	if e.Field == "table" {
		return "illegal table name: table name must be hex encoded"
	}
	if e.Field == "value" {
		return fmt.Sprintf("error decoding hex encoded value of key %s: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("illegal %s %q: must be hex encoded", e.Field, e.Value)
}

func (e *EncodingError) Is(target error) bool { return target == ErrInvalidEncoding }

func (e *EncodingError) Unwrap() error { return e.Err }

// NotFoundError names the row key that was missing.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("key %s does not exist", e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// MalformedKeyError is returned when a range scan yields a key without a
// Delimiter, which only a foreign writer can produce.
type MalformedKeyError struct {
	Key string
}

func (e *MalformedKeyError) Error() string {
	return fmt.Sprintf("composite key %q has no delimiter", e.Key)
}

func (e *MalformedKeyError) Is(target error) bool { return target == ErrMalformedKey }
