package contract

import (
	"errors"

	"github.com/trustdble/tablekv/internal/table"
)

var (
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrUnknownFunction = errors.New("unknown function")
	ErrWrongArity      = errors.New("wrong number of arguments")
	ErrReadOnly        = errors.New("function modifies state and cannot be evaluated")
)

// Result codes carried on the wire.
const (
	CodeOK              = "ok"
	CodeInvalidEncoding = "invalid_encoding"
	CodeNotFound        = "not_found"
	CodeInvalidPayload  = "invalid_payload"
	CodeUnknownFunction = "unknown_function"
	CodeInternal        = "internal"
)

// Code classifies err into a result code.
func Code(err error) string {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, table.ErrInvalidEncoding):
		return CodeInvalidEncoding
	case errors.Is(err, table.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrWrongArity):
		return CodeInvalidPayload
	case errors.Is(err, ErrUnknownFunction), errors.Is(err, ErrReadOnly):
		return CodeUnknownFunction
	default:
		return CodeInternal
	}
}
