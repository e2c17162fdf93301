package client

import (
	"fmt"

	"github.com/trustdble/tablekv/internal/contract"
	"github.com/trustdble/tablekv/internal/table"
)

// RemoteError is a failure reported by the node. It matches the local
// sentinel for its code, so errors.Is(err, table.ErrNotFound) works across
// the wire.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	switch e.Code {
	case contract.CodeNotFound:
		return target == table.ErrNotFound
	case contract.CodeInvalidEncoding:
		return target == table.ErrInvalidEncoding
	case contract.CodeInvalidPayload:
		return target == contract.ErrInvalidPayload
	case contract.CodeUnknownFunction:
		return target == contract.ErrUnknownFunction
	default:
		return false
	}
}
