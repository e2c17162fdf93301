package client

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trustdble/tablekv/internal/contract"
	"github.com/trustdble/tablekv/internal/table"
	"github.com/trustdble/tablekv/pkg/network/cert"
)

func hexKey(id *cert.Identity) string {
	return hex.EncodeToString(id.PublicKey)
}

func TestRemoteErrorMatchesSentinels(t *testing.T) {
	tests := []struct {
		code   string
		target error
	}{
		{code: contract.CodeNotFound, target: table.ErrNotFound},
		{code: contract.CodeInvalidEncoding, target: table.ErrInvalidEncoding},
		{code: contract.CodeInvalidPayload, target: contract.ErrInvalidPayload},
		{code: contract.CodeUnknownFunction, target: contract.ErrUnknownFunction},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			err := error(&RemoteError{Code: tc.code, Message: "m"})
			assert.True(t, errors.Is(err, tc.target))
			assert.Equal(t, tc.code+": m", err.Error())
		})
	}

	internal := &RemoteError{Code: contract.CodeInternal}
	assert.False(t, errors.Is(internal, table.ErrNotFound))
}
