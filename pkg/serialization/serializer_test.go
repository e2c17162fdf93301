package serialization_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustdble/tablekv/pkg/serialization"
	"github.com/trustdble/tablekv/pkg/serialization/codec"
)

type invocation struct {
	Function string   `json:"function"`
	Args     []string `json:"args"`
}

func TestJSONSerializerPayloads(t *testing.T) {
	serializer := serialization.NewSerializer(&codec.JSONCodec{})

	tests := []struct {
		name  string
		value any
		into  func() any
	}{
		{
			name:  "rows",
			value: map[string]string{"01": "ff", "02": "ee"},
			into:  func() any { return &map[string]string{} },
		},
		{
			name:  "keys",
			value: []string{"01", "02"},
			into:  func() any { return &[]string{} },
		},
		{
			name:  "invocation",
			value: invocation{Function: "get", Args: []string{"ab", "01"}},
			into:  func() any { return &invocation{} },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := serializer.Encode(tc.value)
			require.NoError(t, err)

			decoded := tc.into()
			require.NoError(t, serializer.Decode(encoded, decoded))
			assert.EqualValues(t, tc.value, derefAny(decoded))
		})
	}
}

func derefAny(v any) any {
	switch p := v.(type) {
	case *map[string]string:
		return *p
	case *[]string:
		return *p
	case *invocation:
		return *p
	}
	return v
}

func TestJSONSerializerStrict(t *testing.T) {
	payload := []byte(`{"function":"get","args":[],"extra":true}`)

	var decoded invocation
	strict := serialization.NewSerializer(&codec.JSONCodec{Strict: true})
	assert.Error(t, strict.Decode(payload, &decoded))

	lenient := serialization.NewSerializer(&codec.JSONCodec{})
	require.NoError(t, lenient.Decode(payload, &decoded))
	assert.Equal(t, "get", decoded.Function)
}

func TestJSONSerializerRejectsMalformed(t *testing.T) {
	serializer := serialization.NewSerializer(&codec.JSONCodec{})

	var rows map[string]string
	assert.Error(t, serializer.Decode([]byte(`{"01":`), &rows))
	assert.Error(t, serializer.Decode([]byte(`["01"]`), &rows))
}
