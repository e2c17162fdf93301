// Package serialization encodes transaction payloads and wire messages.
package serialization

import "github.com/trustdble/tablekv/pkg/serialization/codec"

// Serializer encodes and decodes values with one codec.
type Serializer struct {
	codec codec.Codec
}

func NewSerializer(c codec.Codec) *Serializer {
	return &Serializer{codec: c}
}

func (s *Serializer) Encode(v any) ([]byte, error) {
	return s.codec.Marshal(v)
}

// Decode fills v, which must be a pointer, from data.
func (s *Serializer) Decode(data []byte, v any) error {
	return s.codec.Unmarshal(data, v)
}
