package table

import "encoding/hex"

// ValidateEncoded reports whether s is well formed hex text: even length
// and only [0-9a-fA-F].
func ValidateEncoded(s string) error {
	if _, err := hex.DecodeString(s); err != nil {
		return &EncodingError{Field: "table", Value: s, Err: err}
	}
	return nil
}

func validateKey(key string) error {
	if _, err := hex.DecodeString(key); err != nil {
		return &EncodingError{Field: "key", Value: key, Err: err}
	}
	return nil
}

func decodeValue(key, value string) ([]byte, error) {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, &EncodingError{Field: "value", Value: key, Err: err}
	}
	return raw, nil
}

func encode(b []byte) string {
	return hex.EncodeToString(b)
}
