package table

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Digest returns the hex encoded BLAKE2b-256 hash of table's rows. Rows are
// hashed in ascending key order, each as len(key)|key|len(value)|value over
// the hex text, lengths as little-endian uint32.
func (s *Store) Digest(table string) (string, error) {
	rows, err := s.GetAll(table)
	if err != nil {
		return "", err
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	var size [4]byte
	for _, key := range sortedKeys(rows) {
		for _, field := range []string{key, rows[key]} {
			binary.LittleEndian.PutUint32(size[:], uint32(len(field)))
			h.Write(size[:])
			h.Write([]byte(field))
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
