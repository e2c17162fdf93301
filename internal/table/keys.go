package table

import "strings"

const (
	// Delimiter separates the table identifier from the row key in a
	// composite key. Hex text never contains it, so its first occurrence is
	// always the boundary.
	Delimiter = "#"
	// RangeEndMarker is the exclusive upper bound of a table's key range.
	// It is the byte right after Delimiter and no hex digit sorts between
	// the two, so [table+Delimiter, table+RangeEndMarker) holds exactly the
	// rows of table.
	RangeEndMarker = "$"
)

// CompositeKey returns the store key of row key in table. Both parts are
// expected to be hex text already.
func CompositeKey(table, key string) string {
	return table + Delimiter + key
}

// RangeBounds returns the inclusive lower and exclusive upper scan bounds
// covering every row of table.
func RangeBounds(table string) (lower, upper string) {
	return table + Delimiter, table + RangeEndMarker
}

// RowKey extracts the row key from a composite key.
func RowKey(compositeKey string) (string, error) {
	i := strings.Index(compositeKey, Delimiter)
	if i < 0 {
		return "", &MalformedKeyError{Key: compositeKey}
	}
	return compositeKey[i+len(Delimiter):], nil
}

// Address returns the table identifier for a human readable table name.
func Address(name string) string {
	return encode([]byte(name))
}
