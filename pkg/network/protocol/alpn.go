package protocol

import (
	"fmt"
	"strings"
)

const (
	protocolPrefix = "tablekv"

	// Current protocol version
	currentVersion = "0"

	// Ledger id length in nibbles
	ledgerIDLength = 8
)

// ProtocolID represents a complete ALPN protocol identifier.
// Format: tablekv/<version>/<ledger-id>
type ProtocolID struct {
	Version string
	// LedgerID is the 8-nibble identifier of the ledger being served
	LedgerID string
}

// NewProtocolID creates a ProtocolID for ledgerID at the current version.
func NewProtocolID(ledgerID string) *ProtocolID {
	return &ProtocolID{
		Version:  currentVersion,
		LedgerID: ledgerID,
	}
}

// String converts the ProtocolID to its string representation, for example
// "tablekv/0/deadbeef".
func (p *ProtocolID) String() string {
	return strings.Join([]string{protocolPrefix, p.Version, p.LedgerID}, "/")
}

// ParseProtocolID parses an ALPN protocol string into a ProtocolID. The
// ledger id must be 8 lowercase hex nibbles.
func ParseProtocolID(protocol string) (*ProtocolID, error) {
	parts := strings.Split(protocol, "/")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid protocol format: %s", protocol)
	}
	if parts[0] != protocolPrefix {
		return nil, fmt.Errorf("invalid protocol prefix: %s", parts[0])
	}
	if parts[1] != currentVersion {
		return nil, fmt.Errorf("unsupported protocol version: %s", parts[1])
	}

	ledgerID := parts[2]
	if len(ledgerID) != ledgerIDLength {
		return nil, fmt.Errorf("invalid ledger id length: %s", ledgerID)
	}
	for _, c := range ledgerID {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return nil, fmt.Errorf("invalid ledger id character: %c", c)
		}
	}

	return &ProtocolID{
		Version:  parts[1],
		LedgerID: ledgerID,
	}, nil
}

// ValidateALPNProtocol reports whether protocol is a well formed identifier.
func ValidateALPNProtocol(protocol string) error {
	_, err := ParseProtocolID(protocol)
	return err
}
