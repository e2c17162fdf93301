package protocol

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"github.com/quic-go/quic-go"
	"github.com/rs/zerolog"

	"github.com/trustdble/tablekv/pkg/network/transport"
)

// Config represents the configuration for a protocol Manager
type Config struct {
	// LedgerID is the 8 hex nibble identifier of the served ledger
	LedgerID string
	Logger   zerolog.Logger
	// OnStream, if set, is called for every accepted stream with a known kind.
	OnStream func(kind StreamKind)
}

// Manager implements transport.ConnectionHandler. It negotiates the ALPN
// protocol for one ledger and serves incoming streams through its Registry.
type Manager struct {
	Registry *Registry
	config   Config
	log      zerolog.Logger
}

// NewManager validates the ledger id and creates an empty registry.
func NewManager(config Config) (*Manager, error) {
	if config.LedgerID == "" {
		return nil, fmt.Errorf("ledger id required")
	}
	if err := ValidateALPNProtocol(NewProtocolID(config.LedgerID).String()); err != nil {
		return nil, fmt.Errorf("invalid ledger id format: %w", err)
	}

	return &Manager{
		Registry: NewRegistry(),
		config:   config,
		log:      config.Logger,
	}, nil
}

// OnConnection starts serving the streams of a new connection.
func (m *Manager) OnConnection(conn *transport.Conn) error {
	go m.handleStreams(m.Wrap(conn))
	return nil
}

// Wrap returns a ProtocolConn for conn that dispatches through m's registry.
func (m *Manager) Wrap(conn *transport.Conn) *ProtocolConn {
	return NewProtocolConn(conn, m.Registry, m.log)
}

// handleStreams accepts streams until the connection goes away.
func (m *Manager) handleStreams(protoConn *ProtocolConn) {
	defer protoConn.Close() //nolint:errcheck

	for {
		kind, err := protoConn.AcceptStream()
		if err == nil {
			if m.config.OnStream != nil {
				m.config.OnStream(kind)
			}
			continue
		}
		if protoConn.TConn.Context().Err() != nil || isConnectionClosed(err) {
			m.log.Debug().Hex("peer", protoConn.TConn.PeerKey()).Msg("connection closed")
			return
		}
		m.log.Debug().Err(err).Msg("stream accept error")
	}
}

// isConnectionClosed reports errors after which AcceptStream cannot succeed.
func isConnectionClosed(err error) bool {
	var (
		idleErr *quic.IdleTimeoutError
		appErr  *quic.ApplicationError
		trErr   *quic.TransportError
	)
	return errors.As(err, &idleErr) || errors.As(err, &appErr) || errors.As(err, &trErr) || errors.Is(err, net.ErrClosed)
}

// GetProtocols returns the single ALPN protocol this manager speaks.
func (m *Manager) GetProtocols() []string {
	return []string{NewProtocolID(m.config.LedgerID).String()}
}

// ValidateConnection checks the negotiated protocol names our ledger.
func (m *Manager) ValidateConnection(tlsState tls.ConnectionState) error {
	if tlsState.NegotiatedProtocol == "" {
		return fmt.Errorf("no protocol negotiated")
	}

	protocolID, err := ParseProtocolID(tlsState.NegotiatedProtocol)
	if err != nil {
		return fmt.Errorf("invalid protocol: %w", err)
	}
	if protocolID.LedgerID != m.config.LedgerID {
		return fmt.Errorf("ledger id mismatch: got %s, want %s", protocolID.LedgerID, m.config.LedgerID)
	}
	return nil
}
