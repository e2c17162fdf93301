// Package transport runs mutually authenticated QUIC connections between
// tablekv peers.
package transport

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/rs/zerolog"
)

// MaxIdleTimeout defines the maximum duration a connection can be idle before timing out
const MaxIdleTimeout = 5 * time.Minute

// CertValidator performs TLS certificate validation and public key extraction
type CertValidator interface {
	// ValidateCertificate checks the format of a certificate
	ValidateCertificate(cert *x509.Certificate) error
	// ValidatePeerCertificate checks the format of a remote certificate and
	// whether its key is allowed to connect
	ValidatePeerCertificate(cert *x509.Certificate) error
	// ExtractPublicKey retrieves the Ed25519 public key from a certificate
	ExtractPublicKey(cert *x509.Certificate) (ed25519.PublicKey, error)
}

// ConnectionHandler processes new connections and validates their protocols
type ConnectionHandler interface {
	// OnConnection is called when a new connection is established. Returning
	// an error closes the connection.
	OnConnection(conn *Conn) error
	// GetProtocols returns supported ALPN protocol strings
	GetProtocols() []string
	// ValidateConnection verifies TLS connection parameters
	ValidateConnection(tlsState tls.ConnectionState) error
}

// Config contains all configuration parameters for a Transport
type Config struct {
	TLSCert       *tls.Certificate
	ListenAddr    string // Only needed by Start
	CertValidator CertValidator
	Handler       ConnectionHandler
	Logger        zerolog.Logger
}

// Transport manages QUIC connections and their lifecycles. A transport that
// is never started can still Connect, which is how clients use it.
type Transport struct {
	config   Config
	log      zerolog.Logger
	listener *quic.Listener
	mu       sync.RWMutex
	conns    map[string]*Conn // Active connections mapped by peer key
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{} // Closed when the accept loop exits
}

// NewTransport creates and configures a new transport instance.
func NewTransport(config Config) (*Transport, error) {
	if config.TLSCert == nil {
		return nil, fmt.Errorf("TLS certificate required")
	}
	if config.CertValidator == nil {
		return nil, fmt.Errorf("certificate validator required")
	}
	if config.Handler == nil {
		return nil, fmt.Errorf("connection handler required")
	}
	if err := config.CertValidator.ValidateCertificate(config.TLSCert.Leaf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		config: config,
		log:    config.Logger,
		conns:  make(map[string]*Conn),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func (t *Transport) quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  MaxIdleTimeout,
		KeepAlivePeriod: MaxIdleTimeout / 3,
	}
}

// Start initializes the transport listener and begins accepting connections.
func (t *Transport) Start() error {
	tlsConfig := &tls.Config{
		Certificates:       []tls.Certificate{*t.config.TLSCert},
		NextProtos:         t.config.Handler.GetProtocols(),
		ClientAuth:         tls.RequireAnyClientCert,
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			if len(cs.PeerCertificates) == 0 {
				return fmt.Errorf("%w: no peer certificate provided", ErrInvalidCertificate)
			}
			if err := t.config.CertValidator.ValidatePeerCertificate(cs.PeerCertificates[0]); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
			}
			if err := t.config.Handler.ValidateConnection(cs); err != nil {
				return fmt.Errorf("connection validation failed: %w", err)
			}
			return nil
		},
	}

	listener, err := quic.ListenAddr(t.config.ListenAddr, tlsConfig, t.quicConfig())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrListenerFailed, err)
	}

	t.listener = listener
	t.done = make(chan struct{})
	go func() {
		t.acceptLoop()
		close(t.done)
	}()
	t.log.Info().Str("addr", listener.Addr().String()).Msg("listening")
	return nil
}

// Addr returns the listener address, or nil before Start.
func (t *Transport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Stop shuts down the transport and all active connections and waits for
// the accept loop to finish.
func (t *Transport) Stop() error {
	t.cancel()

	t.mu.Lock()
	for _, conn := range t.conns {
		if err := conn.Close(); err != nil {
			t.log.Debug().Err(err).Msg("failed to close connection")
		}
	}
	t.conns = make(map[string]*Conn)
	t.mu.Unlock()

	if t.listener == nil {
		return nil
	}
	if err := t.listener.Close(); err != nil {
		return fmt.Errorf("failed to close listener: %w", err)
	}
	<-t.done
	return nil
}

// Connect dials a remote peer. The server certificate is checked the same
// way incoming client certificates are.
func (t *Transport) Connect(ctx context.Context, addr string) (*Conn, error) {
	tlsConf := &tls.Config{
		Certificates:       []tls.Certificate{*t.config.TLSCert},
		NextProtos:         t.config.Handler.GetProtocols(),
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			if len(cs.PeerCertificates) == 0 {
				return fmt.Errorf("%w: no peer certificate provided", ErrInvalidCertificate)
			}
			if err := t.config.CertValidator.ValidatePeerCertificate(cs.PeerCertificates[0]); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
			}
			return t.config.Handler.ValidateConnection(cs)
		},
	}

	quicConn, err := quic.DialAddr(ctx, addr, tlsConf, t.quicConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}

	conn := t.handleConnection(quicConn)
	if conn == nil {
		return nil, ErrConnFailed
	}
	return conn, nil
}

// GetConnection retrieves an active connection by peer key.
func (t *Transport) GetConnection(peerKey ed25519.PublicKey) (*Conn, bool) {
	t.mu.RLock()
	conn, ok := t.conns[string(peerKey)]
	t.mu.RUnlock()
	return conn, ok
}

// ListConnections returns a slice of all active connections.
func (t *Transport) ListConnections() []*Conn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	conns := make([]*Conn, 0, len(t.conns))
	for _, conn := range t.conns {
		conns = append(conns, conn)
	}
	return conns
}

func (t *Transport) acceptLoop() {
	for {
		conn, err := t.listener.Accept(t.ctx)
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			t.log.Warn().Err(err).Msg("failed to accept connection")
			continue
		}
		go t.handleConnection(conn)
	}
}

func (t *Transport) handleConnection(qConn quic.Connection) *Conn {
	peerCerts := qConn.ConnectionState().TLS.PeerCertificates
	if len(peerCerts) == 0 {
		t.closeQuic(qConn, ErrInvalidCertificate.Error())
		return nil
	}
	peerKey, err := t.config.CertValidator.ExtractPublicKey(peerCerts[0])
	if err != nil {
		t.log.Warn().Err(err).Msg("failed to extract peer key")
		t.closeQuic(qConn, fmt.Sprintf("%s: %v", ErrInvalidCertificate.Error(), err))
		return nil
	}

	conn := t.manageConnection(peerKey, qConn)
	t.log.Debug().Hex("peer", peerKey).Str("remote", qConn.RemoteAddr().String()).Msg("connection established")

	if err := t.config.Handler.OnConnection(conn); err != nil {
		t.cleanup(conn)
		t.closeQuic(qConn, err.Error())
		return nil
	}
	go func() {
		<-qConn.Context().Done()
		t.cleanup(conn)
		conn.cancel()
	}()
	return conn
}

func (t *Transport) closeQuic(qConn quic.Connection, reason string) {
	if err := qConn.CloseWithError(0, reason); err != nil {
		t.log.Debug().Err(err).Msg("failed to close connection")
	}
}

// manageConnection stores conn under its peer key, replacing and closing any
// previous connection from the same peer.
func (t *Transport) manageConnection(peerKey ed25519.PublicKey, qConn quic.Connection) *Conn {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.conns[string(peerKey)]; ok {
		t.log.Debug().Hex("peer", peerKey).Msg("replacing existing connection")
		if err := existing.Close(); err != nil {
			t.log.Debug().Err(err).Msg("failed to close existing connection")
		}
	}

	conn := newConn(qConn, t)
	conn.peerKey = peerKey
	t.conns[string(peerKey)] = conn
	return conn
}

// cleanup forgets conn unless it has already been replaced.
func (t *Transport) cleanup(conn *Conn) {
	t.mu.Lock()
	if current, ok := t.conns[string(conn.peerKey)]; ok && current == conn {
		delete(t.conns, string(conn.peerKey))
	}
	t.mu.Unlock()
}
