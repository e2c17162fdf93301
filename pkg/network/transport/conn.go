package transport

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/quic-go/quic-go"
)

// Conn is a QUIC connection with an authenticated remote peer. Its context
// is cancelled when the connection closes or the transport stops.
type Conn struct {
	qConn     quic.Connection
	transport *Transport
	peerKey   ed25519.PublicKey
	ctx       context.Context
	cancel    context.CancelFunc
}

func newConn(qConn quic.Connection, transport *Transport) *Conn {
	ctx, cancel := context.WithCancel(transport.ctx)
	return &Conn{
		qConn:     qConn,
		transport: transport,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// OpenStream opens a new bidirectional QUIC stream.
func (c *Conn) OpenStream(ctx context.Context) (quic.Stream, error) {
	stream, err := c.qConn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open QUIC stream: %w", err)
	}
	return stream, nil
}

// AcceptStream waits for the next stream opened by the peer.
func (c *Conn) AcceptStream() (quic.Stream, error) {
	stream, err := c.qConn.AcceptStream(c.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to accept QUIC stream: %w", err)
	}
	return stream, nil
}

func (c *Conn) QConn() quic.Connection {
	return c.qConn
}

// PeerKey returns the public key of the connected peer.
func (c *Conn) PeerKey() ed25519.PublicKey {
	return c.peerKey
}

// Close closes the connection and cancels all associated streams.
func (c *Conn) Close() error {
	c.cancel()
	return c.qConn.CloseWithError(0, "")
}

func (c *Conn) Context() context.Context {
	return c.ctx
}
