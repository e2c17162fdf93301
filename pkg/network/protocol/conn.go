package protocol

import (
	"context"
	"fmt"
	"io"

	"github.com/quic-go/quic-go"
	"github.com/rs/zerolog"

	"github.com/trustdble/tablekv/pkg/network/transport"
)

// ProtocolConn wraps a transport connection with stream kind dispatch.
type ProtocolConn struct {
	TConn    *transport.Conn
	registry *Registry
	log      zerolog.Logger
}

func NewProtocolConn(tConn *transport.Conn, registry *Registry, log zerolog.Logger) *ProtocolConn {
	return &ProtocolConn{
		TConn:    tConn,
		registry: registry,
		log:      log,
	}
}

// OpenStream opens a new stream of the given kind and writes the kind byte.
func (pc *ProtocolConn) OpenStream(ctx context.Context, kind StreamKind) (quic.Stream, error) {
	stream, err := pc.TConn.OpenStream(ctx)
	if err != nil {
		return nil, err
	}

	if err := writeWithContext(ctx, stream, []byte{byte(kind)}); err != nil {
		stream.CancelRead(0)
		stream.CancelWrite(0)
		return nil, fmt.Errorf("failed to write stream kind: %w", err)
	}
	return stream, nil
}

// AcceptStream accepts the next incoming stream, reads its kind and hands it
// to the registered handler in a new goroutine.
func (pc *ProtocolConn) AcceptStream() (StreamKind, error) {
	stream, err := pc.TConn.AcceptStream()
	if err != nil {
		return 0, err
	}

	kind := make([]byte, 1)
	if _, err := io.ReadFull(stream, kind); err != nil {
		reset(stream)
		return 0, fmt.Errorf("failed to read stream kind: %w", err)
	}

	handler, err := pc.registry.GetHandler(kind[0])
	if err != nil {
		reset(stream)
		return StreamKind(kind[0]), err
	}

	go func() {
		if err := handler.HandleStream(pc.TConn.Context(), stream, pc.TConn.PeerKey()); err != nil {
			pc.log.Debug().Err(err).Stringer("kind", StreamKind(kind[0])).Msg("stream handler error")
		}
	}()
	return StreamKind(kind[0]), nil
}

// reset abandons both directions of stream.
func reset(stream quic.Stream) {
	stream.CancelRead(0)
	stream.CancelWrite(0)
}

// writeWithContext writes p to stream unless ctx is done first.
func writeWithContext(ctx context.Context, stream quic.Stream, p []byte) error {
	done := make(chan error, 1)
	go func() {
		_, err := stream.Write(p)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the underlying transport connection.
func (pc *ProtocolConn) Close() error {
	return pc.TConn.Close()
}
