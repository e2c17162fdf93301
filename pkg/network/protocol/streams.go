package protocol

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/quic-go/quic-go"
)

// Every stream carries exactly one request and one response.
const (
	// StreamKindEvaluate streams run read-only functions
	StreamKindEvaluate StreamKind = 128
	// StreamKindSubmit streams run functions that may change state
	StreamKindSubmit StreamKind = 129
)

// StreamHandler processes individual QUIC streams within a connection
type StreamHandler interface {
	HandleStream(ctx context.Context, stream quic.Stream, peerKey ed25519.PublicKey) error
}

// StreamKind is the first byte written on every stream.
type StreamKind byte

func (k StreamKind) String() string {
	switch k {
	case StreamKindEvaluate:
		return "evaluate"
	case StreamKindSubmit:
		return "submit"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// Registry manages stream handlers for the protocol stream kinds
type Registry struct {
	mu       sync.RWMutex
	handlers map[StreamKind]StreamHandler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[StreamKind]StreamHandler),
	}
}

// ValidateKind checks if a given byte represents a known stream kind
func (r *Registry) ValidateKind(kindByte byte) error {
	switch StreamKind(kindByte) {
	case StreamKindEvaluate, StreamKindSubmit:
		return nil
	default:
		return fmt.Errorf("invalid stream kind: %d", kindByte)
	}
}

// RegisterHandler associates a stream handler with a specific stream kind.
func (r *Registry) RegisterHandler(kind StreamKind, handler StreamHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = handler
}

// GetHandler retrieves the handler associated with a given stream kind byte
func (r *Registry) GetHandler(kindByte byte) (StreamHandler, error) {
	if err := r.ValidateKind(kindByte); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[StreamKind(kindByte)]
	if !ok {
		return nil, fmt.Errorf("no handler for kind %d", kindByte)
	}
	return handler, nil
}
