package testutils

import (
	"bytes"
	"context"
	"time"

	"github.com/quic-go/quic-go"
)

// MockStream is an in-memory quic.Stream. Reads drain Inbound; writes go to
// Outbound.
type MockStream struct {
	Inbound       *bytes.Buffer
	Outbound      *bytes.Buffer
	CloseCalled   bool
	CanceledRead  bool
	CanceledWrite bool
}

func NewMockStream(inbound []byte) *MockStream {
	return &MockStream{
		Inbound:  bytes.NewBuffer(inbound),
		Outbound: new(bytes.Buffer),
	}
}

func (s *MockStream) StreamID() quic.StreamID { return 1 }

func (s *MockStream) Read(p []byte) (int, error) { return s.Inbound.Read(p) }

func (s *MockStream) Write(p []byte) (int, error) { return s.Outbound.Write(p) }

func (s *MockStream) Close() error {
	s.CloseCalled = true
	return nil
}

func (s *MockStream) CancelRead(quic.StreamErrorCode) { s.CanceledRead = true }

func (s *MockStream) CancelWrite(quic.StreamErrorCode) { s.CanceledWrite = true }

func (s *MockStream) Context() context.Context { return context.Background() }

func (s *MockStream) SetDeadline(time.Time) error { return nil }

func (s *MockStream) SetReadDeadline(time.Time) error { return nil }

func (s *MockStream) SetWriteDeadline(time.Time) error { return nil }
