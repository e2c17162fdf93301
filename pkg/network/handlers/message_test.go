package handlers

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingWriter fails its nth Write call (counting from 1).
type failingWriter struct {
	buffer bytes.Buffer
	failOn int
	calls  int
	delay  time.Duration
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	if w.calls == w.failOn {
		return 0, errors.New("mock write error")
	}
	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	return w.buffer.Write(p)
}

type slowReader struct {
	buffer *bytes.Buffer
	delay  time.Duration
}

func (r *slowReader) Read(p []byte) (int, error) {
	time.Sleep(r.delay)
	return r.buffer.Read(p)
}

func framed(t *testing.T, size uint32, content []byte) *bytes.Buffer {
	t.Helper()
	buffer := &bytes.Buffer{}
	require.NoError(t, binary.Write(buffer, binary.LittleEndian, size))
	buffer.Write(content)
	return buffer
}

func TestWriteMessageWithContext(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		content := []byte("test message")
		buffer := &bytes.Buffer{}

		require.NoError(t, WriteMessageWithContext(context.Background(), buffer, content))
		assert.Equal(t, uint32(12), binary.LittleEndian.Uint32(buffer.Bytes()[:4]))
		assert.Equal(t, content, buffer.Bytes()[4:])
	})

	t.Run("write size error", func(t *testing.T) {
		err := WriteMessageWithContext(context.Background(), &failingWriter{failOn: 1}, []byte("x"))
		require.ErrorContains(t, err, "failed to write message size")
	})

	t.Run("write content error", func(t *testing.T) {
		err := WriteMessageWithContext(context.Background(), &failingWriter{failOn: 2}, []byte("x"))
		require.ErrorContains(t, err, "failed to write message content")
	})

	t.Run("too large", func(t *testing.T) {
		err := WriteMessageWithContext(context.Background(), &bytes.Buffer{}, make([]byte, MaxMessageSize+1))
		require.ErrorIs(t, err, ErrMessageTooLarge)
	})

	t.Run("context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		err := WriteMessageWithContext(ctx, &failingWriter{delay: 200 * time.Millisecond}, []byte("x"))
		assert.Equal(t, context.Canceled, err)
	})
}

func TestReadMessageWithContext(t *testing.T) {
	tests := []struct {
		name    string
		input   func(t *testing.T) *bytes.Buffer
		content []byte
		errMsg  string
		errIs   error
	}{
		{
			name:    "successful read",
			input:   func(t *testing.T) *bytes.Buffer { return framed(t, 12, []byte("test message")) },
			content: []byte("test message"),
		},
		{
			name:    "zero size message",
			input:   func(t *testing.T) *bytes.Buffer { return framed(t, 0, nil) },
			content: []byte{},
		},
		{
			name:   "missing size",
			input:  func(t *testing.T) *bytes.Buffer { return &bytes.Buffer{} },
			errMsg: "failed to read message size",
		},
		{
			name:   "partial content",
			input:  func(t *testing.T) *bytes.Buffer { return framed(t, 10, []byte("hello")) },
			errMsg: "failed to read message content",
		},
		{
			name:  "size above limit",
			input: func(t *testing.T) *bytes.Buffer { return framed(t, MaxMessageSize+1, nil) },
			errIs: ErrMessageTooLarge,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ReadMessageWithContext(context.Background(), tc.input(t))
			switch {
			case tc.errIs != nil:
				require.ErrorIs(t, err, tc.errIs)
				assert.Nil(t, msg)
			case tc.errMsg != "":
				require.ErrorContains(t, err, tc.errMsg)
				assert.Nil(t, msg)
			default:
				require.NoError(t, err)
				assert.Equal(t, uint32(len(tc.content)), msg.Size)
				assert.Equal(t, tc.content, msg.Content)
			}
		})
	}

	t.Run("timeout context", func(t *testing.T) {
		reader := &slowReader{buffer: framed(t, 1, []byte("x")), delay: 200 * time.Millisecond}
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		msg, err := ReadMessageWithContext(ctx, reader)
		assert.Nil(t, msg)
		assert.Equal(t, context.DeadlineExceeded, err)
	})
}

func TestReadWriteMultipleMessages(t *testing.T) {
	messages := [][]byte{
		[]byte("first message"),
		[]byte("second message"),
		[]byte("third message with longer content"),
	}
	buffer := &bytes.Buffer{}
	ctx := context.Background()

	for _, content := range messages {
		require.NoError(t, WriteMessageWithContext(ctx, buffer, content))
	}
	for _, expected := range messages {
		msg, err := ReadMessageWithContext(ctx, buffer)
		require.NoError(t, err)
		assert.Equal(t, expected, msg.Content)
	}
	assert.Equal(t, 0, buffer.Len())
}
