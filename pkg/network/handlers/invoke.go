package handlers

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"
	"github.com/rs/zerolog"

	"github.com/trustdble/tablekv/internal/contract"
	"github.com/trustdble/tablekv/pkg/serialization"
	"github.com/trustdble/tablekv/pkg/serialization/codec"
)

var ErrResponseMismatch = errors.New("response id does not match request")

// Request is the single message a client sends on an invoke stream.
type Request struct {
	ID       string   `json:"id"`
	Function string   `json:"function"`
	Args     []string `json:"args"`
}

// Response answers a Request. Code is one of the contract result codes; Error
// is set whenever Code is not "ok".
type Response struct {
	ID      string `json:"id"`
	Payload string `json:"payload,omitempty"`
	Code    string `json:"code"`
	Error   string `json:"error,omitempty"`
}

// Invoker runs a named contract function.
type Invoker interface {
	Invoke(ctx context.Context, intent contract.Intent, fn string, args []string) (string, error)
}

// InvokeHandler serves evaluate or submit streams.
//
// Protocol flow:
// Client -> Node
//
//	--> Request (JSON)
//	--> FIN
//	<-- Response (JSON)
//	<-- FIN
type InvokeHandler struct {
	invoker    Invoker
	intent     contract.Intent
	serializer *serialization.Serializer
	log        zerolog.Logger
}

func NewInvokeHandler(invoker Invoker, intent contract.Intent, log zerolog.Logger) *InvokeHandler {
	return &InvokeHandler{
		invoker:    invoker,
		intent:     intent,
		serializer: serialization.NewSerializer(&codec.JSONCodec{Strict: true}),
		log:        log,
	}
}

// HandleStream reads one request, runs it and writes the response. Contract
// errors are reported in the response; only stream failures are returned.
func (h *InvokeHandler) HandleStream(ctx context.Context, stream quic.Stream, peerKey ed25519.PublicKey) error {
	msg, err := ReadMessageWithContext(ctx, stream)
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}

	var req Request
	resp := Response{}
	if err := h.serializer.Decode(msg.Content, &req); err != nil {
		resp.Code = contract.CodeInvalidPayload
		resp.Error = fmt.Sprintf("malformed request: %v", err)
	} else {
		resp = h.invoke(ctx, req, peerKey)
	}

	respBytes, err := h.serializer.Encode(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	if err := WriteMessageWithContext(ctx, stream, respBytes); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}

func (h *InvokeHandler) invoke(ctx context.Context, req Request, peerKey ed25519.PublicKey) Response {
	payload, err := h.invoker.Invoke(ctx, h.intent, req.Function, req.Args)
	resp := Response{ID: req.ID, Payload: payload, Code: contract.Code(err)}
	if err == nil {
		return resp
	}

	resp.Error = err.Error()
	event := h.log.Debug()
	if resp.Code == contract.CodeInternal {
		event = h.log.Error()
	}
	event.Err(err).
		Str("request_id", req.ID).
		Str("function", req.Function).
		Hex("peer", peerKey).
		Str("code", resp.Code).
		Msg("invocation failed")
	return resp
}

// InvokeRequester is the client side of InvokeHandler.
type InvokeRequester struct {
	serializer *serialization.Serializer
}

func NewInvokeRequester() *InvokeRequester {
	return &InvokeRequester{
		serializer: serialization.NewSerializer(&codec.JSONCodec{}),
	}
}

// Invoke sends fn and args over stream under a fresh request id and waits for
// the matching response.
func (r *InvokeRequester) Invoke(ctx context.Context, stream quic.Stream, fn string, args []string) (*Response, error) {
	if args == nil {
		args = []string{}
	}
	req := Request{ID: uuid.NewString(), Function: fn, Args: args}
	reqBytes, err := r.serializer.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := WriteMessageWithContext(ctx, stream, reqBytes); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if err := stream.Close(); err != nil {
		return nil, fmt.Errorf("failed to close stream: %w", err)
	}

	respMsg, err := ReadMessageWithContext(ctx, stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := r.serializer.Decode(respMsg.Content, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("%w: sent %s, got %q", ErrResponseMismatch, req.ID, resp.ID)
	}
	return &resp, nil
}
