// Package client talks to a tablekv node over QUIC. Keys and values are raw
// bytes here and hex text on the wire.
package client

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/trustdble/tablekv/internal/contract"
	"github.com/trustdble/tablekv/pkg/network/cert"
	"github.com/trustdble/tablekv/pkg/network/handlers"
	"github.com/trustdble/tablekv/pkg/network/protocol"
	"github.com/trustdble/tablekv/pkg/network/transport"
	"github.com/trustdble/tablekv/pkg/serialization"
	"github.com/trustdble/tablekv/pkg/serialization/codec"
)

const defaultCertValidity = time.Hour

type Config struct {
	// Addr is the node's host:port.
	Addr     string
	LedgerID string
	// ServerKey pins the node's public key when set.
	ServerKey ed25519.PublicKey
	// Identity is the client certificate. A fresh one is generated when nil.
	Identity *cert.Identity
	Logger   zerolog.Logger
}

type Client struct {
	transport  *transport.Transport
	conn       *protocol.ProtocolConn
	requester  *handlers.InvokeRequester
	serializer *serialization.Serializer
	log        zerolog.Logger
}

// Dial connects to the node at cfg.Addr.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	identity := cfg.Identity
	if identity == nil {
		var err error
		if identity, err = cert.NewIdentity(defaultCertValidity); err != nil {
			return nil, err
		}
	}

	manager, err := protocol.NewManager(protocol.Config{LedgerID: cfg.LedgerID, Logger: cfg.Logger})
	if err != nil {
		return nil, err
	}

	var validator *cert.Validator
	if cfg.ServerKey != nil {
		validator = cert.NewValidator(cfg.ServerKey)
	} else {
		validator = cert.NewValidator()
	}

	tr, err := transport.NewTransport(transport.Config{
		TLSCert:       identity.Cert,
		CertValidator: validator,
		Handler:       manager,
		Logger:        cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	tConn, err := tr.Connect(ctx, cfg.Addr)
	if err != nil {
		tr.Stop() //nolint:errcheck
		return nil, err
	}

	return &Client{
		transport:  tr,
		conn:       manager.Wrap(tConn),
		requester:  handlers.NewInvokeRequester(),
		serializer: serialization.NewSerializer(&codec.JSONCodec{}),
		log:        cfg.Logger,
	}, nil
}

// Invoke runs a contract function on the node. Errors reported by the node
// come back as *RemoteError.
func (c *Client) Invoke(ctx context.Context, intent contract.Intent, fn string, args ...string) (string, error) {
	kind := protocol.StreamKindEvaluate
	if intent == contract.Submit {
		kind = protocol.StreamKindSubmit
	}

	stream, err := c.conn.OpenStream(ctx, kind)
	if err != nil {
		return "", err
	}
	resp, err := c.requester.Invoke(ctx, stream, fn, args)
	if err != nil {
		stream.CancelRead(0)
		return "", err
	}
	c.log.Debug().Str("request_id", resp.ID).Str("function", fn).Str("code", resp.Code).Msg("invoked")

	if resp.Code != contract.CodeOK {
		return "", &RemoteError{Code: resp.Code, Message: resp.Error}
	}
	return resp.Payload, nil
}

// CreateTable returns the identifier of the table called name.
func (c *Client) CreateTable(ctx context.Context, name string) (string, error) {
	return c.Invoke(ctx, contract.Evaluate, "createTable", name)
}

// Put writes rows, keyed by raw key bytes, into table.
func (c *Client) Put(ctx context.Context, table string, rows map[string][]byte) error {
	encoded := make(map[string]string, len(rows))
	for k, v := range rows {
		encoded[hex.EncodeToString([]byte(k))] = hex.EncodeToString(v)
	}
	payload, err := c.serializer.Encode(encoded)
	if err != nil {
		return err
	}
	_, err = c.Invoke(ctx, contract.Submit, "put", table, string(payload))
	return err
}

func (c *Client) Get(ctx context.Context, table string, key []byte) ([]byte, error) {
	value, err := c.Invoke(ctx, contract.Evaluate, "get", table, hex.EncodeToString(key))
	if err != nil {
		return nil, err
	}
	return decodeHex(value)
}

// GetAll returns every row of table keyed by raw key bytes.
func (c *Client) GetAll(ctx context.Context, table string) (map[string][]byte, error) {
	payload, err := c.Invoke(ctx, contract.Evaluate, "getAll", table)
	if err != nil {
		return nil, err
	}

	var encoded map[string]string
	if err := c.serializer.Decode([]byte(payload), &encoded); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	rows := make(map[string][]byte, len(encoded))
	for k, v := range encoded {
		key, err := decodeHex(k)
		if err != nil {
			return nil, err
		}
		if rows[string(key)], err = decodeHex(v); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// Delete removes keys from table in order, stopping at the first missing one.
func (c *Client) Delete(ctx context.Context, table string, keys [][]byte) error {
	encoded := make([]string, len(keys))
	for i, k := range keys {
		encoded[i] = hex.EncodeToString(k)
	}
	payload, err := c.serializer.Encode(encoded)
	if err != nil {
		return err
	}
	_, err = c.Invoke(ctx, contract.Submit, "delete", table, string(payload))
	return err
}

// Remove deletes a single key.
func (c *Client) Remove(ctx context.Context, table string, key []byte) error {
	return c.Delete(ctx, table, [][]byte{key})
}

// KeyExists probes a raw composite key, see table.CompositeKey.
func (c *Client) KeyExists(ctx context.Context, compositeKey string) (bool, error) {
	out, err := c.Invoke(ctx, contract.Evaluate, "keyExists", compositeKey)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(out)
}

func (c *Client) DropTable(ctx context.Context, table string) error {
	_, err := c.Invoke(ctx, contract.Submit, "dropTable", table)
	return err
}

func (c *Client) Digest(ctx context.Context, table string) (string, error) {
	return c.Invoke(ctx, contract.Evaluate, "digest", table)
}

func (c *Client) Close() error {
	return c.transport.Stop()
}

func decodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("node returned malformed hex: %w", err)
	}
	return b, nil
}
