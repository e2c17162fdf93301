// Package contract exposes the table store as a set of named functions that
// take and return strings, the way a ledger transaction entry point does.
package contract

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/trustdble/tablekv/internal/table"
	"github.com/trustdble/tablekv/pkg/serialization"
	"github.com/trustdble/tablekv/pkg/serialization/codec"
)

// Contract adapts table.Store to string arguments. Row maps travel as JSON
// objects and key lists as JSON arrays.
type Contract struct {
	store      *table.Store
	serializer *serialization.Serializer
	log        zerolog.Logger
}

type Option func(*Contract)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Contract) { c.log = l }
}

func New(store *table.Store, opts ...Option) *Contract {
	c := &Contract{
		store:      store,
		serializer: serialization.NewSerializer(&codec.JSONCodec{}),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Contract) Instantiate(ctx context.Context) (string, error) {
	c.log.Info().Msg("contract instantiated")
	return "", nil
}

// Put decodes payload as a JSON object of hex key to hex value.
func (c *Contract) Put(ctx context.Context, tbl, payload string) (string, error) {
	var pairs map[string]string
	if err := c.decode(payload, &pairs); err != nil {
		return "", err
	}
	return "", c.store.Put(tbl, pairs)
}

func (c *Contract) Get(ctx context.Context, tbl, key string) (string, error) {
	return c.store.Get(tbl, key)
}

// GetAll returns the table as a JSON object of hex key to hex value.
func (c *Contract) GetAll(ctx context.Context, tbl string) (string, error) {
	rows, err := c.store.GetAll(tbl)
	if err != nil {
		return "", err
	}
	out, err := c.serializer.Encode(rows)
	if err != nil {
		return "", fmt.Errorf("encode rows: %w", err)
	}
	return string(out), nil
}

// Delete decodes payload as a JSON array of hex keys.
func (c *Contract) Delete(ctx context.Context, tbl, payload string) (string, error) {
	var keys []string
	if err := c.decode(payload, &keys); err != nil {
		return "", err
	}
	return "", c.store.Delete(tbl, keys)
}

func (c *Contract) KeyExists(ctx context.Context, compositeKey string) (string, error) {
	exists, err := c.store.Exists(compositeKey)
	if err != nil {
		return "", err
	}
	return strconv.FormatBool(exists), nil
}

// CreateTable returns the table identifier for a human readable name. Tables
// need no registration; the identifier is all a caller needs.
func (c *Contract) CreateTable(ctx context.Context, name string) (string, error) {
	return table.Address(name), nil
}

func (c *Contract) DropTable(ctx context.Context, tbl string) (string, error) {
	return "", c.store.Drop(tbl)
}

func (c *Contract) Digest(ctx context.Context, tbl string) (string, error) {
	return c.store.Digest(tbl)
}

func (c *Contract) decode(payload string, v any) error {
	if err := c.serializer.Decode([]byte(payload), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
