package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustdble/tablekv/internal/config"
	"github.com/trustdble/tablekv/internal/contract"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.LedgerID = "0badc0de"
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Backend = backend
	cfg.InMemory = true
	cfg.CertValidity = time.Hour
	return cfg
}

func TestOpenStore(t *testing.T) {
	for _, backend := range []string{config.BackendPebble, config.BackendLevelDB} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)
			cfg.InMemory = false
			cfg.DataDir = t.TempDir()

			kv, err := OpenStore(cfg)
			require.NoError(t, err)
			require.NoError(t, kv.Put([]byte("k"), []byte("v")))
			require.NoError(t, kv.Close())

			kv, err = OpenStore(cfg)
			require.NoError(t, err)
			v, err := kv.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), v)
			require.NoError(t, kv.Close())
		})
	}

	_, err := OpenStore(&config.Config{Backend: "badger"})
	require.ErrorContains(t, err, "unknown backend")
}

func TestNewNodeRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, config.BackendPebble)
	cfg.LedgerID = "nope"
	_, err := NewNode(context.Background(), cfg)
	require.ErrorContains(t, err, "invalid config")
}

func TestNodeLifecycle(t *testing.T) {
	for _, backend := range []string{config.BackendPebble, config.BackendLevelDB} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)
			cfg.AtomicBatches = true

			n, err := NewNode(context.Background(), cfg)
			require.NoError(t, err)
			assert.Nil(t, n.Addr())

			require.NoError(t, n.Start())
			require.NotNil(t, n.Addr())
			assert.Len(t, n.PublicKey(), 32)

			ctx := context.Background()
			_, err = n.Dispatcher.Invoke(ctx, contract.Submit, "put", []string{"61", `{"01":"ff"}`})
			require.NoError(t, err)
			v, err := n.Store.Get("61", "01")
			require.NoError(t, err)
			assert.Equal(t, "ff", v)

			require.NoError(t, n.Stop())
			assert.Error(t, n.Context.Err())
		})
	}
}
