// Package node wires a storage backend, the table store and the contract
// surface behind a QUIC listener.
package node

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/trustdble/tablekv/internal/config"
	"github.com/trustdble/tablekv/internal/contract"
	"github.com/trustdble/tablekv/internal/ledger"
	"github.com/trustdble/tablekv/internal/metrics"
	"github.com/trustdble/tablekv/internal/table"
	"github.com/trustdble/tablekv/pkg/db"
	"github.com/trustdble/tablekv/pkg/db/leveldb"
	"github.com/trustdble/tablekv/pkg/db/pebble"
	"github.com/trustdble/tablekv/pkg/log"
	"github.com/trustdble/tablekv/pkg/network/cert"
	"github.com/trustdble/tablekv/pkg/network/handlers"
	"github.com/trustdble/tablekv/pkg/network/protocol"
	"github.com/trustdble/tablekv/pkg/network/transport"
)

// Node serves one ledger. Each evaluate or submit stream carries a single
// contract invocation.
type Node struct {
	Context         context.Context
	Cancel          context.CancelFunc
	Store           *table.Store
	Dispatcher      *contract.Dispatcher
	Metrics         *metrics.Metrics
	ProtocolManager *protocol.Manager

	kv        db.KVStore
	transport *transport.Transport
	identity  *cert.Identity
	log       zerolog.Logger
}

// OpenStore opens the backend named by cfg.
func OpenStore(cfg *config.Config) (db.KVStore, error) {
	switch cfg.Backend {
	case config.BackendPebble:
		return pebble.Open(pebble.Options{
			Path:     filepath.Join(cfg.DataDir, "pebble"),
			InMemory: cfg.InMemory,
		})
	case config.BackendLevelDB:
		return leveldb.Open(leveldb.Options{
			Path:     filepath.Join(cfg.DataDir, "leveldb"),
			InMemory: cfg.InMemory,
		})
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// NewNode opens storage and prepares the listener. Nothing is served until
// Start.
func NewNode(nodeCtx context.Context, cfg *config.Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	authorized, err := cert.ParseAuthorizedKeys(cfg.AuthorizedKeys)
	if err != nil {
		return nil, err
	}

	identity, err := cert.NewIdentity(cfg.CertValidity)
	if err != nil {
		return nil, fmt.Errorf("failed to generate certificate: %w", err)
	}

	kv, err := OpenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Backend, err)
	}

	nodeCtx, cancel := context.WithCancel(nodeCtx)
	n := &Node{
		Context:  nodeCtx,
		Cancel:   cancel,
		Metrics:  metrics.New(),
		kv:       kv,
		identity: identity,
		log:      log.Root,
	}

	storeOpts := []table.Option{table.WithLogger(log.Store)}
	if cfg.AtomicBatches {
		storeOpts = append(storeOpts, table.WithAtomicBatches())
	}
	n.Store = table.NewStore(ledger.NewKVStub(kv), storeOpts...)
	n.Dispatcher = contract.NewDispatcher(
		contract.New(n.Store, contract.WithLogger(log.Contract)),
		n.Metrics,
		log.Contract,
	)

	protoManager, err := protocol.NewManager(protocol.Config{
		LedgerID: cfg.LedgerID,
		Logger:   log.Network,
		OnStream: func(kind protocol.StreamKind) {
			n.Metrics.Streams.WithLabelValues(kind.String()).Inc()
		},
	})
	if err != nil {
		n.closeStore() //nolint:errcheck
		cancel()
		return nil, fmt.Errorf("failed to create protocol manager: %w", err)
	}
	protoManager.Registry.RegisterHandler(protocol.StreamKindEvaluate,
		handlers.NewInvokeHandler(n.Dispatcher, contract.Evaluate, log.Network))
	protoManager.Registry.RegisterHandler(protocol.StreamKindSubmit,
		handlers.NewInvokeHandler(n.Dispatcher, contract.Submit, log.Network))
	n.ProtocolManager = protoManager

	tr, err := transport.NewTransport(transport.Config{
		TLSCert:       identity.Cert,
		ListenAddr:    cfg.ListenAddr,
		CertValidator: cert.NewValidator(authorized...),
		Handler:       protoManager,
		Logger:        log.Network,
	})
	if err != nil {
		n.closeStore() //nolint:errcheck
		cancel()
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	n.transport = tr
	return n, nil
}

// Start runs the contract instantiation hook and begins accepting
// connections.
func (n *Node) Start() error {
	if _, err := n.Dispatcher.Invoke(n.Context, contract.Submit, "instantiate", nil); err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	if err := n.transport.Start(); err != nil {
		return err
	}
	n.log.Info().
		Str("addr", n.Addr().String()).
		Hex("public_key", n.PublicKey()).
		Msg("node started")
	return nil
}

// Addr is the bound listen address, nil before Start.
func (n *Node) Addr() net.Addr {
	return n.transport.Addr()
}

func (n *Node) PublicKey() ed25519.PublicKey {
	return n.identity.PublicKey
}

// Stop closes all connections and the store.
func (n *Node) Stop() error {
	n.Cancel()
	trErr := n.transport.Stop()
	if err := n.closeStore(); err != nil {
		return err
	}
	return trErr
}

func (n *Node) closeStore() error {
	if err := n.kv.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}
