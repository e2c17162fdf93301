// Package config loads the configuration of a tablekv node.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendPebble  = "pebble"
	BackendLevelDB = "leveldb"
)

// Config holds all node configuration. Files are YAML; JSON files parse as
// well since JSON is a subset of YAML.
type Config struct {
	// LedgerID selects the network the node serves, 8 hex characters.
	LedgerID    string `yaml:"ledger_id" json:"ledger_id"`
	ListenAddr  string `yaml:"listen_addr" json:"listen_addr"`   // e.g. "0.0.0.0:9443"
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"` // empty disables metrics

	// Storage
	Backend       string `yaml:"backend" json:"backend"` // pebble or leveldb
	DataDir       string `yaml:"data_dir" json:"data_dir"`
	InMemory      bool   `yaml:"in_memory" json:"in_memory"`
	AtomicBatches bool   `yaml:"atomic_batches" json:"atomic_batches"`

	// Logging
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"` // console or json

	// TLS
	CertValidity time.Duration `yaml:"cert_validity" json:"cert_validity"`
	// AuthorizedKeys lists hex Ed25519 public keys allowed to connect. Empty
	// accepts any client.
	AuthorizedKeys []string `yaml:"authorized_keys" json:"authorized_keys"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LedgerID:     "00000000",
		ListenAddr:   "0.0.0.0:9443",
		MetricsAddr:  "127.0.0.1:9090",
		Backend:      BackendPebble,
		DataDir:      "./data",
		LogLevel:     "info",
		LogFormat:    "console",
		CertValidity: 24 * time.Hour,
	}
}

// Load reads the file at path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for consistency.
func (c *Config) Validate() error {
	if len(c.LedgerID) != 8 {
		return fmt.Errorf("ledger_id must be 8 hex characters")
	}
	if _, err := hex.DecodeString(c.LedgerID); err != nil {
		return fmt.Errorf("ledger_id must be 8 hex characters: %w", err)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	switch c.Backend {
	case BackendPebble, BackendLevelDB:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if !c.InMemory && c.DataDir == "" {
		return fmt.Errorf("data_dir is required unless in_memory is set")
	}
	if c.CertValidity <= 0 {
		return fmt.Errorf("cert_validity must be positive")
	}
	for _, k := range c.AuthorizedKeys {
		if b, err := hex.DecodeString(k); err != nil || len(b) != 32 {
			return fmt.Errorf("authorized key %q is not a hex ed25519 public key", k)
		}
	}
	return nil
}
