// Package cert issues and checks the self-signed Ed25519 certificates that
// identify tablekv peers. A certificate carries exactly one DNS name, derived
// from its public key, so the key is the identity and no CA is involved.
package cert

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// DNSNamePrefix is prepended to all encoded public keys in certificate DNS names
const DNSNamePrefix = "e"

// dnsNameLength is the prefix plus 52 base32 characters for a 32 byte key.
const dnsNameLength = 53

// ErrUnauthorized is returned for a well formed certificate whose key is not
// on the allow list.
var ErrUnauthorized = errors.New("peer key not authorized")

// base32Encoding defines the custom base32 alphabet used for encoding public keys
var base32Encoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// Generator creates TLS certificates with Ed25519 keys and encoded DNS names.
type Generator struct {
	config Config
}

// Config contains the parameters needed for certificate generation.
type Config struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
	// CertValidityPeriod defines how long the certificate remains valid
	CertValidityPeriod time.Duration
}

func NewGenerator(config Config) *Generator {
	return &Generator{config: config}
}

// Identity is a key pair together with its certificate.
type Identity struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
	Cert       *tls.Certificate
}

// NewIdentity generates a fresh key pair and a certificate for it.
func NewIdentity(validity time.Duration) (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	c, err := NewGenerator(Config{
		PublicKey:          pub,
		PrivateKey:         priv,
		CertValidityPeriod: validity,
	}).GenerateCertificate()
	if err != nil {
		return nil, err
	}
	return &Identity{PublicKey: pub, PrivateKey: priv, Cert: c}, nil
}

// Validator checks certificates for compliance with protocol requirements and,
// when it has an allow list, that the peer is authorized.
// Implements the transport.CertValidator interface.
type Validator struct {
	allowed map[string]struct{}
}

// NewValidator creates a validator. With no authorized keys, every peer with
// a well formed certificate is accepted.
func NewValidator(authorized ...ed25519.PublicKey) *Validator {
	v := &Validator{}
	if len(authorized) > 0 {
		v.allowed = make(map[string]struct{}, len(authorized))
		for _, k := range authorized {
			v.allowed[string(k)] = struct{}{}
		}
	}
	return v
}

// ParseAuthorizedKeys decodes hex encoded Ed25519 public keys.
func ParseAuthorizedKeys(hexKeys []string) ([]ed25519.PublicKey, error) {
	keys := make([]ed25519.PublicKey, 0, len(hexKeys))
	for _, h := range hexKeys {
		b, err := hex.DecodeString(h)
		if err != nil || len(b) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid authorized key %q", h)
		}
		keys = append(keys, ed25519.PublicKey(b))
	}
	return keys, nil
}

// ValidateCertificate checks if a certificate meets the protocol requirements:
// Ed25519 signature, a single DNS name matching the encoded public key, and a
// current validity period.
func (v *Validator) ValidateCertificate(cert *x509.Certificate) error {
	if cert.SignatureAlgorithm != x509.PureEd25519 {
		return fmt.Errorf("invalid signature algorithm: expected Ed25519")
	}

	pubKey, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return fmt.Errorf("certificate public key is not Ed25519")
	}

	if len(cert.DNSNames) != 1 {
		return fmt.Errorf("certificate must have exactly one DNS name")
	}
	dnsName := cert.DNSNames[0]
	if len(dnsName) != dnsNameLength || !strings.HasPrefix(dnsName, DNSNamePrefix) {
		return fmt.Errorf("invalid DNS name format: %s (length: %d)", dnsName, len(dnsName))
	}
	if dnsName != EncodePubKeyToDNS(pubKey) {
		return fmt.Errorf("DNS name does not match public key")
	}

	now := time.Now()
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("certificate is not yet valid")
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("certificate has expired")
	}
	return nil
}

// ValidatePeerCertificate runs ValidateCertificate and then the allow list.
func (v *Validator) ValidatePeerCertificate(cert *x509.Certificate) error {
	if err := v.ValidateCertificate(cert); err != nil {
		return err
	}
	if v.allowed == nil {
		return nil
	}
	pubKey := cert.PublicKey.(ed25519.PublicKey)
	if _, ok := v.allowed[string(pubKey)]; !ok {
		return fmt.Errorf("%w: %x", ErrUnauthorized, []byte(pubKey))
	}
	return nil
}

// ExtractPublicKey retrieves the Ed25519 public key from a certificate.
func (v *Validator) ExtractPublicKey(cert *x509.Certificate) (ed25519.PublicKey, error) {
	pubKey, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate public key is not an Ed25519 key")
	}
	return pubKey, nil
}

// EncodePubKeyToDNS encodes an Ed25519 public key into a DNS name.
// The format is: "e" + base32(pubKey) with custom alphabet.
func EncodePubKeyToDNS(pubKey ed25519.PublicKey) string {
	return DNSNamePrefix + base32Encoding.EncodeToString(pubKey)
}

// DecodeDNSToPubKey is the inverse of EncodePubKeyToDNS.
func DecodeDNSToPubKey(dnsName string) (ed25519.PublicKey, error) {
	if !strings.HasPrefix(dnsName, DNSNamePrefix) {
		return nil, fmt.Errorf("invalid DNS name prefix: %s", dnsName)
	}
	b, err := base32Encoding.DecodeString(dnsName[len(DNSNamePrefix):])
	if err != nil {
		return nil, fmt.Errorf("invalid DNS name encoding: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key length: %d", len(b))
	}
	return ed25519.PublicKey(b), nil
}

// GenerateCertificate creates a new self-signed TLS certificate usable for
// both server and client authentication.
func (g *Generator) GenerateCertificate() (*tls.Certificate, error) {
	dnsName := EncodePubKeyToDNS(g.config.PublicKey)

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName: dnsName,
		},
		DNSNames:  []string{dnsName},
		NotBefore: time.Now(),
		NotAfter:  time.Now().Add(g.config.CertValidityPeriod),
		KeyUsage:  x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageServerAuth,
			x509.ExtKeyUsageClientAuth,
		},
		SignatureAlgorithm:    x509.PureEd25519,
		PublicKeyAlgorithm:    x509.Ed25519,
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, g.config.PublicKey, g.config.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  g.config.PrivateKey,
		Leaf:        cert,
	}, nil
}
