package cert

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentity(t *testing.T, validity time.Duration) *Identity {
	t.Helper()
	id, err := NewIdentity(validity)
	require.NoError(t, err)
	return id
}

func TestGenerateCertificate(t *testing.T) {
	id := newIdentity(t, 24*time.Hour)

	require.NotNil(t, id.Cert.Leaf)
	require.Len(t, id.Cert.Leaf.DNSNames, 1, "Certificate must have exactly one DNS name")
	dnsName := id.Cert.Leaf.DNSNames[0]
	assert.Len(t, dnsName, 53)
	assert.Equal(t, byte('e'), dnsName[0])

	require.NoError(t, NewValidator().ValidateCertificate(id.Cert.Leaf))
}

func TestDNSNameRoundTrip(t *testing.T) {
	id := newIdentity(t, time.Hour)

	pub, err := DecodeDNSToPubKey(EncodePubKeyToDNS(id.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, id.PublicKey, pub)

	_, err = DecodeDNSToPubKey("xabc")
	assert.Error(t, err)
	_, err = DecodeDNSToPubKey("eabc")
	assert.Error(t, err)
}

func TestValidateCertificateFailures(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(id *Identity)
		errMsg string
	}{
		{
			name: "mismatched_public_key",
			tamper: func(id *Identity) {
				other, _, _ := ed25519.GenerateKey(nil)
				id.Cert.Leaf.PublicKey = other
			},
			errMsg: "DNS name does not match public key",
		},
		{
			name:   "not_yet_valid",
			tamper: func(id *Identity) { id.Cert.Leaf.NotBefore = time.Now().Add(time.Hour) },
			errMsg: "certificate is not yet valid",
		},
		{
			name:   "two_dns_names",
			tamper: func(id *Identity) { id.Cert.Leaf.DNSNames = append(id.Cert.Leaf.DNSNames, "x") },
			errMsg: "exactly one DNS name",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id := newIdentity(t, 24*time.Hour)
			tc.tamper(id)
			err := NewValidator().ValidateCertificate(id.Cert.Leaf)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestValidateCertificateExpired(t *testing.T) {
	id := newIdentity(t, -1*time.Hour)

	err := NewValidator().ValidateCertificate(id.Cert.Leaf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "certificate has expired")
}

func TestValidatePeerCertificateAllowList(t *testing.T) {
	allowed := newIdentity(t, time.Hour)
	stranger := newIdentity(t, time.Hour)

	open := NewValidator()
	require.NoError(t, open.ValidatePeerCertificate(stranger.Cert.Leaf))

	restricted := NewValidator(allowed.PublicKey)
	require.NoError(t, restricted.ValidatePeerCertificate(allowed.Cert.Leaf))
	require.ErrorIs(t, restricted.ValidatePeerCertificate(stranger.Cert.Leaf), ErrUnauthorized)
	// The allow list never applies to the format check alone.
	require.NoError(t, restricted.ValidateCertificate(stranger.Cert.Leaf))
}

func TestParseAuthorizedKeys(t *testing.T) {
	id := newIdentity(t, time.Hour)

	keys, err := ParseAuthorizedKeys([]string{hex.EncodeToString(id.PublicKey)})
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, id.PublicKey, keys[0])

	_, err = ParseAuthorizedKeys([]string{"abcd"})
	assert.Error(t, err)
	_, err = ParseAuthorizedKeys([]string{"zz"})
	assert.Error(t, err)
}
