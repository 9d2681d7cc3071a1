package siwe

import (
	"crypto/ecdsa"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signPersonal(t *testing.T, key *ecdsa.PrivateKey, msg string) string {
	t.Helper()

	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	digest := crypto.Keccak256([]byte(prefixed))

	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)

	// Present V as 27/28 the way wallets do.
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func testMessage(address, nonce string) *Message {
	return &Message{
		Domain:   "app.example.org",
		Address:  address,
		URI:      "https://app.example.org",
		Version:  "1",
		ChainID:  1,
		Nonce:    nonce,
		IssuedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestVerifyValidSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	raw := testMessage(address, "abc123").Format()
	sig := signPersonal(t, key, raw)

	v := NewVerifier("")
	got, ok, err := v.Verify(raw, sig, "abc123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, address, got)
}

func TestVerifyNonceMismatch(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	raw := testMessage(address, "zzz999").Format()
	sig := signPersonal(t, key, raw)

	v := NewVerifier("")
	got, ok, err := v.Verify(raw, sig, "abc123")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestVerifyWrongSigner(t *testing.T) {
	victim, err := crypto.GenerateKey()
	require.NoError(t, err)
	attacker, err := crypto.GenerateKey()
	require.NoError(t, err)
	victimAddr := crypto.PubkeyToAddress(victim.PublicKey).Hex()

	// Attacker signs a message claiming the victim's address.
	raw := testMessage(victimAddr, "abc123").Format()
	sig := signPersonal(t, attacker, raw)

	v := NewVerifier("")
	_, ok, err := v.Verify(raw, sig, "abc123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyTamperedMessage(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	raw := testMessage(address, "abc123").Format()
	sig := signPersonal(t, key, raw)

	tampered := testMessage(address, "abc123")
	tampered.URI = "https://evil.example.org"

	v := NewVerifier("")
	_, ok, err := v.Verify(tampered.Format(), sig, "abc123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyExpiredMessage(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	msg := testMessage(address, "abc123")
	msg.ExpirationTime = time.Now().UTC().Add(-time.Minute).Truncate(time.Second)
	raw := msg.Format()
	sig := signPersonal(t, key, raw)

	v := NewVerifier("")
	_, ok, err := v.Verify(raw, sig, "abc123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyDomainRestriction(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	raw := testMessage(address, "abc123").Format()
	sig := signPersonal(t, key, raw)

	v := NewVerifier("other.example.org")
	_, ok, err := v.Verify(raw, sig, "abc123")
	require.NoError(t, err)
	assert.False(t, ok)

	v = NewVerifier("app.example.org")
	_, ok, err = v.Verify(raw, sig, "abc123")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyMalformedInput(t *testing.T) {
	v := NewVerifier("")

	_, _, err := v.Verify("not a siwe message", "0x00", "abc123")
	require.Error(t, err)

	key, genErr := crypto.GenerateKey()
	require.NoError(t, genErr)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	raw := testMessage(address, "abc123").Format()

	_, _, err = v.Verify(raw, "not-hex", "abc123")
	require.Error(t, err)

	_, _, err = v.Verify(raw, "0x0102", "abc123")
	require.Error(t, err)
}
