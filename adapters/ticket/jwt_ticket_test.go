package ticket

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/layer-3/herald/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func TestIssueAndVerify(t *testing.T) {
	issuer := NewJWTIssuer(testKey(t), time.Minute)

	ticket, err := issuer.Issue("0x8ba1f109551bD432803012645Ac136ddd64DBA72")
	require.NoError(t, err)
	require.NotEmpty(t, ticket)

	address, err := issuer.Verify(ticket)
	require.NoError(t, err)
	assert.Equal(t, "0x8ba1f109551bD432803012645Ac136ddd64DBA72", address)
}

func TestVerifyExpired(t *testing.T) {
	issuer := NewJWTIssuer(testKey(t), time.Nanosecond)

	ticket, err := issuer.Issue("0x8ba1f109551bD432803012645Ac136ddd64DBA72")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = issuer.Verify(ticket)
	assert.ErrorIs(t, err, core.ErrTicketExpired)
}

func TestVerifyGarbage(t *testing.T) {
	issuer := NewJWTIssuer(testKey(t), time.Minute)

	_, err := issuer.Verify("not.a.ticket")
	assert.ErrorIs(t, err, core.ErrInvalidTicket)
}

func TestVerifyForeignKey(t *testing.T) {
	issuer := NewJWTIssuer(testKey(t), time.Minute)
	other := NewJWTIssuer(testKey(t), time.Minute)

	ticket, err := other.Issue("0x8ba1f109551bD432803012645Ac136ddd64DBA72")
	require.NoError(t, err)

	_, err = issuer.Verify(ticket)
	assert.ErrorIs(t, err, core.ErrInvalidTicket)
}
