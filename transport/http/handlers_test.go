package http

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/herald/adapters/events"
	sessionstore "github.com/layer-3/herald/adapters/session"
	"github.com/layer-3/herald/adapters/siwe"
	"github.com/layer-3/herald/adapters/storage"
	"github.com/layer-3/herald/adapters/ticket"
	"github.com/layer-3/herald/core"
	"github.com/layer-3/herald/realtime"
	"github.com/layer-3/herald/service"
)

// testServer runs the full router over real in-memory adapters with a
// cookie-carrying client, so every request flows through the session
// middleware the way a browser's would.
type testServer struct {
	ts      *httptest.Server
	client  *http.Client
	key     *ecdsa.PrivateKey
	address string
	log     *storage.MemoryLog
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	sessions := sessionstore.NewMemoryStore()
	users := storage.NewMemoryDirectory()
	notifications := storage.NewMemoryLog()
	pub := events.NewWatermillPublisher(
		gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}),
	)

	auth := service.NewAuthService(
		zerolog.Nop(),
		sessions,
		users,
		siwe.NewVerifier(""),
		ticket.NewJWTIssuer(signKey, time.Minute),
		pub,
	)
	delivery := service.NewDeliveryService(zerolog.Nop(), notifications, noConnections{}, pub, time.Millisecond)

	router := SetupRouter(zerolog.Nop(), auth, delivery, sessions, http.NotFoundHandler(), RouterConfig{
		NoncePerSecond: 1000,
		NonceBurst:     1000,
	})

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testServer{
		ts:      ts,
		client:  &http.Client{Jar: jar},
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		log:     notifications,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func (s *testServer) nonce(t *testing.T) string {
	t.Helper()
	resp, body := s.do(t, http.MethodGet, "/auth/nonce", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body)
	return string(body)
}

// signedLogin builds and signs a sign-in message over nonce.
func (s *testServer) signedLogin(t *testing.T, nonce string) map[string]string {
	t.Helper()

	msg := &siwe.Message{
		Domain:   "app.example.org",
		Address:  s.address,
		URI:      "https://app.example.org",
		Version:  "1",
		ChainID:  1,
		Nonce:    nonce,
		IssuedAt: time.Now().UTC().Truncate(time.Second),
	}
	raw := msg.Format()

	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(raw), raw)
	sig, err := crypto.Sign(crypto.Keccak256([]byte(prefixed)), s.key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27

	return map[string]string{"message": raw, "signature": hexutil.Encode(sig)}
}

func decodeSession(t *testing.T, raw []byte) core.Session {
	t.Helper()
	var session core.Session
	require.NoError(t, json.Unmarshal(raw, &session))
	return session
}

// noConnections satisfies the delivery engine's registry dependency for
// tests that never open a realtime connection.
type noConnections struct{}

func (noConnections) ListFor(string) []*realtime.Client { return nil }

func TestNonceIsPlainText(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/auth/nonce", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.NotEmpty(t, body)
}

func TestSessionDefaultsToAnonymous(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/auth/session", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"nonce":"","isLoggedIn":false,"address":""}`, string(body))
}

func TestLoginFlow(t *testing.T) {
	s := newTestServer(t)

	nonce := s.nonce(t)

	resp, body := s.do(t, http.MethodPost, "/auth/login", s.signedLogin(t, nonce))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decodeSession(t, body)
	assert.True(t, session.IsLoggedIn)
	assert.Equal(t, s.address, session.Address)
	assert.Equal(t, nonce, session.Nonce)

	// The promoted session survives the next request.
	resp, body = s.do(t, http.MethodGet, "/auth/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeSession(t, body).IsLoggedIn)

	// An authenticated session can mint a realtime ticket.
	resp, body = s.do(t, http.MethodGet, "/auth/ticket", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ticketResp struct {
		Ticket string `json:"ticket"`
	}
	require.NoError(t, json.Unmarshal(body, &ticketResp))
	assert.NotEmpty(t, ticketResp.Ticket)

	// Logout resets to the anonymous default.
	resp, body = s.do(t, http.MethodDelete, "/auth/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"nonce":"","isLoggedIn":false,"address":""}`, string(body))

	resp, _ = s.do(t, http.MethodGet, "/auth/ticket", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginWrongNonceLeavesSessionUnchanged(t *testing.T) {
	s := newTestServer(t)

	nonce := s.nonce(t)

	// A valid signature over a message carrying a foreign nonce.
	resp, body := s.do(t, http.MethodPost, "/auth/login", s.signedLogin(t, "deadbeef"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decodeSession(t, body)
	assert.False(t, session.IsLoggedIn)
	assert.Empty(t, session.Address)
	assert.Equal(t, nonce, session.Nonce)
}

func TestLoginMissingFields(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodPost, "/auth/login", map[string]string{"message": "hello"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVerifyReportsValidity(t *testing.T) {
	s := newTestServer(t)

	nonce := s.nonce(t)

	resp, body := s.do(t, http.MethodPost, "/auth/verify", s.signedLogin(t, nonce))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"valid":true}`, string(body))

	// Verify never promotes the session.
	resp, body = s.do(t, http.MethodGet, "/auth/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decodeSession(t, body).IsLoggedIn)

	resp, body = s.do(t, http.MethodPost, "/auth/verify", s.signedLogin(t, "deadbeef"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"valid":false}`, string(body))
}

func TestIngestNotifications(t *testing.T) {
	s := newTestServer(t)

	const recipient = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
	payload, err := core.PriceAlertPayload(core.PriceAlert{
		Asset:     "BTC",
		Price:     decimal.NewFromInt(64250),
		Change24h: decimal.NewFromFloat(1.7),
		Currency:  "USD",
	})
	require.NoError(t, err)

	resp, body := s.do(t, http.MethodPost, "/notifications", []core.Incoming{{UserAddress: recipient, Payload: payload}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	// Persisted for the offline recipient with the payload intact.
	all := s.log.All(recipient)
	require.Len(t, all, 1)
	var alert core.PriceAlert
	require.NoError(t, json.Unmarshal(all[0].Payload, &alert))
	assert.True(t, alert.Price.Equal(decimal.NewFromInt(64250)))

	// A batch entry without a recipient is rejected whole.
	resp, _ = s.do(t, http.MethodPost, "/notifications", []map[string]interface{}{{"payload": map[string]string{}}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodPut, "/auth/session", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
