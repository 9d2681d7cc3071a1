package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/layer-3/herald/ports"
	"github.com/rs/zerolog"
)

const (
	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsHelloTimeout        = 10 * time.Second
	wsHeartbeatEvery      = 30 * time.Second
	wsHeartbeatTimeout    = 5 * time.Second
	wsMaxPingFailures     = 3
	wsMaxFrameBytes       = 1 << 16
)

// ConnectHandler is invoked once per authenticated connection; the
// delivery engine hangs its backlog flush off it.
type ConnectHandler interface {
	HandleConnect(ctx context.Context, client *Client) error
}

// Gateway is the websocket entrypoint. It authenticates the handshake
// (first envelope must be a hello carrying a valid realtime ticket),
// registers the connection, and runs the writer and heartbeat loops.
type Gateway struct {
	log      zerolog.Logger
	registry *Registry
	tickets  ports.TicketIssuer
	delivery ConnectHandler

	writeTimeout    time.Duration
	readIdleTimeout time.Duration
	sendQueueSize   int
}

// GatewayConfig tunes the gateway; zero values select defaults.
type GatewayConfig struct {
	WriteTimeout    time.Duration
	ReadIdleTimeout time.Duration
	SendQueueSize   int
}

// NewGateway constructs a gateway.
func NewGateway(log zerolog.Logger, registry *Registry, tickets ports.TicketIssuer, delivery ConnectHandler, cfg GatewayConfig) *Gateway {
	g := &Gateway{
		log:             log,
		registry:        registry,
		tickets:         tickets,
		delivery:        delivery,
		writeTimeout:    cfg.WriteTimeout,
		readIdleTimeout: cfg.ReadIdleTimeout,
		sendQueueSize:   cfg.SendQueueSize,
	}
	if g.writeTimeout <= 0 {
		g.writeTimeout = wsDefaultWriteTimeout
	}
	if g.readIdleTimeout <= 0 {
		g.readIdleTimeout = wsDefaultReadIdle
	}
	return g
}

// ServeHTTP adapter so the gateway mounts as an http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades the request and runs the connection lifecycle.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.log.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	conn.SetReadLimit(wsMaxFrameBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	address, err := g.awaitHello(ctx, conn)
	if err != nil {
		g.log.Info().Err(err).Str("remote", r.RemoteAddr).Msg("handshake rejected")
		_ = conn.Close(websocket.StatusPolicyViolation, "authentication required")
		return
	}

	client := NewClient(uuid.New().String(), address, g.sendQueueSize)

	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			// Remove from the registry before signalling the client so
			// broadcasters stop picking it up first.
			g.registry.Unregister(client)
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	g.registry.Register(client)

	ack, err := NewEnvelope(TypeHelloAck, HelloAckPayload{ConnectionID: client.ID, UserAddress: address})
	if err == nil {
		_ = writeEnvelope(ctx, conn, ack, g.writeTimeout)
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.writeTimeout); err != nil {
					g.log.Info().Err(err).Str("connection_id", client.ID).Msg("write failed")
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	go g.heartbeat(ctx, conn, client, shutdown)

	// Backlog flush runs off the connection's read loop so a slow flush
	// never blocks inbound close detection.
	go func() {
		if err := g.delivery.HandleConnect(ctx, client); err != nil {
			g.log.Warn().Err(err).
				Str("address", address).
				Str("connection_id", client.ID).
				Msg("backlog flush aborted")
		}
	}()

	// Inbound frames are only read to detect disconnect; clients have no
	// post-handshake commands.
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.readIdleTimeout)
		_, _, err := conn.Read(readCtx)
		readCancel()
		if err != nil {
			shutdown(websocket.StatusNormalClosure, "peer closed")
			break
		}
	}

	<-writerDone
}

// awaitHello reads and validates the authentication envelope. The claimed
// address alone is never trusted: the ticket must verify and its subject
// must match.
func (g *Gateway) awaitHello(ctx context.Context, conn *websocket.Conn) (string, error) {
	helloCtx, cancel := context.WithTimeout(ctx, wsHelloTimeout)
	defer cancel()

	_, data, err := conn.Read(helloCtx)
	if err != nil {
		return "", fmt.Errorf("reading hello: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("malformed hello envelope: %w", err)
	}
	if env.Type != TypeHello {
		return "", fmt.Errorf("expected %s, got %q", TypeHello, env.Type)
	}

	var hello HelloPayload
	if err := json.Unmarshal(env.Payload, &hello); err != nil {
		return "", fmt.Errorf("malformed hello payload: %w", err)
	}
	if hello.UserAddress == "" {
		return "", fmt.Errorf("missing userAddress")
	}
	if !common.IsHexAddress(hello.UserAddress) {
		return "", fmt.Errorf("malformed userAddress")
	}

	subject, err := g.tickets.Verify(hello.Ticket)
	if err != nil {
		return "", fmt.Errorf("ticket rejected: %w", err)
	}
	if !strings.EqualFold(subject, hello.UserAddress) {
		return "", fmt.Errorf("ticket subject mismatch")
	}

	return common.HexToAddress(hello.UserAddress).Hex(), nil
}

func (g *Gateway) heartbeat(ctx context.Context, conn *websocket.Conn, client *Client, shutdown func(websocket.StatusCode, string)) {
	t := time.NewTicker(wsHeartbeatEvery)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case <-t.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, wsHeartbeatTimeout)
			err := conn.Ping(pingCtx)
			pingCancel()

			if err != nil {
				failures++
				if failures >= wsMaxPingFailures {
					shutdown(websocket.StatusGoingAway, "heartbeat failed")
					return
				}
				continue
			}
			failures = 0
		}
	}
}

func writeEnvelope(ctx context.Context, conn *websocket.Conn, env Envelope, timeout time.Duration) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return conn.Write(writeCtx, websocket.MessageText, data)
}
