package realtime

import (
	"sync"
	"time"
)

const defaultSendQueueSize = 64

// Client represents one live realtime connection bound to a verified
// address at handshake time.
//
// Send is never closed by the server so that concurrent fan-out remains
// panic-safe; Close only signals Done. Close is idempotent.
type Client struct {
	ID          string
	UserAddress string
	Send        chan Envelope
	ConnectedAt time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(id, userAddress string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}
	return &Client{
		ID:          id,
		UserAddress: userAddress,
		Send:        make(chan Envelope, sendQueueSize),
		ConnectedAt: time.Now().UTC(),
		done:        make(chan struct{}),
	}
}

// Done returns a channel closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close signals shutdown (idempotent). It does NOT close Send.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Enqueue offers env to the client without blocking. It reports false
// when the client is shutting down or its queue is full; callers treat
// that as a transport failure.
func (c *Client) Enqueue(env Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.Send <- env:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}
