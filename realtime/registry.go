package realtime

import (
	"sync"

	"github.com/rs/zerolog"
)

// Registry maps a verified address to its set of live connections.
// Many connections may map to one address (multiple devices and tabs).
//
// Mutations are serialized behind one mutex so a fan-out snapshot never
// observes a half-added or half-removed connection.
type Registry struct {
	log zerolog.Logger

	mu          sync.RWMutex
	connections map[string]map[string]*Client // address -> conn id -> client
}

// NewRegistry constructs an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		log:         log,
		connections: make(map[string]map[string]*Client),
	}
}

// Register adds the client under its address, creating the set if
// absent. The gateway only calls this after an authenticated handshake.
func (r *Registry) Register(client *Client) {
	if client == nil || client.UserAddress == "" {
		return
	}

	r.mu.Lock()
	set, ok := r.connections[client.UserAddress]
	if !ok {
		set = make(map[string]*Client)
		r.connections[client.UserAddress] = set
	}
	set[client.ID] = client
	r.mu.Unlock()

	r.log.Info().
		Str("address", client.UserAddress).
		Str("connection_id", client.ID).
		Msg("connection registered")
}

// Unregister removes the client from whatever set it belongs to and
// prunes the address entry when the set becomes empty. Removal happens
// immediately on disconnect; there is no grace period.
func (r *Registry) Unregister(client *Client) {
	if client == nil {
		return
	}

	r.mu.Lock()
	if set, ok := r.connections[client.UserAddress]; ok {
		delete(set, client.ID)
		if len(set) == 0 {
			delete(r.connections, client.UserAddress)
		}
	}
	r.mu.Unlock()

	r.log.Info().
		Str("address", client.UserAddress).
		Str("connection_id", client.ID).
		Msg("connection unregistered")
}

// ListFor returns a snapshot of the live connections for address. The
// returned slice is owned by the caller.
func (r *Registry) ListFor(address string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.connections[address]
	if !ok {
		return nil
	}
	out := make([]*Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// Count returns the number of live connections for address.
func (r *Registry) Count(address string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections[address])
}
