package tcp

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/ryoozeen/RCS/internal/protocol"
)

// Role is what a connection has been identified as.
type Role string

const (
	RoleUnknown  Role = "Unknown"
	RoleOperator Role = "Operator"
	RoleAgent    Role = "Agent"
)

// ParseRole maps an identify name to a role. The deployed robot agent calls
// itself DOBOT or DOBOTLAB and the console RCS.
func ParseRole(name string) Role {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "AGENT", "DOBOT", "DOBOTLAB":
		return RoleAgent
	case "OPERATOR", "RCS":
		return RoleOperator
	}
	return RoleUnknown
}

func (r Role) String() string { return string(r) }

// Peer is the registry's view of a live connection.
type Peer interface {
	ID() string
	Send(msg protocol.Message) error
	Close() error
}

type registryEntry struct {
	peer Peer
	role Role
}

// ClientInfo is a point-in-time copy of a registry entry.
type ClientInfo struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Registry maps live connection ids to their peer and role. It is the only
// shared mutable state of the relay.
type Registry struct {
	mu      sync.RWMutex // read-write mutex for concurrent access from every read loop
	entries map[string]*registryEntry
	order   []string // registration order, scanned by FirstWithRole
	logger  *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*registryEntry),
		logger:  logger,
	}
}

// Add registers a new connection with RoleUnknown.
func (r *Registry) Add(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := p.ID()
	if _, exists := r.entries[id]; !exists {
		r.order = append(r.order, id)
	}
	r.entries[id] = &registryEntry{peer: p, role: RoleUnknown}
	r.logger.Info("client_added", "client_id", id)
}

// Identify sets or replaces the role of a registered connection. It reports
// false for ids that are not (or no longer) registered, so a read loop racing
// its own disconnect cannot resurrect an entry.
func (r *Registry) Identify(id string, role Role) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.role = role
	r.logger.Info("client_identified", "client_id", id, "role", role)
	return true
}

// RoleOf returns RoleUnknown for ids that are not registered.
func (r *Registry) RoleOf(id string) Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.role
	}
	return RoleUnknown
}

// FirstWithRole returns the earliest registered connection holding role.
func (r *Registry) FirstWithRole(role Role) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if r.entries[id].role == role {
			return id, true
		}
	}
	return "", false
}

// Lookup returns the live peer for id.
func (r *Registry) Lookup(id string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.peer, true
}

// Remove drops id and returns the role it held. Removing twice is a no-op.
func (r *Registry) Remove(id string) Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return RoleUnknown
	}
	delete(r.entries, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.logger.Info("client_removed", "client_id", id, "role", e.role)
	return e.role
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot lists every entry in registration order.
func (r *Registry) Snapshot() []ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ClientInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, ClientInfo{ID: id, Role: r.entries[id].role})
	}
	return out
}

// CloseAll closes every live peer. Peers are closed outside the lock because
// closing fires the disconnect callback, which calls Remove.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	peers := make([]Peer, 0, len(r.entries))
	for _, e := range r.entries {
		peers = append(peers, e.peer)
	}
	r.mu.RUnlock()

	for _, p := range peers {
		if err := p.Close(); err != nil {
			r.logger.Debug("client_close_failed", "client_id", p.ID(), "error", err)
		}
		r.logger.Info("client_connection_closed", "client_id", p.ID())
	}
}
