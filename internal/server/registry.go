package server

import (
	"sync"

	"github.com/google/uuid"

	"vahub-messaging/internal/domain"
)

// Registry is the hub's connection bookkeeping: users to their open
// sockets, plus the admin room. Split from the hub so the multi-device
// accounting is testable without websocket plumbing.
type Registry struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[string]*Client
	admins  map[uuid.UUID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[uuid.UUID]map[string]*Client),
		admins:  make(map[uuid.UUID]struct{}),
	}
}

// Add registers a socket and reports whether it is the user's first;
// only the first socket triggers a presence transition.
func (r *Registry) Add(c *Client) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sockets, ok := r.clients[c.userID]
	if !ok {
		sockets = make(map[string]*Client)
		r.clients[c.userID] = sockets
	}
	first = len(sockets) == 0
	sockets[c.clientID] = c
	if c.role == domain.RoleAdmin {
		r.admins[c.userID] = struct{}{}
	}
	return first
}

// Remove drops a socket and reports whether it was the user's last
// (the offline trigger) and whether it was registered at all.
func (r *Registry) Remove(c *Client) (last, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sockets, exists := r.clients[c.userID]
	if !exists {
		return false, false
	}
	if _, exists := sockets[c.clientID]; !exists {
		return false, false
	}
	delete(sockets, c.clientID)
	if len(sockets) == 0 {
		delete(r.clients, c.userID)
		delete(r.admins, c.userID)
		return true, true
	}
	return false, true
}

// SocketsFor snapshots the user's open sockets.
func (r *Registry) SocketsFor(userID uuid.UUID) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sockets := r.clients[userID]
	out := make([]*Client, 0, len(sockets))
	for _, c := range sockets {
		out = append(out, c)
	}
	return out
}

// AdminSockets snapshots every socket belonging to a connected admin.
func (r *Registry) AdminSockets() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Client
	for adminID := range r.admins {
		for _, c := range r.clients[adminID] {
			out = append(out, c)
		}
	}
	return out
}

// IsOnline reports whether the user has at least one open socket.
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients[userID]) > 0
}

// SocketCount returns the number of open sockets for a user.
func (r *Registry) SocketCount(userID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients[userID])
}

// Totals returns connected users and total sockets.
func (r *Registry) Totals() (users, sockets int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users = len(r.clients)
	for _, s := range r.clients {
		sockets += len(s)
	}
	return users, sockets
}

// All snapshots every connected client.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Client
	for _, sockets := range r.clients {
		for _, c := range sockets {
			out = append(out, c)
		}
	}
	return out
}
