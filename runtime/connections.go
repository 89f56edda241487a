// Package runtime owns the in-memory state of the realtime gateway:
// which connections belong to which user, which users belong to which room,
// and how events are fanned out to them.
package runtime

import (
	"match-chat/contract"
	"match-chat/domain"
	"sync"
)

// ConnectionRegistry maps a user to its currently open connections (one per device or tab).
// Connections are compared by value, never by a derived key.
type ConnectionRegistry struct {
	mu     sync.RWMutex
	byUser map[domain.UserID][]contract.Connection
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{byUser: make(map[domain.UserID][]contract.Connection)}
}

// Attach appends conn to the user's connections, creating the list if needed.
func (r *ConnectionRegistry) Attach(user domain.UserID, conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[user] = append(r.byUser[user], conn)
}

// Detach removes exactly conn from the user's connections.
// An emptied list is kept so that the user stays known to the registry.
func (r *ConnectionRegistry) Detach(user domain.UserID, conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.byUser[user]
	if !ok {
		return
	}
	remaining := make([]contract.Connection, 0, len(conns))
	for _, c := range conns {
		if c != conn {
			remaining = append(remaining, c)
		}
	}
	r.byUser[user] = remaining
}

// ListConnections returns a copy of the user's live connections.
// The boolean is false when the user has no mapping at all.
func (r *ConnectionRegistry) ListConnections(user domain.UserID) ([]contract.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns, ok := r.byUser[user]
	if !ok {
		return nil, false
	}
	out := make([]contract.Connection, len(conns))
	copy(out, conns)
	return out, true
}

// IsLastConnection reports whether no connection other than conn remains for user.
// An unknown user counts as a last connection.
func (r *ConnectionRegistry) IsLastConnection(user domain.UserID, conn contract.Connection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.byUser[user] {
		if c != conn {
			return false
		}
	}
	return true
}

// Stats returns the number of users with at least one connection and the total number of connections.
func (r *ConnectionRegistry) Stats() (users, connections int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, conns := range r.byUser {
		if len(conns) > 0 {
			users++
		}
		connections += len(conns)
	}
	return users, connections
}

// OnlineUsers returns the users holding at least one connection, in no particular order.
func (r *ConnectionRegistry) OnlineUsers() []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]domain.UserID, 0, len(r.byUser))
	for user, conns := range r.byUser {
		if len(conns) > 0 {
			users = append(users, user)
		}
	}
	return users
}
