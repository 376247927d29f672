package registry

import (
	"log/slog"
	"sync"

	"github.com/gp1080/MrGamePlayer-sub001/internal/player"
)

// Registry maps a stable player identity (wallet address) to its current
// live connection. One identity has at most one entry; binding an
// identity that is already bound replaces the old connection silently;
// the displaced socket is not notified.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[string]player.Connection
	byConn     map[player.Connection]string
}

func New() *Registry {
	return &Registry{
		byIdentity: make(map[string]player.Connection),
		byConn:     make(map[player.Connection]string),
	}
}

// Authenticate binds identity to conn, replacing any prior binding for
// either side. Last bind wins.
func (r *Registry) Authenticate(conn player.Connection, identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byIdentity[identity]; ok && old != conn {
		delete(r.byConn, old)
		slog.Info("identity rebound to new connection", "player.id", identity)
	}
	if prev, ok := r.byConn[conn]; ok && prev != identity {
		delete(r.byIdentity, prev)
	}
	r.byIdentity[identity] = conn
	r.byConn[conn] = identity
}

// IdentityFor resolves the identity bound to conn, if any.
func (r *Registry) IdentityFor(conn player.Connection) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byConn[conn]
	return id, ok
}

// ConnectionFor resolves the live connection for an identity, if any.
func (r *Registry) ConnectionFor(identity string) (player.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byIdentity[identity]
	return c, ok
}

// Drop removes the binding for conn and reports the identity it carried.
// A connection that was already displaced by a newer bind is a no-op.
func (r *Registry) Drop(conn player.Connection) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byConn[conn]
	if !ok {
		return "", false
	}
	delete(r.byConn, conn)
	if current, bound := r.byIdentity[identity]; bound && current == conn {
		delete(r.byIdentity, identity)
		return identity, true
	}
	// A newer connection owns the identity now.
	return "", false
}

// Connections returns every authenticated connection, for directory fan-out.
func (r *Registry) Connections() []player.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]player.Connection, 0, len(r.byConn))
	for c := range r.byConn {
		conns = append(conns, c)
	}
	return conns
}

// Len reports the number of authenticated identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity)
}
