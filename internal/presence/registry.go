package presence

import "sync"

// Conn is the write side of a live client connection. Emit is safe for
// concurrent use and returns an error when the connection is gone or its
// buffer is full; callers treat that as a dropped push, not a failure.
type Conn interface {
	Emit(event string, data any) error
}

// Registry is the process-wide identity -> connection table. One user has
// at most one slot; a reconnect replaces the previous registration without
// closing the superseded connection. One RWMutex guards the whole table,
// the only structure here touched by many goroutines.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register installs conn as the user's active connection, last one wins.
func (r *Registry) Register(id string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = conn
}

// Unregister removes the user's slot only when it still holds conn. A
// stale disconnect that races a fresher reconnect must not clear the newer
// registration; it reports false and the caller skips the fan-out.
func (r *Registry) Unregister(id string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.conns[id]; !ok || current != conn {
		return false
	}
	delete(r.conns, id)
	return true
}

func (r *Registry) Lookup(id string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// IsOnline splits ids into online and offline under one lock acquisition.
func (r *Registry) IsOnline(ids []string) (online, offline []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range ids {
		if _, ok := r.conns[id]; ok {
			online = append(online, id)
		} else {
			offline = append(offline, id)
		}
	}
	return online, offline
}
