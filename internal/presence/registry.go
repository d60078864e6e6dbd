// Package presence tracks which users currently hold a live push
// connection. Entries are transient and never persisted.
package presence

import "sync"

// Conn is the handle the registry keeps per online user. Push must not
// block: implementations enqueue and let their own writer drain.
type Conn interface {
	Push(event string, payload any) error
}

// Registry maps a user id to its single live connection. It is shared
// across all connection handlers, so every operation takes the lock;
// nothing that can suspend runs while it is held.
type Registry struct {
	mu      sync.RWMutex
	entries map[int64]Conn
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[int64]Conn)}
}

// Register records conn as the user's live connection, replacing any
// prior entry. One connection per user.
func (r *Registry) Register(userID int64, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[userID] = conn
}

// Unregister drops the user's entry if present. Calling it for an
// unknown user is a no-op.
func (r *Registry) Unregister(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, userID)
}

// UnregisterConn drops the entry only if it still belongs to conn, so a
// stale connection tearing down cannot evict its replacement.
func (r *Registry) UnregisterConn(userID int64, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.entries[userID]; ok && current == conn {
		delete(r.entries, userID)
	}
}

func (r *Registry) Lookup(userID int64) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.entries[userID]
	return conn, ok
}

func (r *Registry) Online(userID int64) bool {
	_, ok := r.Lookup(userID)
	return ok
}
