// Package station tracks live station connections and the acknowledgments
// they send back.
package station

import (
	"context"
	"sort"
	"sync"
)

// Conn is a live connection to a station. Implementations must be pointer
// types so that handles can be compared on release.
type Conn interface {
	// Send writes one frame to the station.
	Send(ctx context.Context, frame []byte) error
	Close() error
}

// Registry maps station identifiers to their live connection.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]Conn
	observer func(connected int)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// SetObserver installs a callback invoked with the number of connected
// stations after every change. It runs outside the registry lock.
func (r *Registry) SetObserver(fn func(connected int)) {
	r.mu.Lock()
	r.observer = fn
	r.mu.Unlock()
}

// Register stores c for id and returns the handle it replaced, if any.
func (r *Registry) Register(id string, c Conn) Conn {
	r.mu.Lock()
	prev := r.conns[id]
	r.conns[id] = c
	n, obs := len(r.conns), r.observer
	r.mu.Unlock()
	if obs != nil {
		obs(n)
	}
	return prev
}

// Unregister removes the handle of id. It is a no-op when id is unknown.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	_, ok := r.conns[id]
	delete(r.conns, id)
	n, obs := len(r.conns), r.observer
	r.mu.Unlock()
	if ok && obs != nil {
		obs(n)
	}
}

// Release removes id only while c is still its registered handle, so a late
// disconnect of a replaced connection leaves the newer one in place.
func (r *Registry) Release(id string, c Conn) bool {
	r.mu.Lock()
	cur, ok := r.conns[id]
	released := ok && cur == c
	if released {
		delete(r.conns, id)
	}
	n, obs := len(r.conns), r.observer
	r.mu.Unlock()
	if released && obs != nil {
		obs(n)
	}
	return released
}

// Lookup returns the live handle of id.
func (r *Registry) Lookup(id string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// IDs returns the connected station identifiers in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of connected stations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll closes and removes every connection.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]Conn)
	obs := r.observer
	r.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
	if obs != nil {
		obs(0)
	}
}
