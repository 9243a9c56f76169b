// Package peer implements spec.md §3 and §4.2's PeerAdapter: the
// per-socket perfect-negotiation state machine wrapping one
// webrtc.PeerConnection. The relay is always the impolite peer.
package peer

import "sync"

// Registry is the supervisor-owned table of live adapters, grounded on
// the teacher's sfuServer.peers map (webrtc/sfu.go) but kept as its own
// type instead of a package-global so it can be constructed per process
// run and closed deterministically, per spec.md §9's "Global media
// factory" design note.
type Registry struct {
	mu   sync.Mutex
	byID map[string]*Adapter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Adapter)}
}

// Add registers an adapter under its stable ID.
func (r *Registry) Add(a *Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[a.ID] = a
}

// Remove drops an adapter from the table. Called from Adapter.Close so
// a torn-down adapter can never be looked up again, closing the race a
// bare weak reference would otherwise leave open.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// Get looks up a live adapter by ID. The second return is false once
// the adapter has closed and removed itself.
func (r *Registry) Get(id string) (*Adapter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	return a, ok
}

// Len reports the number of live adapters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Each calls fn for every live adapter. fn must not call back into the
// registry; Each holds the lock for its whole iteration, matching the
// teacher's own broadcast loops over sfuServer.peers.
func (r *Registry) Each(fn func(*Adapter)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		fn(a)
	}
}
