// Package receptionist models the registry-by-key lookup service the
// gossip engine's receptionist-driven discovery mode consumes. Grounded on
// the teacher's bridge.Manager RegisterAgent/ListAgents pattern, reduced to
// the register/subscribe/listing shape the core actually needs.
package receptionist

import (
	"sync"

	"github.com/chrysalis/gossip-mesh/pkg/actorkit"
)

// Listing is a refresh of every reference currently registered under a key.
type Listing struct {
	Key  string
	Refs []*actorkit.PID
}

// Registry is the receptionist service the core subscribes to.
type Registry interface {
	Register(key string, ref *actorkit.PID)
	Subscribe(key string) (listings <-chan Listing, unsubscribe func())
}

// MemoryRegistry is an in-memory Registry fake for tests and single-process
// demos, grounded on bridge.Manager's agents map and ListAgents.
type MemoryRegistry struct {
	mu      sync.Mutex
	entries map[string][]*actorkit.PID
	subs    map[string][]chan Listing
}

// NewMemoryRegistry creates an empty in-memory receptionist.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string][]*actorkit.PID),
		subs:    make(map[string][]chan Listing),
	}
}

// Register adds ref under key, idempotent by address, and broadcasts the
// refreshed listing to every current subscriber of key.
func (r *MemoryRegistry) Register(key string, ref *actorkit.PID) {
	r.mu.Lock()
	refs := r.entries[key]
	for _, existing := range refs {
		if existing.Address() == ref.Address() {
			r.mu.Unlock()
			return
		}
	}
	refs = append(refs, ref)
	r.entries[key] = refs
	listing := Listing{Key: key, Refs: append([]*actorkit.PID(nil), refs...)}
	subs := append([]chan Listing(nil), r.subs[key]...)
	r.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- listing:
		default:
		}
	}
}

// Subscribe registers a subscriber for key, immediately delivering the
// current listing.
func (r *MemoryRegistry) Subscribe(key string) (<-chan Listing, func()) {
	r.mu.Lock()
	ch := make(chan Listing, 32)
	r.subs[key] = append(r.subs[key], ch)
	listing := Listing{Key: key, Refs: append([]*actorkit.PID(nil), r.entries[key]...)}
	r.mu.Unlock()

	ch <- listing

	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		subs := r.subs[key]
		for i, s := range subs {
			if s == ch {
				r.subs[key] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}
