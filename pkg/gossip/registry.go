package gossip

// Registry maps Identifier to a live Logic instance within one shell,
// insertion-ordered so gossip rounds iterate logics deterministically — the
// teacher never needed this (gossip.Protocol has a single implicit state
// handler), but it is the direct generalization of that single-handler
// design to many coexisting identifiers.
type Registry[E any] struct {
	order  []Identifier
	logics map[Identifier]Logic[E]
}

// NewRegistry creates an empty registry.
func NewRegistry[E any]() *Registry[E] {
	return &Registry[E]{logics: make(map[Identifier]Logic[E])}
}

// Get returns the logic for id, if one exists.
func (r *Registry[E]) Get(id Identifier) (Logic[E], bool) {
	l, ok := r.logics[id]
	return l, ok
}

// GetOrCreate returns the existing logic for id, or constructs one via
// factory(ctx), records it, and returns it. Exactly one logic instance ever
// exists per identifier at a time, per the engine's uniqueness invariant.
func (r *Registry[E]) GetOrCreate(id Identifier, ctx LogicContext, factory LogicFactory[E]) Logic[E] {
	if l, ok := r.logics[id]; ok {
		return l
	}
	l := factory(ctx)
	r.logics[id] = l
	r.order = append(r.order, id)
	return l
}

// Remove drops the logic instance for id. A subsequently received gossip
// for id re-creates a fresh logic via GetOrCreate — documented as an open
// design point (registry re-creation on stale gossip), kept as-is.
func (r *Registry[E]) Remove(id Identifier) {
	if _, ok := r.logics[id]; !ok {
		return
	}
	delete(r.logics, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Identifiers returns every registered identifier in insertion order.
func (r *Registry[E]) Identifiers() []Identifier {
	return append([]Identifier(nil), r.order...)
}
