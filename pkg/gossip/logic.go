package gossip

import "github.com/rs/zerolog"

// Logic is the caller-supplied policy object for one gossip identifier,
// parameterized over the envelope type E it gossips. The shell hosts many
// logics of the same concrete type side by side, one per identifier; it
// never constructs one itself, only through a LogicFactory.
type Logic[E any] interface {
	// SelectPeers chooses this round's targets from the currently known
	// peers. May return a subset or none; ordering is the logic's concern.
	SelectPeers(all []Peer) []Peer

	// MakePayload materializes the envelope to send to target. The second
	// return value is false to skip this target this round.
	MakePayload(target Peer) (E, bool)

	// ReceiveGossip merges an inbound envelope. Must be idempotent under
	// retransmission — the engine performs no deduplication.
	ReceiveGossip(origin Peer, payload E)

	// ReceivePayloadACK is invoked once an in-flight gossip to target was
	// acknowledged, carrying the payload that was confirmed delivered.
	ReceivePayloadACK(target Peer, confirmed E)

	// LocalGossipUpdate absorbs an update supplied by the local application.
	LocalGossipUpdate(payload E)

	// ReceiveSideChannelMessage handles a dynamically-typed side-channel
	// message. A returned error is logged but never kills the shell.
	ReceiveSideChannelMessage(msg any) error
}

// LogicContext is handed to a LogicFactory when a logic instance is first
// constructed, giving it its own identifier, the owning shell's peer
// handle, and a logger. It carries no clock.
type LogicContext struct {
	Identifier Identifier
	Self       Peer
	Logger     zerolog.Logger
}

// LogicFactory constructs a fresh Logic instance for one identifier, lazily
// invoked on first reference (a local update or inbound gossip for an
// identifier with no existing instance).
type LogicFactory[E any] func(ctx LogicContext) Logic[E]
