package gossip

import "github.com/chrysalis/gossip-mesh/pkg/actorkit"

// gossipMessage is peer-to-peer gossip arrival: the payload for Identifier
// originated at Origin and expects an unconditional GossipACK sent back to
// AckRef once received, regardless of any application-level merge outcome.
type gossipMessage[E any] struct {
	ID      Identifier
	Origin  Peer
	Payload E
	AckRef  *actorkit.PID
}

// GossipACK is the empty, unconditional reply to a gossipMessage.
type GossipACK struct{}

// updatePayloadMessage is a local application update routed to
// LocalGossipUpdate.
type updatePayloadMessage[E any] struct {
	ID      Identifier
	Payload E
}

// removePayloadMessage drops the logic instance for ID.
type removePayloadMessage struct {
	ID Identifier
}

// introducePeerMessage is an external peer hint, the single narrow gate
// peer discovery funnels through.
type introducePeerMessage struct {
	Peer Peer
}

// SideChannelResult is the outcome of a sideChannelMessage delivery.
type SideChannelResult int

const (
	// Unhandled means no logic exists for the message's identifier; the
	// message is dropped (actorkit has no dead-letter queue).
	Unhandled SideChannelResult = iota
	// Received means a logic existed and was invoked, even if it returned
	// an error (which is logged, not surfaced here).
	Received
)

// sideChannelMessage is a dynamically-typed application signal addressed to
// a specific identifier's logic. ReplyTo, if non-nil, receives exactly one
// SideChannelResult.
type sideChannelMessage struct {
	ID      Identifier
	Msg     any
	ReplyTo *actorkit.PID
}

// periodicTickMessage is the scheduler's single internal fire signal.
type periodicTickMessage struct{}
