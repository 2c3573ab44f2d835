// Package crdtset implements a grow-only integer-set CRDT as a
// gossip.Logic[Set]: merge is idempotent set union, so retransmission and
// reordering never corrupt convergence. It is the "CRDT replicas" example
// gossip domain named in the engine's purpose and scope.
package crdtset

import (
	"sync"

	"github.com/chrysalis/gossip-mesh/pkg/gossip"
	"github.com/chrysalis/gossip-mesh/pkg/vectorclock"
	"github.com/rs/zerolog"
)

// Set is a G-Set envelope: a snapshot of known elements.
type Set map[int]struct{}

// Clone returns a copy of s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// Logic is a grow-only set CRDT. It gossips its full current membership to
// every selected peer each round — union is idempotent, so there is no
// harm in resending elements the peer already has.
type Logic struct {
	mu     sync.Mutex
	values Set
	clock  *vectorclock.VectorClock
	nodeID string
	logger zerolog.Logger
}

// Factory returns a gossip.LogicFactory[Set] seeding new instances with an
// empty set and a fresh vector clock rooted at nodeID — used purely as a
// causal diagnostic here, since set union itself needs no clock to merge
// correctly.
func Factory(nodeID string) gossip.LogicFactory[Set] {
	return func(ctx gossip.LogicContext) gossip.Logic[Set] {
		return &Logic{
			values: make(Set),
			clock:  vectorclock.NewWithNode(nodeID),
			nodeID: nodeID,
			logger: ctx.Logger.With().Str("identifier", ctx.Identifier.String()).Logger(),
		}
	}
}

func (l *Logic) SelectPeers(all []gossip.Peer) []gossip.Peer { return all }

func (l *Logic) MakePayload(target gossip.Peer) (Set, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.values) == 0 {
		return nil, false
	}
	return l.values.Clone(), true
}

func (l *Logic) ReceiveGossip(origin gossip.Peer, payload Set) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for v := range payload {
		l.values[v] = struct{}{}
	}
	l.clock.Increment(l.nodeID)
}

func (l *Logic) ReceivePayloadACK(target gossip.Peer, confirmed Set) {
	l.logger.Debug().Str("peer", target.Address().String()).Int("elements", len(confirmed)).Msg("set delta acknowledged")
}

func (l *Logic) LocalGossipUpdate(payload Set) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for v := range payload {
		l.values[v] = struct{}{}
	}
	l.clock.Increment(l.nodeID)
}

func (l *Logic) ReceiveSideChannelMessage(msg any) error {
	l.logger.Debug().Interface("msg", msg).Msg("crdtset ignores side-channel messages")
	return nil
}

// Snapshot returns the current set membership, for application use.
func (l *Logic) Snapshot() Set {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.values.Clone()
}
