// Package membership gossips each node's locally known peer addresses as
// the envelope, for eventually-consistent membership-view dissemination —
// the "membership views" example gossip domain named in the engine's
// purpose and scope.
package membership

import (
	"sync"

	"github.com/chrysalis/gossip-mesh/pkg/gossip"
	"github.com/chrysalis/gossip-mesh/pkg/vectorclock"
	"github.com/rs/zerolog"
)

// View is the envelope: every address this node currently knows about.
type View struct {
	Addresses []string
}

// Logic maintains an eventually-consistent view of cluster membership by
// merging every peer's reported view with its own locally known peers.
type Logic struct {
	mu       sync.Mutex
	known    map[string]struct{}
	clock    *vectorclock.VectorClock
	nodeID   string
	logger   zerolog.Logger
	onChange func(View)
}

// Factory returns a gossip.LogicFactory[View]. onChange, if non-nil, is
// invoked (on the shell's own mailbox thread) whenever the merged view
// changes.
func Factory(onChange func(View)) gossip.LogicFactory[View] {
	return func(ctx gossip.LogicContext) gossip.Logic[View] {
		nodeID := ctx.Self.Address().String()
		known := make(map[string]struct{})
		known[nodeID] = struct{}{}
		return &Logic{
			known:    known,
			clock:    vectorclock.NewWithNode(nodeID),
			nodeID:   nodeID,
			logger:   ctx.Logger.With().Str("identifier", ctx.Identifier.String()).Logger(),
			onChange: onChange,
		}
	}
}

func (l *Logic) SelectPeers(all []gossip.Peer) []gossip.Peer { return all }

func (l *Logic) MakePayload(target gossip.Peer) (View, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.known) == 0 {
		return View{}, false
	}
	addrs := make([]string, 0, len(l.known))
	for a := range l.known {
		addrs = append(addrs, a)
	}
	return View{Addresses: addrs}, true
}

func (l *Logic) ReceiveGossip(origin gossip.Peer, payload View) {
	l.mu.Lock()
	changed := false
	for _, addr := range payload.Addresses {
		if _, exists := l.known[addr]; !exists {
			l.known[addr] = struct{}{}
			changed = true
		}
	}
	if _, exists := l.known[origin.Address().String()]; !exists {
		l.known[origin.Address().String()] = struct{}{}
		changed = true
	}
	var snapshot View
	if changed {
		l.clock.Increment(l.nodeID)
		if l.onChange != nil {
			snapshot = l.snapshotLocked()
		}
	}
	l.mu.Unlock()

	if changed && l.onChange != nil {
		l.onChange(snapshot)
	}
}

func (l *Logic) ReceivePayloadACK(target gossip.Peer, confirmed View) {}

func (l *Logic) LocalGossipUpdate(payload View) {
	l.mu.Lock()
	changed := false
	for _, addr := range payload.Addresses {
		if _, exists := l.known[addr]; !exists {
			l.known[addr] = struct{}{}
			changed = true
		}
	}
	if changed {
		l.clock.Increment(l.nodeID)
	}
	l.mu.Unlock()
}

func (l *Logic) ReceiveSideChannelMessage(msg any) error {
	l.logger.Debug().Interface("msg", msg).Msg("membership ignores side-channel messages")
	return nil
}

func (l *Logic) snapshotLocked() View {
	addrs := make([]string, 0, len(l.known))
	for a := range l.known {
		addrs = append(addrs, a)
	}
	return View{Addresses: addrs}
}

// Snapshot returns the currently known addresses.
func (l *Logic) Snapshot() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// ClockValue returns this node's own component of its causal diagnostic
// clock — it increases each time a merge or local update changes the known
// view, independent of which peer's gossip triggered it.
func (l *Logic) ClockValue() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.clock.Get(l.nodeID)
}
