package gossip

import "github.com/chrysalis/gossip-mesh/pkg/actorkit"

// Peer is an addressable handle to another shell actor of the same
// envelope type. Peers compare by address.
type Peer struct {
	pid *actorkit.PID
}

// NewPeer wraps pid as a Peer.
func NewPeer(pid *actorkit.PID) Peer {
	return Peer{pid: pid}
}

// Address returns the peer's address.
func (p Peer) Address() actorkit.Address {
	if p.pid == nil {
		return actorkit.Address{}
	}
	return p.pid.Address()
}

// PID returns the underlying actor PID, for sending gossip via the actor
// runtime (tell/ask).
func (p Peer) PID() *actorkit.PID {
	return p.pid
}

// IsZero reports whether this Peer holds no underlying handle.
func (p Peer) IsZero() bool {
	return p.pid == nil
}

// Equal compares two peers by address.
func (p Peer) Equal(other Peer) bool {
	return p.Address() == other.Address()
}
