package gossip

import "github.com/chrysalis/gossip-mesh/pkg/actorkit"

// PeerSet is a deduplicated, insertion-ordered collection of peer handles.
// It is mutated only from the owning shell's mailbox goroutine, so unlike
// the teacher's gossip.Protocol.peers it carries no mutex — the spec's
// single-threaded-per-shell concurrency model makes one unnecessary.
type PeerSet struct {
	peers map[actorkit.Address]Peer
	order []actorkit.Address
}

// NewPeerSet creates an empty peer set.
func NewPeerSet() *PeerSet {
	return &PeerSet{peers: make(map[actorkit.Address]Peer)}
}

// Insert adds p if not already present, reporting whether it was inserted.
// The caller is responsible for watching newly inserted peers.
func (s *PeerSet) Insert(p Peer) bool {
	addr := p.Address()
	if _, exists := s.peers[addr]; exists {
		return false
	}
	s.peers[addr] = p
	s.order = append(s.order, addr)
	return true
}

// Remove drops the peer at addr, if present.
func (s *PeerSet) Remove(addr actorkit.Address) {
	if _, exists := s.peers[addr]; !exists {
		return
	}
	delete(s.peers, addr)
	for i, a := range s.order {
		if a == addr {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Contains reports whether addr is a current member.
func (s *PeerSet) Contains(addr actorkit.Address) bool {
	_, ok := s.peers[addr]
	return ok
}

// Size returns the current membership count.
func (s *PeerSet) Size() int {
	return len(s.order)
}

// Enumerate returns a snapshot of the current peers in insertion order.
func (s *PeerSet) Enumerate() []Peer {
	out := make([]Peer, 0, len(s.order))
	for _, addr := range s.order {
		out = append(out, s.peers[addr])
	}
	return out
}
