package gossip

import (
	"testing"

	"github.com/chrysalis/gossip-mesh/pkg/actorkit"
)

func TestPeerSet_InsertIsIdempotent(t *testing.T) {
	system := actorkit.NewSystem(testLogger(), 0)
	pid := system.Spawn(actorkit.NewAddress("p1"), func(msg any) {})
	peer := NewPeer(pid)

	set := NewPeerSet()

	if !set.Insert(peer) {
		t.Fatal("expected first insertion to report true")
	}
	if set.Insert(peer) {
		t.Fatal("expected duplicate insertion to report false")
	}
	if set.Insert(peer) {
		t.Fatal("expected a third duplicate insertion to still report false")
	}

	if got := set.Size(); got != 1 {
		t.Fatalf("expected size 1 after repeated introduction of the same peer, got %d", got)
	}
	if got := len(set.Enumerate()); got != 1 {
		t.Fatalf("expected exactly one enumerated peer, got %d", got)
	}
}

func TestPeerSet_RemoveThenReinsertSucceeds(t *testing.T) {
	system := actorkit.NewSystem(testLogger(), 0)
	pid := system.Spawn(actorkit.NewAddress("p2"), func(msg any) {})
	peer := NewPeer(pid)

	set := NewPeerSet()
	set.Insert(peer)
	set.Remove(peer.Address())

	if set.Contains(peer.Address()) {
		t.Fatal("expected peer to be absent after removal")
	}
	if !set.Insert(peer) {
		t.Fatal("expected reinsertion after removal to succeed")
	}
	if got := set.Size(); got != 1 {
		t.Fatalf("expected size 1 after reinsertion, got %d", got)
	}
}

func TestPeerSet_EnumerateIsInsertionOrder(t *testing.T) {
	system := actorkit.NewSystem(testLogger(), 0)
	set := NewPeerSet()

	names := []string{"first", "second", "third"}
	for _, name := range names {
		pid := system.Spawn(actorkit.NewAddress(name), func(msg any) {})
		set.Insert(NewPeer(pid))
	}

	enumerated := set.Enumerate()
	if len(enumerated) != len(names) {
		t.Fatalf("expected %d peers, got %d", len(names), len(enumerated))
	}
	for i, name := range names {
		if enumerated[i].Address().String() != name {
			t.Fatalf("expected peer %d to be %q, got %q", i, name, enumerated[i].Address().String())
		}
	}
}
