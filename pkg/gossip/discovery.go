package gossip

import (
	"github.com/chrysalis/gossip-mesh/pkg/actorkit"
	"github.com/chrysalis/gossip-mesh/pkg/cluster"
	"github.com/chrysalis/gossip-mesh/pkg/receptionist"
)

// wireDiscovery starts the background translation for whichever discovery
// mode settings selected. Manual mode needs nothing further — Introduce is
// already the only source of peers. The other two modes each fold an
// external event stream into the shell's one narrow introduce-peer gate via
// a small translator actor fed by actorkit.SubReceive, the "sub-receive
// adapter" the spec names in §6.
func (s *Shell[E]) wireDiscovery() {
	switch s.settings.DiscoveryMode {
	case ClusterDriven:
		s.wireClusterDiscovery()
	case ReceptionistDriven:
		s.wireReceptionistDiscovery()
	}
}

func (s *Shell[E]) wireClusterDiscovery() {
	cfg := s.settings.Cluster
	if cfg.Source == nil || cfg.Resolve == nil {
		s.logger.Warn().Msg("cluster-driven discovery selected but no source/resolver configured")
		return
	}

	events, unsubscribe := cfg.Source.Subscribe()

	translator := s.system.Spawn(actorkit.NewAddress("discovery-translator:"+s.self.Address().String()), func(msg any) {
		event, ok := msg.(cluster.Event)
		if !ok {
			return
		}
		if event.Kind == cluster.SnapshotEvent {
			for _, member := range event.Snapshot.Members {
				s.resolveAndIntroduce(member, cfg)
			}
			return
		}
		s.resolveAndIntroduce(event.Change.Member, cfg)
	})

	stopPump := actorkit.SubReceive(translator, events)
	s.unsubscribeDiscovery = func() {
		stopPump()
		unsubscribe()
		s.system.Stop(translator)
	}
}

func (s *Shell[E]) resolveAndIntroduce(member cluster.Member, cfg ClusterDiscovery) {
	if member.Node == s.self.Address().String() {
		return
	}
	if int(member.Status) < int(cfg.StatusFloor) {
		return
	}
	peer, ok := cfg.Resolve(member)
	if !ok {
		s.logger.Warn().Str("node", member.Node).Msg("cluster member resolved to no peer handle, discovery mismatch")
		return
	}
	s.self.Tell(introducePeerMessage{Peer: peer})
}

func (s *Shell[E]) wireReceptionistDiscovery() {
	cfg := s.settings.Receptionist
	if cfg.Registry == nil || cfg.Key == "" {
		s.logger.Warn().Msg("receptionist-driven discovery selected but no registry/key configured")
		return
	}

	cfg.Registry.Register(cfg.Key, s.self)
	listings, unsubscribe := cfg.Registry.Subscribe(cfg.Key)

	translator := s.system.Spawn(actorkit.NewAddress("discovery-translator:"+s.self.Address().String()), func(msg any) {
		listing, ok := msg.(receptionist.Listing)
		if !ok {
			return
		}
		for _, ref := range listing.Refs {
			if ref.Address() == s.self.Address() {
				continue
			}
			s.self.Tell(introducePeerMessage{Peer: NewPeer(ref)})
		}
	})

	stopPump := actorkit.SubReceive(translator, listings)
	s.unsubscribeDiscovery = func() {
		stopPump()
		unsubscribe()
		s.system.Stop(translator)
	}
}

// Stop unwinds discovery subscriptions and stops the shell actor.
func (s *Shell[E]) Stop() {
	if s.unsubscribeDiscovery != nil {
		s.unsubscribeDiscovery()
	}
	s.scheduler.cancel()
	s.system.Stop(s.self)
}
