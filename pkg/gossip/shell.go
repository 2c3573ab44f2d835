// Package gossip implements the convergent gossip engine: a single
// long-lived actor (the Shell) parameterized by an envelope type, hosting
// one pluggable Logic instance per identifier, owning peer discovery,
// round scheduling, and ACK-based reliable-delivery confirmation.
//
// It is the idiomatic-Go generalization of the teacher's
// gossip.Protocol — the fixed single-state-handler broadcast/push-pull loop
// becomes a registry of independently-policied logics, and the teacher's
// TTL-decrementing epidemic forward is replaced by per-round ask/ACK
// confirmation back to each logic, per the engine's design.
package gossip

import (
	"context"
	"fmt"

	"github.com/chrysalis/gossip-mesh/pkg/actorkit"
	"github.com/chrysalis/gossip-mesh/pkg/peerhealth"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Shell is the gossip engine's orchestrator actor for one envelope type E.
type Shell[E any] struct {
	system   *actorkit.System
	self     *actorkit.PID
	logger   zerolog.Logger
	settings Settings

	peers     *PeerSet
	registry  *Registry[E]
	scheduler *scheduler
	health    *peerhealth.Tracker
	sendSem   *semaphore.Weighted

	makeLogic LogicFactory[E]

	unsubscribeDiscovery func()
}

// Start spawns a Shell under address, wires its peer-discovery mode per
// settings, and returns a ControlHandle bound to it — the idiomatic-Go
// shape of the spec's "Gossiper.start(runtime, name, settings, makeLogic)
// -> GossipControl<E>".
func Start[E any](system *actorkit.System, address actorkit.Address, settings Settings, makeLogic LogicFactory[E], logger zerolog.Logger) *ControlHandle[E] {
	if settings.AckTimeout <= 0 {
		settings.AckTimeout = DefaultSettings().AckTimeout
	}
	if settings.MaxConcurrentSends <= 0 {
		settings.MaxConcurrentSends = DefaultSettings().MaxConcurrentSends
	}

	shell := &Shell[E]{
		system:    system,
		logger:    logger.With().Str("component", "gossip").Str("shell", address.String()).Logger(),
		settings:  settings,
		peers:     NewPeerSet(),
		registry:  NewRegistry[E](),
		health:    peerhealth.NewTracker(peerhealth.DefaultConfig()),
		sendSem:   semaphore.NewWeighted(int64(settings.MaxConcurrentSends)),
		makeLogic: makeLogic,
	}

	shell.self = system.Spawn(address, shell.receive)
	shell.scheduler = newScheduler(shell.self, settings.Interval, settings.Jitter)

	shell.wireDiscovery()

	return &ControlHandle[E]{system: system, shell: shell.self, stop: shell.Stop}
}

// selfPeer returns the shell's own peer handle.
func (s *Shell[E]) selfPeer() Peer {
	return NewPeer(s.self)
}

// receive is the shell's single mailbox dispatch loop. Every branch runs to
// completion on this goroutine — the engine's entire concurrency model.
func (s *Shell[E]) receive(msg any) {
	if actorkit.Dispatch(msg) {
		return
	}

	switch m := msg.(type) {
	case gossipMessage[E]:
		s.handleGossip(m)

	case updatePayloadMessage[E]:
		s.handleUpdatePayload(m)

	case removePayloadMessage:
		s.registry.Remove(m.ID)

	case introducePeerMessage:
		s.handleIntroducePeer(m.Peer)

	case sideChannelMessage:
		s.handleSideChannel(m)

	case periodicTickMessage:
		s.handleTick()

	case actorkit.Terminated:
		s.handleTerminated(m.Address)

	default:
		s.logger.Warn().Str("type", fmt.Sprintf("%T", msg)).Msg("unhandled shell message")
	}
}

func (s *Shell[E]) handleGossip(m gossipMessage[E]) {
	ctx := LogicContext{Identifier: m.ID, Self: s.selfPeer(), Logger: s.logger}
	logic := s.registry.GetOrCreate(m.ID, ctx, s.makeLogic)
	logic.ReceiveGossip(m.Origin, m.Payload)

	if m.AckRef != nil {
		m.AckRef.Tell(GossipACK{})
	}

	s.scheduler.ensureNextRound(s.peers.Size() > 0)
}

func (s *Shell[E]) handleUpdatePayload(m updatePayloadMessage[E]) {
	ctx := LogicContext{Identifier: m.ID, Self: s.selfPeer(), Logger: s.logger}
	logic := s.registry.GetOrCreate(m.ID, ctx, s.makeLogic)
	logic.LocalGossipUpdate(m.Payload)

	s.scheduler.ensureNextRound(s.peers.Size() > 0)
}

func (s *Shell[E]) handleIntroducePeer(peer Peer) {
	if peer.Address() == s.self.Address() {
		s.logger.Debug().Err(ErrPeerIsSelf).Msg("ignoring self-introduction")
		return
	}

	if s.peers.Insert(peer) {
		s.system.Watch(s.self, peer.Address())
		s.logger.Info().Str("peer", peer.Address().String()).Msg("peer introduced")
	}

	s.scheduler.ensureNextRound(s.peers.Size() > 0)
}

func (s *Shell[E]) handleSideChannel(m sideChannelMessage) {
	logic, ok := s.registry.Get(m.ID)
	if !ok {
		if m.ReplyTo != nil {
			m.ReplyTo.Tell(Unhandled)
		}
		return
	}

	if err := logic.ReceiveSideChannelMessage(m.Msg); err != nil {
		s.logger.Error().Err(fmt.Errorf("%w: %v", ErrLogicRejected, err)).
			Str("identifier", m.ID.String()).Msg("side-channel logic error")
	}

	if m.ReplyTo != nil {
		m.ReplyTo.Tell(Received)
	}
}

func (s *Shell[E]) handleTick() {
	defer s.scheduler.ensureNextRound(s.peers.Size() > 0)

	if s.peers.Size() == 0 {
		return
	}

	targets := s.peers.Enumerate()
	for _, id := range s.registry.Identifiers() {
		logic, ok := s.registry.Get(id)
		if !ok {
			continue
		}

		selected := logic.SelectPeers(targets)
		for _, target := range selected {
			payload, ok := logic.MakePayload(target)
			if !ok {
				continue
			}
			s.sendGossip(id, target, payload, logic)
		}
	}
}

// sendGossip asks target for an ACK, bounded by MaxConcurrentSends. It
// never blocks the mailbox: the semaphore acquisition is a non-blocking
// TryAcquire, and the ask itself returns immediately, re-queuing its
// eventual outcome as a mailbox event handled by actorkit.Dispatch.
func (s *Shell[E]) sendGossip(id Identifier, target Peer, payload E, logic Logic[E]) {
	if target.PID() == nil {
		s.logger.Warn().Str("identifier", id.String()).Msg("target peer has no underlying handle, skipping")
		return
	}

	breaker := s.health.For(target.Address().String())
	if !breaker.Selectable() {
		s.logger.Debug().Str("peer", target.Address().String()).Msg("peer circuit open, skipping as send target this round")
		return
	}

	if !s.sendSem.TryAcquire(1) {
		s.logger.Warn().Str("identifier", id.String()).Msg("max concurrent sends reached, skipping target this round")
		return
	}

	self := s.selfPeer()
	ackTimeout := s.settings.AckTimeout

	s.system.Ask(context.Background(), target.PID(), func(ackRef *actorkit.PID) any {
		return gossipMessage[E]{ID: id, Origin: self, Payload: payload, AckRef: ackRef}
	}, ackTimeout, s.self, func(reply any, err error) {
		s.sendSem.Release(1)
		if err != nil {
			s.logger.Warn().Err(err).Str("peer", target.Address().String()).Msg("ack timeout or transport failure, round continues")
			breaker.RecordFailure()
			return
		}
		breaker.RecordSuccess()
		logic.ReceivePayloadACK(target, payload)
	})
}

func (s *Shell[E]) handleTerminated(addr actorkit.Address) {
	s.peers.Remove(addr)
	s.health.Forget(addr.String())
	s.scheduler.ensureNextRound(s.peers.Size() > 0)
}
