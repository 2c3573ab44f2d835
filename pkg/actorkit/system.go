// Package actorkit is a small in-process actor runtime: mailboxes, spawn,
// tell, watch, and named timers. It exists to give the gossip shell
// (pkg/gossip) a real, testable host — the spec treats the surrounding
// actor runtime as an external collaborator reachable only through
// spawn/tell/ask/watch/timer primitives, so this package implements exactly
// those primitives and nothing more.
package actorkit

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Address is an opaque, comparable identity for a spawned actor. Peers in
// the gossip engine are compared by Address, never by mailbox reference.
type Address struct {
	id string
}

// NewAddress wraps a string identity (typically "node@host:port" or similar)
// into an Address.
func NewAddress(id string) Address {
	return Address{id: id}
}

// String returns the underlying identity string.
func (a Address) String() string {
	return a.id
}

// IsZero reports whether a is the zero-value address.
func (a Address) IsZero() bool {
	return a.id == ""
}

// ReceiveFunc processes one mailbox message. It runs on the actor's own
// goroutine and must not block indefinitely — the runtime guarantees
// sequential delivery but does not protect a slow receiver from starving
// its own mailbox.
type ReceiveFunc func(msg any)

// PID is a reference to a spawned actor's mailbox.
type PID struct {
	addr    Address
	mailbox chan any
	system  *System
}

// Address returns the PID's address.
func (p *PID) Address() Address {
	return p.addr
}

// Tell is a best-effort asynchronous send. It never blocks: if the mailbox
// is full the message is dropped and Tell returns false.
func (p *PID) Tell(msg any) bool {
	select {
	case p.mailbox <- msg:
		return true
	default:
		return false
	}
}

// System owns the actor population: spawning, mailbox dispatch, watch
// relations, and named timers.
type System struct {
	logger zerolog.Logger

	mu        sync.Mutex
	actors    map[Address]*actorHandle
	watchers  map[Address]map[Address]*PID // watched address -> set of watchers
	mailboxSz int
}

type actorHandle struct {
	pid    *PID
	cancel context.CancelFunc
	done   chan struct{}
}

// Terminated is delivered to every watcher of addr once the watched actor
// stops, exactly once per watch relation.
type Terminated struct {
	Address Address
}

// NewSystem creates an actor system. mailboxSize bounds each actor's
// mailbox; non-positive values fall back to a sensible default.
func NewSystem(logger zerolog.Logger, mailboxSize int) *System {
	if mailboxSize <= 0 {
		mailboxSize = 256
	}
	return &System{
		logger:    logger.With().Str("component", "actorkit").Logger(),
		actors:    make(map[Address]*actorHandle),
		watchers:  make(map[Address]map[Address]*PID),
		mailboxSz: mailboxSize,
	}
}

// Spawn starts a new actor under addr, dispatching mailbox messages to
// receive one at a time on a dedicated goroutine. Spawning under an address
// that is already live replaces the previous actor's PID registration (the
// caller is responsible for having stopped it first).
func (s *System) Spawn(addr Address, receive ReceiveFunc) *PID {
	ctx, cancel := context.WithCancel(context.Background())
	pid := &PID{addr: addr, mailbox: make(chan any, s.mailboxSz), system: s}

	handle := &actorHandle{pid: pid, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.actors[addr] = handle
	s.mu.Unlock()

	go func() {
		defer close(handle.done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-pid.mailbox:
				receive(msg)
			}
		}
	}()

	return pid
}

// Stop terminates the actor at pid and notifies everything watching it,
// exactly once per watch relation. Stop is idempotent.
func (s *System) Stop(pid *PID) {
	s.mu.Lock()
	handle, ok := s.actors[pid.addr]
	if ok {
		delete(s.actors, pid.addr)
	}
	watchers := s.watchers[pid.addr]
	delete(s.watchers, pid.addr)
	s.mu.Unlock()

	if !ok {
		return
	}
	handle.cancel()

	for _, watcher := range watchers {
		watcher.Tell(Terminated{Address: pid.addr})
	}
}

// Watch registers watcher to receive a Terminated message when the actor at
// target stops. Watching an address that is not currently live is a no-op
// other than bookkeeping — termination of something never spawned will
// never fire, matching the "watch is a relation plus lookup, not ownership"
// design note.
func (s *System) Watch(watcher *PID, target Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.watchers[target]
	if !ok {
		set = make(map[Address]*PID)
		s.watchers[target] = set
	}
	set[watcher.addr] = watcher
}

// Unwatch removes a previously registered watch relation.
func (s *System) Unwatch(watcher *PID, target Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if set, ok := s.watchers[target]; ok {
		delete(set, watcher.addr)
		if len(set) == 0 {
			delete(s.watchers, target)
		}
	}
}

// Lookup returns the live PID registered under addr, if any.
func (s *System) Lookup(addr Address) (*PID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle, ok := s.actors[addr]
	if !ok {
		return nil, false
	}
	return handle.pid, true
}
