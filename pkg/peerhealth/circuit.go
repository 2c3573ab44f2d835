// Package peerhealth tracks per-peer send reliability for the gossip round
// scheduler, adapted from the teacher repo's generic rate-limiting circuit
// breaker into a peer-fault tracker: repeated ACK timeouts or transport
// failures against one peer trip that peer's breaker open, which the round
// scheduler consults to skip it as a *send target* for a cooldown window.
// This never touches Peer Set membership — only termination signals do
// that, per the engine's invariants — it only narrows which known peers
// are considered reachable enough to bother gossiping to this round.
package peerhealth

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the circuit breaker state for one peer.
type State int32

const (
	Closed   State = iota // peer is healthy, selectable as a send target
	Open                  // peer is failing, excluded from selection
	HalfOpen              // cooldown elapsed, a trial send is in flight
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config tunes a breaker's sensitivity.
type Config struct {
	FailureThreshold int64         // consecutive failures before opening
	SuccessThreshold int64         // consecutive successes to close from half-open
	CooldownPeriod   time.Duration // time before a trial half-open send is allowed
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		CooldownPeriod:   30 * time.Second,
	}
}

// Breaker is a single peer's circuit breaker.
type Breaker struct {
	config Config

	state         int32
	failures      int64
	successes     int64
	lastFailure   int64 // unix nano
	halfOpenInUse int32

	mu sync.Mutex
}

// NewBreaker creates a breaker starting in the closed state.
func NewBreaker(config Config) *Breaker {
	return &Breaker{config: config, state: int32(Closed)}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	return State(atomic.LoadInt32(&b.state))
}

// Selectable reports whether this peer may be chosen as a send target this
// round. A half-open trial is allowed exactly once per cooldown window.
func (b *Breaker) Selectable() bool {
	switch b.State() {
	case Closed:
		return true
	case Open:
		lastFail := atomic.LoadInt64(&b.lastFailure)
		if time.Now().UnixNano()-lastFail > int64(b.config.CooldownPeriod) {
			b.transition(HalfOpen)
			return atomic.CompareAndSwapInt32(&b.halfOpenInUse, 0, 1)
		}
		return false
	case HalfOpen:
		return atomic.CompareAndSwapInt32(&b.halfOpenInUse, 0, 1)
	default:
		return false
	}
}

// RecordSuccess notes a successful ACK for this peer.
func (b *Breaker) RecordSuccess() {
	switch b.State() {
	case Closed:
		atomic.StoreInt64(&b.failures, 0)
	case HalfOpen:
		successes := atomic.AddInt64(&b.successes, 1)
		atomic.StoreInt32(&b.halfOpenInUse, 0)
		if successes >= b.config.SuccessThreshold {
			b.transition(Closed)
		}
	}
}

// RecordFailure notes an ACK timeout or transport failure for this peer.
func (b *Breaker) RecordFailure() {
	atomic.StoreInt64(&b.lastFailure, time.Now().UnixNano())

	switch b.State() {
	case Closed:
		failures := atomic.AddInt64(&b.failures, 1)
		if failures >= b.config.FailureThreshold {
			b.transition(Open)
		}
	case HalfOpen:
		atomic.StoreInt32(&b.halfOpenInUse, 0)
		b.transition(Open)
	}
}

func (b *Breaker) transition(to State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if State(atomic.LoadInt32(&b.state)) == to {
		return
	}
	atomic.StoreInt32(&b.state, int32(to))
	atomic.StoreInt64(&b.failures, 0)
	atomic.StoreInt64(&b.successes, 0)
}

// Tracker manages one Breaker per peer address, lazily created.
type Tracker struct {
	config   Config
	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewTracker creates an empty per-peer tracker.
func NewTracker(config Config) *Tracker {
	return &Tracker{config: config, breakers: make(map[string]*Breaker)}
}

// For returns (creating if needed) the breaker for a peer key (its address
// string form).
func (t *Tracker) For(peerKey string) *Breaker {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.breakers[peerKey]
	if !ok {
		b = NewBreaker(t.config)
		t.breakers[peerKey] = b
	}
	return b
}

// Forget discards tracking state for a peer, used once it leaves the peer
// set so the tracker does not grow unbounded across churn.
func (t *Tracker) Forget(peerKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.breakers, peerKey)
}
