package gossip

import (
	"math/rand"
	"time"

	"github.com/chrysalis/gossip-mesh/pkg/actorkit"
)

// tickKey is the well-known timer key the scheduler uses — a single named
// timer per shell, exactly as the spec requires.
const tickKey = "gossip-periodic-tick"

// scheduler arms and re-arms the single periodic-tick timer that drives
// gossip rounds, sampling each interval independently with jitter.
type scheduler struct {
	timers *actorkit.Timers
	self   *actorkit.PID
	mean   time.Duration
	jitter float64
}

func newScheduler(self *actorkit.PID, mean time.Duration, jitter float64) *scheduler {
	return &scheduler{timers: actorkit.NewTimers(), self: self, mean: mean, jitter: jitter}
}

// ensureNextRound arms the timer for a freshly sampled interval if peers
// exist and none is currently armed; it is a no-op if one already is. It
// must be called after every handled message and after every round.
func (s *scheduler) ensureNextRound(peerSetNonEmpty bool) {
	if !peerSetNonEmpty {
		s.timers.Cancel(tickKey)
		return
	}
	if s.timers.IsArmed(tickKey) {
		return
	}
	s.timers.StartSingle(s.self, tickKey, periodicTickMessage{}, s.sample())
}

// cancel explicitly cancels the timer, used when the peer set transitions
// to empty.
func (s *scheduler) cancel() {
	s.timers.Cancel(tickKey)
}

func (s *scheduler) sample() time.Duration {
	if s.jitter <= 0 {
		return s.mean
	}
	offset := (rand.Float64()*2 - 1) * s.jitter // uniform(-f, +f)
	d := time.Duration(float64(s.mean) * (1 + offset))
	if d < 0 {
		d = 0
	}
	return d
}
