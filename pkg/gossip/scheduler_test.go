package gossip

import (
	"testing"
	"time"

	"github.com/chrysalis/gossip-mesh/pkg/actorkit"
)

func TestScheduler_SampleStaysWithinJitterBounds(t *testing.T) {
	system := actorkit.NewSystem(testLogger(), 0)
	self := system.Spawn(actorkit.NewAddress("sched"), func(msg any) {})

	mean := 100 * time.Millisecond
	jitter := 0.2
	s := newScheduler(self, mean, jitter)

	lower := time.Duration(float64(mean) * (1 - jitter))
	upper := time.Duration(float64(mean) * (1 + jitter))

	for i := 0; i < 200; i++ {
		d := s.sample()
		if d < lower || d > upper {
			t.Fatalf("sample %v outside bounds [%v, %v]", d, lower, upper)
		}
	}
}

func TestScheduler_ZeroJitterIsExact(t *testing.T) {
	system := actorkit.NewSystem(testLogger(), 0)
	self := system.Spawn(actorkit.NewAddress("sched-exact"), func(msg any) {})

	mean := 50 * time.Millisecond
	s := newScheduler(self, mean, 0)

	if got := s.sample(); got != mean {
		t.Fatalf("expected exact mean %v with zero jitter, got %v", mean, got)
	}
}

func TestScheduler_IdleWhenPeerSetEmpty(t *testing.T) {
	system := actorkit.NewSystem(testLogger(), 0)
	self := system.Spawn(actorkit.NewAddress("sched-idle"), func(msg any) {})

	s := newScheduler(self, 10*time.Millisecond, 0.1)

	s.ensureNextRound(true)
	if !s.timers.IsArmed(tickKey) {
		t.Fatal("expected timer armed when peer set is non-empty")
	}

	s.ensureNextRound(false)
	if s.timers.IsArmed(tickKey) {
		t.Fatal("expected timer cancelled once the peer set becomes empty")
	}
}
