package cluster

import "testing"

func TestMemoryCluster_SubscribeDeliversSnapshotFirst(t *testing.T) {
	c := NewMemoryCluster()
	c.Join("a")
	c.Join("b")

	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	event := <-events
	if event.Kind != SnapshotEvent {
		t.Fatalf("expected first event to be a snapshot, got %v", event.Kind)
	}
	if len(event.Snapshot.Members) != 2 {
		t.Fatalf("expected snapshot of 2 members, got %d", len(event.Snapshot.Members))
	}
}

func TestMemoryCluster_JoinAfterSubscribeDeliversChange(t *testing.T) {
	c := NewMemoryCluster()
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()
	<-events // snapshot

	c.Join("late")

	event := <-events
	if event.Kind != ChangeEvent {
		t.Fatalf("expected a change event, got %v", event.Kind)
	}
	if event.Change.Member.Node != "late" || event.Change.Member.Status != Up {
		t.Fatalf("unexpected change payload: %+v", event.Change.Member)
	}
}

func TestMemoryCluster_LeaveSetsDownStatus(t *testing.T) {
	c := NewMemoryCluster()
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()
	<-events // snapshot

	c.Join("x")
	<-events // join change
	c.Leave("x")

	event := <-events
	if event.Change.Member.Status != Down {
		t.Fatalf("expected Down status after Leave, got %v", event.Change.Member.Status)
	}
}

func TestMemoryCluster_UnsubscribeStopsDelivery(t *testing.T) {
	c := NewMemoryCluster()
	events, unsubscribe := c.Subscribe()
	<-events // snapshot
	unsubscribe()

	c.Join("after-unsubscribe")

	if _, ok := <-events; ok {
		t.Fatal("expected channel closed after unsubscribe, got an open channel")
	}
}

func TestStatus_String(t *testing.T) {
	cases := map[Status]string{Joining: "joining", Up: "up", Leaving: "leaving", Down: "down"}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}
