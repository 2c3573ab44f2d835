package gossip

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestRegistry_GetOrCreateReturnsSameInstance(t *testing.T) {
	registry := NewRegistry[string]()
	ctx := LogicContext{Identifier: NewIdentifier("x"), Logger: zerolog.Nop()}

	calls := 0
	factory := func(LogicContext) Logic[string] {
		calls++
		return &recordingLogic{received: make(chan Identifier, 1)}
	}

	first := registry.GetOrCreate(NewIdentifier("x"), ctx, factory)
	second := registry.GetOrCreate(NewIdentifier("x"), ctx, factory)

	if first != second {
		t.Fatal("expected GetOrCreate to return the same logic instance for a repeated identifier")
	}
	if calls != 1 {
		t.Fatalf("expected factory invoked exactly once, got %d", calls)
	}
}

func TestRegistry_RemoveThenGetOrCreateBuildsFresh(t *testing.T) {
	registry := NewRegistry[string]()
	ctx := LogicContext{Identifier: NewIdentifier("x"), Logger: zerolog.Nop()}

	var built []*recordingLogic
	factory := func(LogicContext) Logic[string] {
		l := &recordingLogic{received: make(chan Identifier, 1)}
		built = append(built, l)
		return l
	}

	first := registry.GetOrCreate(NewIdentifier("x"), ctx, factory)
	registry.Remove(NewIdentifier("x"))
	second := registry.GetOrCreate(NewIdentifier("x"), ctx, factory)

	if first == second {
		t.Fatal("expected a fresh logic instance after Remove")
	}
	if len(built) != 2 {
		t.Fatalf("expected factory invoked twice, got %d", len(built))
	}
}

func TestRegistry_IdentifiersInInsertionOrder(t *testing.T) {
	registry := NewRegistry[string]()
	factory := func(LogicContext) Logic[string] { return &recordingLogic{received: make(chan Identifier, 1)} }

	ids := []string{"c", "a", "b"}
	for _, id := range ids {
		registry.GetOrCreate(NewIdentifier(id), LogicContext{Identifier: NewIdentifier(id), Logger: zerolog.Nop()}, factory)
	}

	got := registry.Identifiers()
	if len(got) != len(ids) {
		t.Fatalf("expected %d identifiers, got %d", len(ids), len(got))
	}
	for i, id := range ids {
		if got[i].String() != id {
			t.Fatalf("expected identifier %d to be %q, got %q", i, id, got[i].String())
		}
	}
}
