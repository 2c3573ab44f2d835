package transport

import (
	"context"
	"testing"
)

func TestInternalTransport_SendDeliversToHandler(t *testing.T) {
	registry := NewInternalRegistry()
	a := NewInternalTransport(registry, "a")
	b := NewInternalTransport(registry, "b")

	received := make(chan []byte, 1)
	b.SetHandler(func(from string, data []byte) {
		if from != "a" {
			t.Errorf("expected frame from %q, got %q", "a", from)
		}
		received <- data
	})

	if err := a.Send(context.Background(), "b", []byte("hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != "hello" {
			t.Errorf("expected %q, got %q", "hello", data)
		}
	default:
		t.Fatal("expected handler to run synchronously")
	}
}

func TestInternalTransport_SendToUnknownAddressFails(t *testing.T) {
	registry := NewInternalRegistry()
	a := NewInternalTransport(registry, "a")

	if err := a.Send(context.Background(), "ghost", []byte("hello")); err == nil {
		t.Fatal("expected an error sending to an unregistered address")
	}
}

func TestInternalTransport_SendWithoutHandlerFails(t *testing.T) {
	registry := NewInternalRegistry()
	a := NewInternalTransport(registry, "a")
	NewInternalTransport(registry, "b")

	if err := a.Send(context.Background(), "b", []byte("hello")); err == nil {
		t.Fatal("expected an error sending to a peer with no handler installed")
	}
}

func TestInternalTransport_CloseRemovesFromRegistry(t *testing.T) {
	registry := NewInternalRegistry()
	a := NewInternalTransport(registry, "a")
	b := NewInternalTransport(registry, "b")
	b.SetHandler(func(from string, data []byte) {})

	if err := b.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := a.Send(context.Background(), "b", []byte("hello")); err == nil {
		t.Fatal("expected send to a closed transport to fail")
	}
}
