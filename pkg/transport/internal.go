package transport

import (
	"context"
	"fmt"
	"sync"
)

// InternalTransport routes frames in-process via a shared registry, for
// tests and single-binary demos. Adapted from the teacher's
// bridge.InternalAdapter's handler map, keyed by address instead of agent
// ID.
type InternalTransport struct {
	registry *internalRegistry
	addr     string
	handler  Handler
}

// internalRegistry is shared by every InternalTransport created with the
// same backing registry, so they can address each other by string.
type internalRegistry struct {
	mu        sync.Mutex
	transports map[string]*InternalTransport
}

// NewInternalRegistry creates a fresh, empty registry backing a set of
// in-process transports.
func NewInternalRegistry() *internalRegistry {
	return &internalRegistry{transports: make(map[string]*InternalTransport)}
}

// NewInternalTransport creates a transport bound to addr within registry.
func NewInternalTransport(registry *internalRegistry, addr string) *InternalTransport {
	t := &InternalTransport{registry: registry, addr: addr}
	registry.mu.Lock()
	registry.transports[addr] = t
	registry.mu.Unlock()
	return t
}

func (t *InternalTransport) Send(ctx context.Context, addr string, data []byte) error {
	t.registry.mu.Lock()
	target, ok := t.registry.transports[addr]
	t.registry.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: no in-process transport registered for %q", addr)
	}
	if target.handler == nil {
		return fmt.Errorf("transport: %q has no handler installed", addr)
	}
	target.handler(t.addr, data)
	return nil
}

func (t *InternalTransport) SetHandler(handler Handler) {
	t.handler = handler
}

func (t *InternalTransport) Close() error {
	t.registry.mu.Lock()
	delete(t.registry.transports, t.addr)
	t.registry.mu.Unlock()
	return nil
}
