package gossip

import (
	"context"
	"time"

	"github.com/chrysalis/gossip-mesh/pkg/actorkit"
)

// ControlHandle is a thin, send-only façade bound to a single shell. It
// performs no state management of its own; it exists so callers need not
// know the shell's message enumeration.
type ControlHandle[E any] struct {
	system *actorkit.System
	shell  *actorkit.PID
	stop   func()
}

// Stop tears down the shell's discovery subscriptions, cancels its timer,
// and terminates the shell actor.
func (c *ControlHandle[E]) Stop() {
	if c.stop != nil {
		c.stop()
	}
}

// Self returns the shell's own address, e.g. for registering it elsewhere.
func (c *ControlHandle[E]) Self() actorkit.Address {
	return c.shell.Address()
}

// Introduce hints at a new peer. Self-introduction is silently ignored by
// the shell.
func (c *ControlHandle[E]) Introduce(peer Peer) {
	c.shell.Tell(introducePeerMessage{Peer: peer})
}

// Update applies a local application update to the logic for id, creating
// it if this is the first reference to id.
func (c *ControlHandle[E]) Update(id Identifier, payload E) {
	c.shell.Tell(updatePayloadMessage[E]{ID: id, Payload: payload})
}

// Remove drops the logic instance for id.
func (c *ControlHandle[E]) Remove(id Identifier) {
	c.shell.Tell(removePayloadMessage{ID: id})
}

// SideChannelTell pushes a dynamically-typed application signal to the
// logic for id, fire-and-forget.
func (c *ControlHandle[E]) SideChannelTell(id Identifier, msg any) {
	c.shell.Tell(sideChannelMessage{ID: id, Msg: msg})
}

// SideChannelAsk pushes a side-channel message and waits (without blocking
// the caller's own mailbox, if called from one) for the shell's
// Received/Unhandled verdict. Useful for tests and callers that need to
// observe routing outcomes described in the message protocol.
func (c *ControlHandle[E]) SideChannelAsk(ctx context.Context, id Identifier, msg any, timeout time.Duration, replyTo *actorkit.PID, onComplete func(result SideChannelResult, err error)) {
	c.system.Ask(ctx, c.shell, func(ackRef *actorkit.PID) any {
		return sideChannelMessage{ID: id, Msg: msg, ReplyTo: ackRef}
	}, timeout, replyTo, func(reply any, err error) {
		if err != nil {
			onComplete(Unhandled, err)
			return
		}
		result, _ := reply.(SideChannelResult)
		onComplete(result, nil)
	})
}
