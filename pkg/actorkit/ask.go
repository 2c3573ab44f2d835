package actorkit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrAskTimeout is returned by Ask when no reply arrives within the timeout.
var ErrAskTimeout = errors.New("actorkit: ask timed out")

var askCounter int64

// Ask sends a request/response message to target and returns a future-like
// result: it does not block the caller's own mailbox processing (the
// engine re-queues the eventual reply as an ordinary Tell), matching the
// spec's "ask returns a future; completion is a future mailbox event"
// requirement when used as shown in pkg/gossip.
//
// build receives the ephemeral reply address to embed in the outgoing
// message (e.g. as an AckRef field) and must return the message to send to
// target. Ask spawns a short-lived actor to collect exactly one reply (or
// none, on timeout), then tells replyTo the outcome via an askCompletion.
func (s *System) Ask(ctx context.Context, target *PID, build func(replyTo *PID) any, timeout time.Duration, replyTo *PID, onComplete func(reply any, err error)) {
	n := atomic.AddInt64(&askCounter, 1)
	askAddr := NewAddress(fmt.Sprintf("ask-%d", n))

	var askPID *PID
	var once sync.Once
	done := make(chan struct{})
	complete := func(reply any, err error) {
		once.Do(func() {
			close(done)
			s.Stop(askPID)
			replyTo.Tell(askCompletion{onComplete: onComplete, reply: reply, err: err})
		})
	}

	askPID = s.Spawn(askAddr, func(msg any) {
		complete(msg, nil)
	})

	msg := build(askPID)
	if !target.Tell(msg) {
		complete(nil, ErrAskTimeout)
		return
	}

	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-done:
		case <-timer.C:
			complete(nil, ErrAskTimeout)
		case <-ctx.Done():
			complete(nil, ctx.Err())
		}
	}()
}

// askCompletion is delivered to the original asker's own mailbox so the
// completion handler runs serialized with the rest of that actor's state
// mutation, never on the ask's own ephemeral goroutine.
type askCompletion struct {
	onComplete func(reply any, err error)
	reply      any
	err        error
}

// Dispatch invokes the completion callback carried by an askCompletion
// message. Callers' ReceiveFunc should type-switch for this type and call
// Dispatch (or inline the equivalent) to honor the re-queuing guarantee.
func Dispatch(msg any) (handled bool) {
	completion, ok := msg.(askCompletion)
	if !ok {
		return false
	}
	completion.onComplete(completion.reply, completion.err)
	return true
}
