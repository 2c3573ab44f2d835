package gossip

import "errors"

var (
	// ErrUnknownIdentifier names the case of an operation that requires an
	// existing logic instance and finds none registered. No code path in
	// this package returns it: an unknown identifier on the side channel is
	// answered with Unhandled.
	ErrUnknownIdentifier = errors.New("gossip: unknown identifier")
	// ErrPeerIsSelf is logged (never surfaced to callers) when a peer
	// introduction resolves to the shell's own address.
	ErrPeerIsSelf = errors.New("gossip: peer is self")
	// ErrLogicRejected wraps an error returned by a logic's
	// ReceiveSideChannelMessage, for logging only.
	ErrLogicRejected = errors.New("gossip: logic rejected side-channel message")
)
