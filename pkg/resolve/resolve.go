// Package resolve provides conflict-resolution helpers for gossip logic
// authors whose ReceiveGossip merge needs more than a bare union: choosing
// between two concurrent versions of a value once causal comparison alone
// cannot decide. Adapted from the teacher's sync.Coordinator.ResolveConflict,
// trimmed down to the merge-strategy decision itself — the batching,
// subscription, and check-in machinery that used to surround it belongs to
// an application sitting on top of the gossip engine's Control Handle, not
// to the engine or to a reusable merge helper.
package resolve

import (
	"context"
	"encoding/json"

	"github.com/chrysalis/gossip-mesh/pkg/byzantine"
	"github.com/chrysalis/gossip-mesh/pkg/vectorclock"
)

// Strategy names a conflict-resolution policy.
type Strategy string

const (
	// LastWriterWins picks the version with the higher vector clock sum as
	// a cheap recency proxy.
	LastWriterWins Strategy = "lww"
	// CausalOrder prefers the causally later version, falling back to
	// LastWriterWins when the two versions are concurrent.
	CausalOrder Strategy = "causal"
	// Consensus proposes the local version in a Byzantine consensus round
	// and returns the value that round agrees on; it does not consult the
	// vector clocks.
	Consensus Strategy = "consensus"
)

// Resolve picks between two concurrent payloads according to strategy. For
// Consensus, consensus must be non-nil; the caller is responsible for
// driving enough ReceiveVote calls across peers for WaitForResult to return.
func Resolve(
	ctx context.Context,
	strategy Strategy,
	local, remote json.RawMessage,
	localVC, remoteVC *vectorclock.VectorClock,
	consensus *byzantine.ByzantineConsensus,
) (json.RawMessage, error) {
	switch strategy {
	case LastWriterWins:
		if localVC.Sum() >= remoteVC.Sum() {
			return local, nil
		}
		return remote, nil

	case CausalOrder:
		switch localVC.Compare(remoteVC) {
		case vectorclock.After, vectorclock.Equal:
			return local, nil
		case vectorclock.Before:
			return remote, nil
		default: // Concurrent
			if localVC.Sum() >= remoteVC.Sum() {
				return local, nil
			}
			return remote, nil
		}

	case Consensus:
		result, err := consensus.Propose(ctx, local)
		if err != nil {
			return nil, err
		}
		if result.Achieved {
			return result.Value, nil
		}
		result, err = consensus.WaitForResult(ctx, result.Round)
		if err != nil {
			return nil, err
		}
		return result.Value, nil
	}

	return local, nil
}
