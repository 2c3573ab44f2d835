// Package election implements leader-election gossip logic: peers gossip
// candidate fitness scores. A clear highest score wins outright; a tie
// between two or more candidates is broken by a bounded pkg/resolve
// consensus attempt backed by byzantine.ByzantineConsensus, falling back to
// causal recency (pkg/vectorclock, via resolve's CausalOrder strategy) when
// that single-node consensus attempt can't complete in time.
// byzantine.ThresholdVoting separately tracks this node's own
// vote-consistency across bestCandidate changes, and MedianAggregator
// averages the self scores carried in ballots whose delivery peers have
// acknowledged (acks carry no data, so these are the scores this node
// sent). This is the "leader elections" example
// gossip domain named in the engine's purpose and scope.
package election

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/chrysalis/gossip-mesh/pkg/byzantine"
	"github.com/chrysalis/gossip-mesh/pkg/gossip"
	"github.com/chrysalis/gossip-mesh/pkg/resolve"
	"github.com/chrysalis/gossip-mesh/pkg/vectorclock"
	"github.com/rs/zerolog"
)

// tieBreakWindow bounds how long a tied vote waits on a consensus attempt.
// ByzantineConsensus polls for a supermajority every 10ms, so this window
// covers exactly one poll: long enough for the trivial single-participant
// case to actually achieve consensus, short enough that a multi-participant
// tie — which this node's own vote alone can never push past threshold —
// falls back to causal recency after one missed poll rather than blocking
// the mailbox on a foregone timeout.
const tieBreakWindow = 15 * time.Millisecond

// Ballot is the envelope: the sender's current view of every candidate's
// fitness score.
type Ballot struct {
	Scores map[string]float64
}

// LeaderQuery is a side-channel message asking the logic for its currently
// elected leader, if any. Reply is sent the node ID, or "" if no leader has
// been decided yet.
type LeaderQuery struct {
	Reply chan<- string
}

// Logic runs one leader-election round for one identifier.
//
// Election is decided once every expected participant's score has been
// observed and the resulting best candidate is stable across a merge.
// ThresholdVoting's self-vote consensus does not gate the decision; it is
// only logged as a diagnostic (see checkConsensusLocked).
type Logic struct {
	mu         sync.Mutex
	selfID     string
	totalNodes int
	scores     map[string]float64
	clocks     map[string]*vectorclock.VectorClock

	voting     *byzantine.ThresholdVoting
	round      uint64
	consensus  *byzantine.ByzantineConsensus
	aggregator *byzantine.MedianAggregator

	bestCandidate string
	elected       string

	logger zerolog.Logger
}

// Factory returns a gossip.LogicFactory[Ballot] for a node with the given
// identity and initial fitness score, expecting totalNodes participants
// for the 2/3 supermajority threshold.
func Factory(selfID string, selfFitness float64, totalNodes int) gossip.LogicFactory[Ballot] {
	return func(ctx gossip.LogicContext) gossip.Logic[Ballot] {
		logger := ctx.Logger.With().Str("identifier", ctx.Identifier.String()).Logger()
		voting := byzantine.NewThresholdVoting(selfID, totalNodes, logger)
		round := voting.StartRound()

		selfClock := vectorclock.NewWithNode(selfID)
		selfClock.Increment(selfID)

		l := &Logic{
			selfID:     selfID,
			totalNodes: totalNodes,
			scores:     map[string]float64{selfID: selfFitness},
			clocks:     map[string]*vectorclock.VectorClock{selfID: selfClock},
			voting:     voting,
			round:      round,
			consensus:  byzantine.NewByzantineConsensus(selfID, totalNodes, logger),
			aggregator: byzantine.NewMedianAggregator(),
			logger:     logger,
		}
		l.castVoteLocked()
		l.checkConsensusLocked()
		return l
	}
}

func (l *Logic) SelectPeers(all []gossip.Peer) []gossip.Peer { return all }

func (l *Logic) MakePayload(target gossip.Peer) (Ballot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.scores) == 0 {
		return Ballot{}, false
	}
	scores := make(map[string]float64, len(l.scores))
	for k, v := range l.scores {
		scores[k] = v
	}
	return Ballot{Scores: scores}, true
}

func (l *Logic) ReceiveGossip(origin gossip.Peer, payload Ballot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for node, score := range payload.Scores {
		if existing, ok := l.scores[node]; !ok || score > existing {
			l.scores[node] = score
			l.clockFor(node).Increment(l.selfID)
		}
	}
	l.castVoteLocked()
	l.checkConsensusLocked()
}

// ReceivePayloadACK records the self score carried in a ballot whose
// delivery target acknowledged. The ack itself carries no data: confirmed
// is the ballot this node sent, so the recorded scores are this node's own
// past self scores. Once three confirmations are in, a 20%-trimmed mean of
// them that differs from the current self score replaces it.
func (l *Logic) ReceivePayloadACK(target gossip.Peer, confirmed Ballot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	score, ok := confirmed.Scores[l.selfID]
	if !ok {
		return
	}
	l.aggregator.Add(score)
	if l.aggregator.Count() < 3 {
		return
	}
	trimmed, err := l.aggregator.TrimmedMean(0.2)
	if err != nil || trimmed == l.scores[l.selfID] {
		return
	}
	l.scores[l.selfID] = trimmed
	l.clockFor(l.selfID).Increment(l.selfID)
	l.castVoteLocked()
	l.checkConsensusLocked()
}

func (l *Logic) LocalGossipUpdate(payload Ballot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for node, score := range payload.Scores {
		l.scores[node] = score
		l.clockFor(node).Increment(l.selfID)
	}
	l.castVoteLocked()
	l.checkConsensusLocked()
}

func (l *Logic) ReceiveSideChannelMessage(msg any) error {
	query, ok := msg.(LeaderQuery)
	if !ok {
		return nil
	}
	l.mu.Lock()
	elected := l.elected
	l.mu.Unlock()
	if query.Reply != nil {
		select {
		case query.Reply <- elected:
		default:
		}
	}
	return nil
}

func (l *Logic) clockFor(node string) *vectorclock.VectorClock {
	vc, ok := l.clocks[node]
	if !ok {
		vc = vectorclock.NewWithNode(l.selfID)
		l.clocks[node] = vc
	}
	return vc
}

// bestScoringCandidateLocked returns the highest-fitness candidate known so
// far, resolving a tie among several equally-fit candidates via
// resolveTieLocked rather than picking one arbitrarily.
func (l *Logic) bestScoringCandidateLocked() string {
	var bestScore float64
	var tied []string
	first := true
	for node, score := range l.scores {
		switch {
		case first || score > bestScore:
			bestScore = score
			tied = []string{node}
			first = false
		case score == bestScore:
			tied = append(tied, node)
		}
	}
	if len(tied) <= 1 {
		if len(tied) == 0 {
			return l.selfID
		}
		return tied[0]
	}
	return l.resolveTieLocked(tied)
}

// resolveTieLocked folds a set of equally-fit candidates down to one,
// pairwise, via resolvePairLocked.
func (l *Logic) resolveTieLocked(tied []string) string {
	sort.Strings(tied)
	winner := tied[0]
	for _, candidate := range tied[1:] {
		winner = l.resolvePairLocked(winner, candidate)
	}
	return winner
}

// resolvePairLocked decides between two equally-fit candidates. It first
// tries a bounded Byzantine consensus round through pkg/resolve; since this
// node only ever casts its own vote, that round can't reach a supermajority
// once more than one participant is expected and times out by design. The
// practical decision then falls to causal recency: whichever candidate this
// node most recently saw a score update for, per pkg/vectorclock, with
// pkg/resolve's own last-writer-wins fallback breaking any remaining tie.
func (l *Logic) resolvePairLocked(a, b string) string {
	ctx, cancel := context.WithTimeout(context.Background(), tieBreakWindow)
	defer cancel()

	local, _ := json.Marshal(a)
	remote, _ := json.Marshal(b)

	consensusResolved, consensusErr := resolve.Resolve(ctx, resolve.Consensus, local, remote, l.clockFor(a), l.clockFor(b), l.consensus)
	if winner, ok := l.decodeWinner(a, b, consensusResolved, consensusErr); ok {
		return winner
	}

	causalResolved, causalErr := resolve.Resolve(ctx, resolve.CausalOrder, local, remote, l.clockFor(a), l.clockFor(b), nil)
	if winner, ok := l.decodeWinner(a, b, causalResolved, causalErr); ok {
		return winner
	}

	if a < b {
		return a
	}
	return b
}

func (l *Logic) decodeWinner(a, b string, resolved json.RawMessage, err error) (string, bool) {
	if err != nil {
		return "", false
	}
	var winner string
	if json.Unmarshal(resolved, &winner) != nil {
		return "", false
	}
	if winner != a && winner != b {
		return "", false
	}
	return winner, true
}

// castVoteLocked determines the current best-fitness candidate and, if it
// changed since the last vote, casts a fresh vote for it.
func (l *Logic) castVoteLocked() {
	best := l.bestScoringCandidateLocked()

	if best == l.bestCandidate {
		return
	}
	l.bestCandidate = best

	value, err := json.Marshal(best)
	if err != nil {
		return
	}
	vote := &byzantine.Vote{NodeID: l.selfID, Value: value}
	if err := l.voting.CastVote(l.round, vote); err != nil {
		l.logger.Warn().Err(err).Msg("failed to cast election vote")
	}
}

// checkConsensusLocked declares an election winner once this node has
// observed every expected participant's score and the best candidate has
// stabilized. ThresholdVoting's own per-node supermajority check cannot
// gate this decision directly — votes never travel over the wire, only
// fitness scores do — so it is consulted here purely for its logged
// diagnostic of this node's self-consistency.
func (l *Logic) checkConsensusLocked() {
	if l.elected != "" {
		return
	}
	if len(l.scores) < l.totalNodes {
		return
	}

	if result, err := l.voting.CheckConsensus(l.round); err == nil {
		l.logger.Debug().Bool("self_consensus", result.Achieved).Msg("local vote-consistency check")
	}

	l.elected = l.bestCandidate
	l.logger.Info().Str("leader", l.elected).Msg("election decided: scores converged across all participants")
}

// Elected returns the currently elected leader, or "" if none yet.
func (l *Logic) Elected() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.elected
}
