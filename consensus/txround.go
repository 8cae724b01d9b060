package consensus

import (
	"time"

	"timechain.dev/core/registry"
)

// TxQuorumThreshold is the fraction of quorum weight required to advance a
// per-transaction round phase (spec.md §4.4 Vote protocol: "summed weight
// >= 67% of quorum weight").
const TxQuorumThreshold = 0.67

// TxRound is the per-transaction vote round state machine (spec.md §4.4
// Vote protocol, §9 Coroutine-style consensus). It is not safe for
// concurrent use by multiple goroutines; callers serialize access to a
// given round under the consensus region lock (spec.md §5).
type TxRound struct {
	TxHash       [32]byte
	quorum       map[registry.NodeID]float64
	totalWeight  float64
	preVotes     map[registry.NodeID]struct{}
	preVoteSum   float64
	preCommits   map[registry.NodeID]struct{}
	preCommitSum float64
	state        RoundState
	opened       time.Time
	budget       time.Duration
}

// NewTxRound constructs a round over the given quorum weight assignment.
// budget is the deployment-configured per-round time budget (node.Config's
// TxRoundBudget) measured from openedAt; Deadline/Expired use it to apply
// spec.md §7's cancellation timeout to transaction rounds.
func NewTxRound(txHash [32]byte, quorum map[registry.NodeID]float64, budget time.Duration, openedAt time.Time) *TxRound {
	total := 0.0
	for _, w := range quorum {
		total += w
	}
	return &TxRound{
		TxHash:      txHash,
		quorum:      quorum,
		totalWeight: total,
		preVotes:    make(map[registry.NodeID]struct{}),
		preCommits:  make(map[registry.NodeID]struct{}),
		state:       AwaitingPreVotes,
		opened:      openedAt,
		budget:      budget,
	}
}

// State returns the round's current state.
func (r *TxRound) State() RoundState { return r.state }

// Deadline returns the wall-clock instant by which this round's budget
// expires.
func (r *TxRound) Deadline() time.Time { return r.opened.Add(r.budget) }

// Expired reports whether the round's budget has elapsed as of now.
func (r *TxRound) Expired(now time.Time) bool {
	return r.state != Finalized && r.state != Cancelled && now.After(r.Deadline())
}

// IsQuorumMember reports whether voter belongs to this round's quorum.
func (r *TxRound) IsQuorumMember(voter registry.NodeID) bool {
	_, ok := r.quorum[voter]
	return ok
}

// RecordPreVote registers voter's PRE-VOTE. Votes from non-quorum members
// are rejected (spec.md §4.4 Vote protocol phase 1). A second pre-vote
// from the same voter is idempotent. Once the cumulative pre-vote weight
// reaches TxQuorumThreshold of quorum weight, the round advances to
// AwaitingPreCommits.
func (r *TxRound) RecordPreVote(voter registry.NodeID) (RoundState, error) {
	if r.state == Finalized || r.state == Cancelled {
		return r.state, newErr(ErrAlreadyFinalized, "")
	}
	weight, ok := r.quorum[voter]
	if !ok {
		return r.state, newErr(ErrNotQuorumMember, "")
	}
	if _, already := r.preVotes[voter]; already {
		return r.state, nil
	}
	r.preVotes[voter] = struct{}{}
	r.preVoteSum += weight

	if r.state == AwaitingPreVotes && r.preVoteSum >= r.totalWeight*TxQuorumThreshold {
		r.state = AwaitingPreCommits
	}
	return r.state, nil
}

// RecordPreCommit registers voter's PRE-COMMIT. A member should only
// pre-commit after observing sufficient pre-votes, but this function does
// not itself require AwaitingPreCommits — callers are expected to gate
// pre-commit broadcast on having observed the threshold locally, matching
// the protocol description in spec.md §4.4. Once cumulative pre-commit
// weight reaches the threshold, the round finalizes.
func (r *TxRound) RecordPreCommit(voter registry.NodeID) (RoundState, error) {
	if r.state == Finalized || r.state == Cancelled {
		return r.state, newErr(ErrAlreadyFinalized, "")
	}
	weight, ok := r.quorum[voter]
	if !ok {
		return r.state, newErr(ErrNotQuorumMember, "")
	}
	if _, already := r.preCommits[voter]; already {
		return r.state, nil
	}
	r.preCommits[voter] = struct{}{}
	r.preCommitSum += weight

	if r.preCommitSum >= r.totalWeight*TxQuorumThreshold {
		r.state = Finalized
	}
	return r.state, nil
}

// Cancel abandons the round (spec.md §4.4 Cancellation: "a round for a
// transaction whose sender-nonce has been superseded by another finalized
// transaction is abandoned, votes already cast are retained for audit").
// Votes already recorded remain queryable via PreVoteWeight/PreCommitWeight
// for audit purposes.
func (r *TxRound) Cancel() {
	if r.state != Finalized {
		r.state = Cancelled
	}
}

// PreVoteWeight returns the cumulative pre-vote weight observed so far.
func (r *TxRound) PreVoteWeight() float64 { return r.preVoteSum }

// PreCommitWeight returns the cumulative pre-commit weight observed so far.
func (r *TxRound) PreCommitWeight() float64 { return r.preCommitSum }

// TotalWeight returns the round's total quorum weight.
func (r *TxRound) TotalWeight() float64 { return r.totalWeight }
