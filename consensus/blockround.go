package consensus

import (
	"time"

	"timechain.dev/core/registry"
)

// Block round timing budgets (spec.md §4.4 Vote protocol (per block) and
// §7 Cancellation and timeouts).
const (
	ProposalWindow     = 3 * time.Minute
	SigningWindow      = 2 * time.Minute
	EmergencyExtension = 5 * time.Minute

	NormalThreshold    = 0.80
	EmergencyThreshold = 0.90
)

// BlockRound is the per-block proposer/signature round state machine
// (spec.md §4.4: "the full active set votes, not a quorum subset").
// Unlike TxRound it is weighed against the total active voting weight
// rather than a quorum subset, and supports exactly one emergency
// escalation before the round must be abandoned by the caller.
type BlockRound struct {
	Height      uint64
	Proposer    registry.NodeID
	active      map[registry.NodeID]float64
	totalWeight float64
	signatures  map[registry.NodeID]struct{}
	sigWeight   float64
	emergency   bool
	state       RoundState
	opened      time.Time

	proposalWindow     time.Duration
	signingWindow      time.Duration
	emergencyExtension time.Duration
}

// NewBlockRound opens a normal-mode round for height, with proposer chosen
// per spec.md §4.4's proposer-selection rule. proposalWindow, signingWindow,
// and emergencyExtension are the deployment-configured timing budgets
// (node.Config's BlockProposalWindow/BlockSigningWindow/BlockEmergencyExt);
// callers with no override should pass ProposalWindow/SigningWindow/
// EmergencyExtension.
func NewBlockRound(height uint64, proposer registry.NodeID, active map[registry.NodeID]float64, openedAt time.Time, proposalWindow, signingWindow, emergencyExtension time.Duration) *BlockRound {
	total := 0.0
	for _, w := range active {
		total += w
	}
	return &BlockRound{
		Height:             height,
		Proposer:           proposer,
		active:             active,
		totalWeight:        total,
		signatures:         make(map[registry.NodeID]struct{}),
		state:              AwaitingPreVotes,
		opened:             openedAt,
		proposalWindow:     proposalWindow,
		signingWindow:      signingWindow,
		emergencyExtension: emergencyExtension,
	}
}

// Threshold returns the currently active commit threshold fraction: 80%
// in normal mode, 90% once the round has escalated to emergency.
func (b *BlockRound) Threshold() float64 {
	if b.emergency {
		return EmergencyThreshold
	}
	return NormalThreshold
}

// Deadline returns the wall-clock instant by which this round's signing
// window closes (spec.md §4.4: 3-minute proposal window + 2-minute
// signing window in normal mode; plus a 5-minute extension once escalated
// to emergency).
func (b *BlockRound) Deadline() time.Time {
	d := b.opened.Add(b.proposalWindow).Add(b.signingWindow)
	if b.emergency {
		d = d.Add(b.emergencyExtension)
	}
	return d
}

// IsEmergency reports whether this round has escalated.
func (b *BlockRound) IsEmergency() bool { return b.emergency }

// Sign records voter's signature over the block candidate. Non-members of
// the active set are rejected. Once cumulative signature weight reaches
// the round's active threshold, the block commits (Finalized).
func (b *BlockRound) Sign(voter registry.NodeID) (RoundState, error) {
	if b.state == Finalized || b.state == Cancelled {
		return b.state, newErr(ErrAlreadyFinalized, "")
	}
	weight, ok := b.active[voter]
	if !ok {
		return b.state, newErr(ErrNotQuorumMember, "")
	}
	if _, already := b.signatures[voter]; already {
		return b.state, nil
	}
	b.signatures[voter] = struct{}{}
	b.sigWeight += weight

	if b.sigWeight >= b.totalWeight*b.Threshold() {
		b.state = Finalized
	}
	return b.state, nil
}

// SignatureWeight returns cumulative signature weight observed so far.
func (b *BlockRound) SignatureWeight() float64 { return b.sigWeight }

// TotalWeight returns the round's total active voting weight.
func (b *BlockRound) TotalWeight() float64 { return b.totalWeight }

// Escalate transitions an expired normal-mode round into its emergency
// round: a new proposer, a raised 90% threshold, and an extended deadline
// (spec.md §4.4: "If the window expires, an emergency round begins: a new
// proposer is re-selected and the threshold rises to 90%..."). Escalating
// a round that already escalated, or one already finalized, is an error.
func (b *BlockRound) Escalate(newProposer registry.NodeID, reopenedAt time.Time) error {
	if b.state == Finalized {
		return newErr(ErrAlreadyFinalized, "")
	}
	if b.emergency {
		return newErr(ErrVoteTimeout, "already in emergency round")
	}
	b.emergency = true
	b.Proposer = newProposer
	b.opened = reopenedAt
	b.signatures = make(map[registry.NodeID]struct{})
	b.sigWeight = 0
	b.state = AwaitingPreVotes
	return nil
}

// Expired reports whether the round's deadline has passed as of now.
func (b *BlockRound) Expired(now time.Time) bool {
	return b.state != Finalized && b.state != Cancelled && now.After(b.Deadline())
}

// Cancel abandons the round outright (used once an emergency round itself
// times out; spec.md §7 Cancellation and timeouts).
func (b *BlockRound) Cancel() {
	if b.state != Finalized {
		b.state = Cancelled
	}
}

// State returns the round's current state.
func (b *BlockRound) State() RoundState { return b.state }
