// Package consensus implements the weighted BFT core (spec.md §4.4,
// component C5): quorum selection, the three-phase per-transaction vote
// protocol, and the per-block proposer/signature protocol, both producing
// deterministic instant finality.
package consensus

import "timechain.dev/core/registry"

// VotePhase is one of the two vote broadcasts in the per-transaction
// protocol (spec.md §4.4 Vote protocol).
type VotePhase uint8

const (
	PhasePreVote VotePhase = iota
	PhasePreCommit
)

// RoundState is the per-round state machine value (spec.md §9
// "Coroutine-style consensus... explicit states {Awaiting-PreVotes,
// Awaiting-PreCommits, Finalized, Cancelled}").
type RoundState uint8

const (
	AwaitingPreVotes RoundState = iota
	AwaitingPreCommits
	Finalized
	Cancelled
)

func (s RoundState) String() string {
	switch s {
	case AwaitingPreVotes:
		return "AwaitingPreVotes"
	case AwaitingPreCommits:
		return "AwaitingPreCommits"
	case Finalized:
		return "Finalized"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Vote is a single signed vote cast by a quorum or active-set member.
type Vote struct {
	Voter  registry.NodeID
	Weight float64
	Phase  VotePhase
}
