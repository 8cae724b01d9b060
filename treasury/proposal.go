package treasury

import "time"

// ProposalStatus is a funding proposal's lifecycle state (spec.md §3
// Proposal: "status in {Discussion, Voting, Approved, Rejected, Executed,
// Expired}").
type ProposalStatus uint8

const (
	Discussion ProposalStatus = iota
	Voting
	Approved
	Rejected
	Executed
	Expired
)

func (s ProposalStatus) String() string {
	switch s {
	case Discussion:
		return "Discussion"
	case Voting:
		return "Voting"
	case Approved:
		return "Approved"
	case Rejected:
		return "Rejected"
	case Executed:
		return "Executed"
	case Expired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// VoteChoice is a masternode's stance on a proposal.
type VoteChoice uint8

const (
	VoteFor VoteChoice = iota
	VoteAgainst
	VoteAbstain
)

// QuorumParticipationFraction is the minimum fraction of total active
// voting weight that must participate for a proposal's vote to count
// (design default: no participation threshold is given in spec.md §4.6,
// so this 10% floor keeps a handful of voters from deciding treasury
// spending).
const QuorumParticipationFraction = 0.10

// ExecutionDeadline bounds how long an Approved proposal may wait before
// execution before it lapses to Expired (design default, spec.md §4.6
// does not specify a numeric value).
const ExecutionDeadline = 30 * 24 * time.Hour

// Proposal is spec.md §3 Proposal.
type Proposal struct {
	ID               string
	ProposerAddress  [20]byte
	Category         string
	RequestedAmount  uint64
	Recipient        [20]byte
	Deposit          uint64
	DiscussionEnds   time.Time
	VotingEnds       time.Time
	ApprovedAt       time.Time
	Tally            map[VoteChoice]float64
	voted            map[[20]byte]struct{}
	Status           ProposalStatus
}

// NewProposal opens a proposal in Discussion status.
func NewProposal(id string, proposer [20]byte, category string, amount uint64, recipient [20]byte, deposit uint64, discussionWindow, votingWindow time.Duration, now time.Time) *Proposal {
	return &Proposal{
		ID:              id,
		ProposerAddress: proposer,
		Category:        category,
		RequestedAmount: amount,
		Recipient:       recipient,
		Deposit:         deposit,
		DiscussionEnds:  now.Add(discussionWindow),
		VotingEnds:      now.Add(discussionWindow).Add(votingWindow),
		Tally:           make(map[VoteChoice]float64),
		voted:           make(map[[20]byte]struct{}),
		Status:          Discussion,
	}
}

// OpenVoting transitions Discussion -> Voting once the discussion window
// has elapsed.
func (p *Proposal) OpenVoting(now time.Time) error {
	if p.Status != Discussion {
		return newErr(ErrWrongStatus, "")
	}
	if now.Before(p.DiscussionEnds) {
		return newErr(ErrWindowNotElapsed, "")
	}
	p.Status = Voting
	return nil
}

// CastVote records voter's weighted vote. Free-tier nodes (weight 0) are
// rejected, matching spec.md §3 "Free tier has voting_power = 0 (cannot
// vote on proposals)". A voter may not vote twice.
func (p *Proposal) CastVote(voter [20]byte, choice VoteChoice, weight float64) error {
	if p.Status != Voting {
		return newErr(ErrWrongStatus, "")
	}
	if weight <= 0 {
		return newErr(ErrIneligibleVoter, "")
	}
	if _, already := p.voted[voter]; already {
		return newErr(ErrIneligibleVoter, "already voted")
	}
	p.voted[voter] = struct{}{}
	p.Tally[choice] += weight
	return nil
}

// Finalize transitions Voting -> Approved/Rejected once the voting
// window has elapsed. A proposal is Approved when For strictly exceeds
// Against and cumulative cast weight meets QuorumParticipationFraction of
// totalActiveWeight; otherwise it is Rejected.
func (p *Proposal) Finalize(now time.Time, totalActiveWeight float64) error {
	if p.Status != Voting {
		return newErr(ErrWrongStatus, "")
	}
	if now.Before(p.VotingEnds) {
		return newErr(ErrWindowNotElapsed, "")
	}
	participating := p.Tally[VoteFor] + p.Tally[VoteAgainst] + p.Tally[VoteAbstain]
	if totalActiveWeight > 0 && participating/totalActiveWeight < QuorumParticipationFraction {
		p.Status = Rejected
		return nil
	}
	if p.Tally[VoteFor] > p.Tally[VoteAgainst] {
		p.Status = Approved
		p.ApprovedAt = now
	} else {
		p.Status = Rejected
	}
	return nil
}

// MarkExecuted transitions Approved -> Executed once the funding
// transaction has been applied.
func (p *Proposal) MarkExecuted() error {
	if p.Status != Approved {
		return newErr(ErrWrongStatus, "")
	}
	p.Status = Executed
	return nil
}

// ExpireIfOverdue transitions an Approved proposal to Expired if it has
// not been executed within ExecutionDeadline of approval.
func (p *Proposal) ExpireIfOverdue(now time.Time) bool {
	if p.Status != Approved {
		return false
	}
	if now.Sub(p.ApprovedAt) < ExecutionDeadline {
		return false
	}
	p.Status = Expired
	return true
}
