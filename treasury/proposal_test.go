package treasury

import (
	"testing"
	"time"
)

func TestProposalLifecycleApproved(t *testing.T) {
	start := time.Now()
	p := NewProposal("p1", [20]byte{1}, "grants", 1000, [20]byte{2}, 50, time.Hour, time.Hour, start)

	if err := p.OpenVoting(start.Add(time.Hour)); err != nil {
		t.Fatalf("open voting: %v", err)
	}
	if p.Status != Voting {
		t.Fatalf("expected Voting, got %v", p.Status)
	}

	if err := p.CastVote([20]byte{9}, VoteFor, 100); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	if err := p.CastVote([20]byte{10}, VoteAgainst, 10); err != nil {
		t.Fatalf("cast vote: %v", err)
	}

	finalizeAt := start.Add(2 * time.Hour)
	if err := p.Finalize(finalizeAt, 200); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if p.Status != Approved {
		t.Fatalf("expected Approved, got %v", p.Status)
	}

	if err := p.MarkExecuted(); err != nil {
		t.Fatalf("mark executed: %v", err)
	}
	if p.Status != Executed {
		t.Fatalf("expected Executed, got %v", p.Status)
	}
}

func TestProposalRejectedOnInsufficientParticipation(t *testing.T) {
	start := time.Now()
	p := NewProposal("p2", [20]byte{1}, "grants", 1000, [20]byte{2}, 50, time.Hour, time.Hour, start)
	p.Status = Voting
	p.VotingEnds = start

	if err := p.CastVote([20]byte{9}, VoteFor, 1); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	if err := p.Finalize(start, 1000); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if p.Status != Rejected {
		t.Fatalf("expected Rejected for low participation, got %v", p.Status)
	}
}

func TestProposalRejectsDoubleVote(t *testing.T) {
	start := time.Now()
	p := NewProposal("p3", [20]byte{1}, "grants", 1000, [20]byte{2}, 50, time.Hour, time.Hour, start)
	p.Status = Voting

	if err := p.CastVote([20]byte{9}, VoteFor, 10); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if err := p.CastVote([20]byte{9}, VoteAgainst, 10); err == nil {
		t.Fatal("expected IneligibleVoter on double vote")
	}
}

func TestProposalRejectsZeroWeightVote(t *testing.T) {
	p := &Proposal{Status: Voting, Tally: make(map[VoteChoice]float64), voted: make(map[[20]byte]struct{})}
	if err := p.CastVote([20]byte{1}, VoteFor, 0); err == nil {
		t.Fatal("expected IneligibleVoter for zero (Free-tier) weight")
	}
}

func TestProposalExpiresAfterExecutionDeadline(t *testing.T) {
	start := time.Now()
	p := &Proposal{Status: Approved, ApprovedAt: start}
	if p.ExpireIfOverdue(start.Add(time.Hour)) {
		t.Fatal("should not expire before deadline")
	}
	if !p.ExpireIfOverdue(start.Add(ExecutionDeadline + time.Second)) {
		t.Fatal("should expire past deadline")
	}
	if p.Status != Expired {
		t.Fatalf("expected Expired, got %v", p.Status)
	}
}
