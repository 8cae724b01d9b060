package slashing

import (
	"testing"
	"time"

	"timechain.dev/core/crypto"
	"timechain.dev/core/ledger"
	"timechain.dev/core/registry"
	"timechain.dev/core/treasury"
)

func newExecutorFixture(t *testing.T, collateral uint64) (*Executor, *ledger.Ledger, *registry.Registry, registry.NodeID) {
	t.Helper()
	p := crypto.Ed25519Provider{}
	l := ledger.New(p)
	operator := [20]byte{5}
	mintTx := &ledger.Transaction{Kind: ledger.KindMint, Outputs: []ledger.TxOutput{{Amount: collateral, Address: operator}}}
	delta, err := l.Apply(mintTx)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	r := registry.New(l, nil)
	id := registry.NodeID{1}
	if _, err := r.Register(id, operator, registry.TierGold, delta.AddedOutpoints[0], true, time.Now()); err != nil {
		t.Fatalf("register: %v", err)
	}
	tr := treasury.New()
	tr.LockCollateral(collateral)
	exec := NewExecutor(l, r, tr, [20]byte{0xaa}, time.Hour)
	return exec, l, r, id
}

func TestExecuteInvalidBlockProposalSlashes5Percent(t *testing.T) {
	exec, _, r, id := newExecutorFixture(t, registry.TierGold.RequiredCollateral())
	now := time.Now()

	evt, err := exec.Execute(Evidence{Node: id, Kind: InvalidBlockProposal, ViolationTimestamp: now}, now, 1)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	wantSlash := registry.TierGold.RequiredCollateral() * 5 / 100
	if evt.Amount != wantSlash {
		t.Fatalf("expected slash %d, got %d", wantSlash, evt.Amount)
	}
	mn, _ := r.Get(id)
	if mn.Status != registry.StatusOffline {
		t.Fatalf("expected Offline status, got %v", mn.Status)
	}
	if r.RemainingCollateral(id) != registry.TierGold.RequiredCollateral()-wantSlash {
		t.Fatalf("expected residual collateral tracked, got %d", r.RemainingCollateral(id))
	}
}

func TestExecuteNetworkAttackSlashesAllAndPermanentlyBans(t *testing.T) {
	exec, _, r, id := newExecutorFixture(t, registry.TierGold.RequiredCollateral())
	now := time.Now()

	evt, err := exec.Execute(Evidence{Node: id, Kind: NetworkAttack, ViolationTimestamp: now}, now, 1)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if evt.Amount != registry.TierGold.RequiredCollateral() {
		t.Fatalf("expected full collateral slashed, got %d", evt.Amount)
	}
	if evt.RemainingCollateral != 0 {
		t.Fatalf("expected zero remaining collateral, got %d", evt.RemainingCollateral)
	}
	mn, _ := r.Get(id)
	if mn.Status != registry.StatusSlashed {
		t.Fatalf("expected Slashed status, got %v", mn.Status)
	}
}

func TestExecuteIsIdempotentOnPermanentlySlashedNode(t *testing.T) {
	exec, _, _, id := newExecutorFixture(t, registry.TierGold.RequiredCollateral())
	now := time.Now()

	if _, err := exec.Execute(Evidence{Node: id, Kind: NetworkAttack, ViolationTimestamp: now}, now, 1); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	evt, err := exec.Execute(Evidence{Node: id, Kind: DoubleSigning, ViolationTimestamp: now}, now, 2)
	if err != nil {
		t.Fatalf("second execute should be a no-op, not an error: %v", err)
	}
	if evt != nil {
		t.Fatal("expected nil event for a no-op slash on an already-slashed node")
	}
}

func TestExecuteRejectsStaleEvidence(t *testing.T) {
	exec, _, _, id := newExecutorFixture(t, registry.TierGold.RequiredCollateral())
	now := time.Now()
	stale := now.Add(-2 * time.Hour)

	_, err := exec.Execute(Evidence{Node: id, Kind: InvalidBlockProposal, ViolationTimestamp: stale}, now, 1)
	if err == nil {
		t.Fatal("expected StaleEvidence error")
	}
	serr, ok := err.(*Error)
	if !ok || serr.Code != ErrStaleEvidence {
		t.Fatalf("expected StaleEvidence, got %v", err)
	}
}

func TestExecuteDowngradesTierBelowRequirement(t *testing.T) {
	exec, _, r, id := newExecutorFixture(t, registry.TierGold.RequiredCollateral())
	now := time.Now()

	// Consensus manipulation slashes 70%, leaving 30% -- below Gold's
	// requirement but still above Bronze's, so the node downgrades.
	if _, err := exec.Execute(Evidence{Node: id, Kind: ConsensusManipulation, ViolationTimestamp: now}, now, 1); err != nil {
		t.Fatalf("execute: %v", err)
	}
	mn, _ := r.Get(id)
	if mn.Tier != registry.TierSilver {
		t.Fatalf("expected downgrade to Silver, got %v", mn.Tier)
	}
}

func TestExecuteUnknownNode(t *testing.T) {
	exec, _, _, _ := newExecutorFixture(t, registry.TierGold.RequiredCollateral())
	now := time.Now()
	_, err := exec.Execute(Evidence{Node: registry.NodeID{99}, Kind: InvalidBlockProposal, ViolationTimestamp: now}, now, 1)
	if err == nil {
		t.Fatal("expected UnknownNode error")
	}
}
