package consensus

import (
	"testing"
	"time"

	"timechain.dev/core/registry"
)

func evenActiveSet(n int) map[registry.NodeID]float64 {
	return evenQuorum(n)
}

func TestBlockRoundCommitsAt80Percent(t *testing.T) {
	active := evenActiveSet(5)
	now := time.Now()
	r := NewBlockRound(1, registry.NodeID{1}, active, now, ProposalWindow, SigningWindow, EmergencyExtension)

	for i := 1; i <= 3; i++ {
		if _, err := r.Sign(registry.NodeID{byte(i)}); err != nil {
			t.Fatalf("sign %d: %v", i, err)
		}
	}
	if r.State() != AwaitingPreVotes {
		t.Fatalf("3/5 (60%%) should not yet commit, got %v", r.State())
	}
	state, err := r.Sign(registry.NodeID{4})
	if err != nil {
		t.Fatalf("sign 4: %v", err)
	}
	if state != Finalized {
		t.Fatalf("4/5 (80%%) should commit, got %v", state)
	}
}

func TestBlockRoundRejectsNonActiveSigner(t *testing.T) {
	active := evenActiveSet(3)
	r := NewBlockRound(1, registry.NodeID{1}, active, time.Now(), ProposalWindow, SigningWindow, EmergencyExtension)
	_, err := r.Sign(registry.NodeID{99})
	if err == nil {
		t.Fatal("expected error for non-active signer")
	}
}

func TestBlockRoundEscalatesToEmergencyThreshold(t *testing.T) {
	active := evenActiveSet(5)
	opened := time.Now()
	r := NewBlockRound(1, registry.NodeID{1}, active, opened, ProposalWindow, SigningWindow, EmergencyExtension)

	for i := 1; i <= 3; i++ {
		if _, err := r.Sign(registry.NodeID{byte(i)}); err != nil {
			t.Fatalf("sign %d: %v", i, err)
		}
	}
	if !r.Expired(r.Deadline().Add(time.Second)) {
		t.Fatal("round should be expired past its deadline")
	}

	if err := r.Escalate(registry.NodeID{2}, opened.Add(ProposalWindow+SigningWindow)); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if !r.IsEmergency() {
		t.Fatal("expected emergency mode")
	}
	if r.Threshold() != EmergencyThreshold {
		t.Fatalf("expected 90%% threshold, got %v", r.Threshold())
	}
	if r.SignatureWeight() != 0 {
		t.Fatal("escalation should reset accumulated signatures")
	}
	if r.Proposer != (registry.NodeID{2}) {
		t.Fatal("escalation should install the re-selected proposer")
	}

	for i := 1; i <= 4; i++ {
		if _, err := r.Sign(registry.NodeID{byte(i)}); err != nil {
			t.Fatalf("emergency sign %d: %v", i, err)
		}
	}
	if r.State() != AwaitingPreVotes {
		t.Fatalf("4/5 (80%%) must not commit an emergency round, got %v", r.State())
	}
	state, err := r.Sign(registry.NodeID{5})
	if err != nil {
		t.Fatalf("sign 5: %v", err)
	}
	if state != Finalized {
		t.Fatalf("5/5 (100%%) should commit the emergency round, got %v", state)
	}
}

func TestBlockRoundEscalateRejectsFinalized(t *testing.T) {
	active := evenActiveSet(1)
	r := NewBlockRound(1, registry.NodeID{1}, active, time.Now(), ProposalWindow, SigningWindow, EmergencyExtension)
	if _, err := r.Sign(registry.NodeID{1}); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if r.State() != Finalized {
		t.Fatal("expected finalized")
	}
	if err := r.Escalate(registry.NodeID{1}, time.Now()); err == nil {
		t.Fatal("expected error escalating a finalized round")
	}
}

func TestBlockRoundEscalateRejectsDoubleEscalation(t *testing.T) {
	active := evenActiveSet(3)
	r := NewBlockRound(1, registry.NodeID{1}, active, time.Now(), ProposalWindow, SigningWindow, EmergencyExtension)
	if err := r.Escalate(registry.NodeID{2}, time.Now()); err != nil {
		t.Fatalf("first escalate: %v", err)
	}
	if err := r.Escalate(registry.NodeID{3}, time.Now()); err == nil {
		t.Fatal("expected error on second escalation")
	}
}
