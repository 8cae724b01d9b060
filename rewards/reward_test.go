package rewards

import (
	"testing"

	"timechain.dev/core/registry"
)

func TestComputeTotalRewardAt1000Nodes(t *testing.T) {
	total, mnPool, treasury := ComputeTotalReward(1000)
	if total != 140*SatoshisPerTIME {
		t.Fatalf("expected 140e8, got %d", total)
	}
	if mnPool != 133*SatoshisPerTIME {
		t.Fatalf("expected masternode pool 133e8, got %d", mnPool)
	}
	if treasury != 7*SatoshisPerTIME {
		t.Fatalf("expected treasury 7e8, got %d", treasury)
	}
}

func TestComputeTotalRewardCapsAt10000Nodes(t *testing.T) {
	total, _, _ := ComputeTotalReward(10_000)
	if total != rewardCap {
		t.Fatalf("expected cap %d, got %d", rewardCap, total)
	}
	totalBeyond, _, _ := ComputeTotalReward(50_000)
	if totalBeyond != rewardCap {
		t.Fatalf("reward must not exceed cap past N=10000, got %d", totalBeyond)
	}
}

func TestComputePerNodeRewardsAppliesUptimePenaltyAndBonus(t *testing.T) {
	good := &registry.Masternode{ID: registry.NodeID{1}, Tier: registry.TierGold}
	penalized := &registry.Masternode{ID: registry.NodeID{2}, Tier: registry.TierGold}
	excluded := &registry.Masternode{ID: registry.NodeID{3}, Tier: registry.TierGold}
	active := []*registry.Masternode{good, penalized, excluded}

	perf := map[registry.NodeID]NodePerformance{
		good.ID:      {UptimeRatio: 1.0, ProposalParticipation: 0.9},
		penalized.ID: {UptimeRatio: 0.90, ProposalParticipation: 0.0},
		excluded.ID:  {UptimeRatio: 0.50, ProposalParticipation: 0.0},
	}

	rewards, residue := ComputePerNodeRewards(active, 1_000_000, perf)

	byNode := make(map[registry.NodeID]uint64)
	for _, r := range rewards {
		byNode[r.Node] = r.Amount
	}
	if _, ok := byNode[excluded.ID]; ok {
		t.Fatal("node below 85% uptime must be excluded entirely")
	}
	if byNode[good.ID] <= byNode[penalized.ID] {
		t.Fatalf("bonused good node should out-earn penalized node: good=%d penalized=%d", byNode[good.ID], byNode[penalized.ID])
	}
	var distributed uint64
	for _, v := range byNode {
		distributed += v
	}
	if distributed+residue != 1_000_000 {
		t.Fatalf("distributed + residue must equal pool: %d + %d != 1000000", distributed, residue)
	}
}

func TestOrderTransactionsByTimestampThenHash(t *testing.T) {
	a := FinalizedTransaction{FinalizedAt: 100, Hash: [32]byte{0x02}}
	b := FinalizedTransaction{FinalizedAt: 100, Hash: [32]byte{0x01}}
	c := FinalizedTransaction{FinalizedAt: 50, Hash: [32]byte{0xff}}

	ordered := OrderTransactions([]FinalizedTransaction{a, b, c})
	if ordered[0].Hash != c.Hash {
		t.Fatalf("earlier timestamp must sort first, got %v", ordered[0])
	}
	if ordered[1].Hash != b.Hash || ordered[2].Hash != a.Hash {
		t.Fatal("equal timestamps must tie-break by ascending hash")
	}
}

func TestComputePerNodeRewardsZeroActiveWeight(t *testing.T) {
	free := &registry.Masternode{ID: registry.NodeID{1}, Tier: registry.TierFree}
	rewards, residue := ComputePerNodeRewards([]*registry.Masternode{free}, 500, nil)
	if len(rewards) != 0 {
		t.Fatal("free-tier-only active set has zero voting weight, expected no rewards")
	}
	if residue != 500 {
		t.Fatalf("entire pool should accrue to treasury, got residue %d", residue)
	}
}

func TestSplitFees9505(t *testing.T) {
	mn, tr := SplitFees(1000)
	if mn != 950 || tr != 50 {
		t.Fatalf("expected 950/50 split, got %d/%d", mn, tr)
	}
}
