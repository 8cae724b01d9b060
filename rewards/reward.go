package rewards

import "timechain.dev/core/registry"

// MasternodePoolShare and TreasuryPoolShare are the block-reward and
// transaction-fee split fractions (spec.md §4.5 Dynamic block reward and
// Fee distribution: both split 95%/5%).
const (
	MasternodePoolShare = 0.95
	TreasuryPoolShare   = 0.05

	baseReward     = 100 * SatoshisPerTIME
	rewardPerNode  = 4 * SatoshisPerTIME / 100 // 0.04 TIME
	rewardCap      = 500 * SatoshisPerTIME

	// UptimeGoodThreshold and UptimeExcludeThreshold gate the per-node
	// uptime penalty (spec.md §4.5 Per-node reward).
	UptimeGoodThreshold    = 0.95
	UptimeExcludeThreshold = 0.85
	uptimePenaltyFactor    = 0.9

	// ProposalParticipationThreshold and proposalBonusFactor apply the governance
	// engagement bonus (spec.md §4.5 Per-node reward).
	ProposalParticipationThreshold = 0.80
	proposalBonusFactor            = 1.05
)

// ComputeTotalReward applies the dynamic block reward formula (spec.md
// §4.5 Dynamic block reward: "total_reward = min(500e8, 100e8 +
// N*0.04e8), N = active masternode count") and splits it 95/5.
func ComputeTotalReward(activeCount int) (total, masternodePool, treasuryShare uint64) {
	if activeCount < 0 {
		activeCount = 0
	}
	total = baseReward + uint64(activeCount)*rewardPerNode
	if total > rewardCap {
		total = rewardCap
	}
	masternodePool = uint64(float64(total) * MasternodePoolShare)
	treasuryShare = total - masternodePool
	return total, masternodePool, treasuryShare
}

// SplitFees applies the same 95/5 split to the sum of a block's
// transaction fees (spec.md §4.5 Fee distribution).
func SplitFees(totalFees uint64) (masternodeShare, treasuryShare uint64) {
	masternodeShare = uint64(float64(totalFees) * MasternodePoolShare)
	treasuryShare = totalFees - masternodeShare
	return masternodeShare, treasuryShare
}

// NodePerformance carries the per-node inputs to reward computation that
// the registry does not itself track (spec.md §4.5 Per-node reward):
// the node's uptime ratio over the reward period, and whether it met the
// prior-quarter proposal-participation bonus threshold.
type NodePerformance struct {
	UptimeRatio            float64
	ProposalParticipation  float64
}

// ComputePerNodeRewards splits pool among active according to
// VotingWeight, applying uptime penalties before the proposal bonus, and
// accruing the floor-division residue to the treasury (spec.md §4.5
// Per-node reward: "Penalties for uptime <95% (x0.9) and <85% (excluded)
// apply before bonus... Tie-breaks on fractional satoshis: floor
// division, residue accrues to treasury").
func ComputePerNodeRewards(active []*registry.Masternode, pool uint64, perf map[registry.NodeID]NodePerformance) (rewards []NodeReward, residue uint64) {
	type weighted struct {
		id     registry.NodeID
		weight float64
	}
	entries := make([]weighted, 0, len(active))
	var totalWeight float64
	for _, mn := range active {
		p := perf[mn.ID]
		w := mn.VotingWeight()
		if p.UptimeRatio < UptimeExcludeThreshold {
			continue
		}
		if p.UptimeRatio < UptimeGoodThreshold {
			w *= uptimePenaltyFactor
		}
		if p.ProposalParticipation >= ProposalParticipationThreshold {
			w *= proposalBonusFactor
		}
		if w <= 0 {
			continue
		}
		entries = append(entries, weighted{id: mn.ID, weight: w})
		totalWeight += w
	}

	if totalWeight <= 0 {
		return nil, pool
	}

	rewards = make([]NodeReward, 0, len(entries))
	var distributed uint64
	for _, e := range entries {
		share := uint64(float64(pool) * e.weight / totalWeight)
		distributed += share
		rewards = append(rewards, NodeReward{Node: e.id, Amount: share})
	}
	residue = pool - distributed
	return rewards, residue
}
