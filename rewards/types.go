// Package rewards implements daily block formation and the reward
// distribution engine (spec.md §4.5, component C6): deterministic
// transaction ordering, the dynamic block reward formula, per-node
// reward splitting, and the block header/body produced at each 24-hour
// boundary.
package rewards

import (
	"timechain.dev/core/ledger"
	"timechain.dev/core/registry"
)

// SatoshisPerTIME is the fixed-point unit conversion (spec.md §3 TxOutput:
// "1 TIME = 10^8 satoshis").
const SatoshisPerTIME = 100_000_000

// BlockHeader is spec.md §3 Block's header half.
type BlockHeader struct {
	Number             uint64
	Timestamp          int64 // start-of-day UTC, unix seconds
	PreviousHash       [32]byte
	TransactionsRoot   [32]byte
	StateRoot          [32]byte
	TxCount            uint32
	TotalFees          uint64
	Proposer           registry.NodeID
	Signatures         []registry.NodeID // ordered ascending by node id
}

// NodeReward is one line of a RewardDistribution (spec.md §4.5 Per-node
// reward).
type NodeReward struct {
	Node   registry.NodeID
	Amount uint64
}

// RewardDistribution is the per-block reward record attached to a Block's
// body (spec.md §4.5 Daily trigger: "attaches the reward-distribution
// record").
type RewardDistribution struct {
	TotalReward     uint64
	MasternodePool  uint64
	TreasuryShare   uint64
	FeeTreasury     uint64
	FeeMasternode   uint64
	PerNode         []NodeReward
	TreasuryAmount  uint64 // treasury_share + FeeTreasury + floor-division residue
}

// Block is spec.md §3 Block.
type Block struct {
	Header       BlockHeader
	Transactions []*ledger.Transaction
	Rewards      RewardDistribution
}
