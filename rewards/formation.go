package rewards

import (
	"bytes"
	"sort"

	"timechain.dev/core/crypto"
	"timechain.dev/core/ledger"
	"timechain.dev/core/registry"
)

// FinalizedTransaction pairs a transaction with the wall-clock instant its
// consensus round reached finality, the ordering key spec.md §4.1 defines.
type FinalizedTransaction struct {
	Tx          *ledger.Transaction
	FinalizedAt int64 // unix seconds
	Hash        ledger.Hash
}

// OrderTransactions sorts finalized transactions by finalization timestamp
// ascending, ties broken by transaction hash ascending (spec.md §4.1
// "Ordering and tie-breaks").
func OrderTransactions(txs []FinalizedTransaction) []FinalizedTransaction {
	out := make([]FinalizedTransaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FinalizedAt != out[j].FinalizedAt {
			return out[i].FinalizedAt < out[j].FinalizedAt
		}
		return bytes.Compare(out[i].Hash[:], out[j].Hash[:]) < 0
	})
	return out
}

// BuildRewardTransactions materializes the reward-distribution record as
// real KindReward ledger transactions (spec.md §9 Open Question, resolved:
// treasury and masternode reward transfers must be actual protocol-signed
// ledger transactions, never simulated balances): one output per
// rewarded node to its operator address, plus one output to the treasury
// address for the combined treasury share.
func BuildRewardTransactions(dist RewardDistribution, operators map[registry.NodeID][20]byte, treasuryAddr [20]byte, timestamp int64) []*ledger.Transaction {
	outs := make([]ledger.TxOutput, 0, len(dist.PerNode)+1)
	for _, r := range dist.PerNode {
		if r.Amount == 0 {
			continue
		}
		addr, ok := operators[r.Node]
		if !ok {
			continue
		}
		outs = append(outs, ledger.TxOutput{Amount: r.Amount, Address: addr})
	}
	if dist.TreasuryAmount > 0 {
		outs = append(outs, ledger.TxOutput{Amount: dist.TreasuryAmount, Address: treasuryAddr})
	}
	if len(outs) == 0 {
		return nil
	}
	return []*ledger.Transaction{{
		Kind:      ledger.KindReward,
		Outputs:   outs,
		Timestamp: timestamp,
	}}
}

// FormBlock executes the daily trigger (spec.md §4.5 Daily trigger):
// orders the period's finalized transactions, computes the merkle roots,
// sums fees, derives the reward-distribution record from the active set's
// weighted shares, and assembles the unsigned block candidate a proposer
// broadcasts for signature collection. The caller applies the returned
// reward transactions to the ledger only after the block round commits.
func FormBlock(p crypto.Provider, number uint64, dayStart int64, previousHash [32]byte, proposer registry.NodeID, finalized []FinalizedTransaction, active []*registry.Masternode, perf map[registry.NodeID]NodePerformance, operators map[registry.NodeID][20]byte, treasuryAddr [20]byte, stateRoot [32]byte) (*Block, []*ledger.Transaction) {
	ordered := OrderTransactions(finalized)

	var totalFees uint64
	hashes := make([]ledger.Hash, len(ordered))
	txs := make([]*ledger.Transaction, len(ordered))
	for i, ft := range ordered {
		totalFees += ft.Tx.Fee
		hashes[i] = ft.Hash
		txs[i] = ft.Tx
	}
	rawHashes := make([][32]byte, len(hashes))
	for i, h := range hashes {
		rawHashes[i] = [32]byte(h)
	}
	txRoot := crypto.MerkleRootHashes(p, rawHashes)

	total, mnPool, treasuryShare := ComputeTotalReward(len(active))
	feeMN, feeTreasury := SplitFees(totalFees)

	perNode, residue := ComputePerNodeRewards(active, mnPool+feeMN, perf)

	dist := RewardDistribution{
		TotalReward:    total,
		MasternodePool: mnPool,
		TreasuryShare:  treasuryShare,
		FeeMasternode:  feeMN,
		FeeTreasury:    feeTreasury,
		PerNode:        perNode,
		TreasuryAmount: treasuryShare + feeTreasury + residue,
	}

	rewardTxs := BuildRewardTransactions(dist, operators, treasuryAddr, dayStart)

	block := &Block{
		Header: BlockHeader{
			Number:           number,
			Timestamp:        dayStart,
			PreviousHash:     previousHash,
			TransactionsRoot: txRoot,
			StateRoot:        stateRoot,
			TxCount:          uint32(len(txs)),
			TotalFees:        totalFees,
			Proposer:         proposer,
		},
		Transactions: txs,
		Rewards:      dist,
	}
	return block, rewardTxs
}
