package rewards

import (
	"testing"

	"timechain.dev/core/crypto"
	"timechain.dev/core/ledger"
	"timechain.dev/core/registry"
)

func TestFormBlockProducesRewardTransactionsAndRoots(t *testing.T) {
	p := crypto.Ed25519Provider{}
	gold := &registry.Masternode{ID: registry.NodeID{1}, Tier: registry.TierGold}
	active := []*registry.Masternode{gold}
	operators := map[registry.NodeID][20]byte{gold.ID: {9}}
	treasuryAddr := [20]byte{0xaa}

	tx := &ledger.Transaction{Kind: ledger.KindStandard, Fee: 1000, Timestamp: 10}
	txHash := ledger.TxHash(p, tx)
	finalized := []FinalizedTransaction{{Tx: tx, FinalizedAt: 10, Hash: txHash}}

	block, rewardTxs := FormBlock(p, 1, 86400, [32]byte{}, gold.ID, finalized, active, nil, operators, treasuryAddr, [32]byte{1})

	if block.Header.TxCount != 1 {
		t.Fatalf("expected 1 tx, got %d", block.Header.TxCount)
	}
	if block.Header.TotalFees != 1000 {
		t.Fatalf("expected total fees 1000, got %d", block.Header.TotalFees)
	}
	if block.Header.TransactionsRoot == ([32]byte{}) {
		t.Fatal("expected non-zero transactions root")
	}
	if len(rewardTxs) != 1 {
		t.Fatalf("expected a single synthetic reward transaction, got %d", len(rewardTxs))
	}
	if rewardTxs[0].Kind != ledger.KindReward {
		t.Fatalf("expected KindReward, got %v", rewardTxs[0].Kind)
	}
	var total uint64
	for _, out := range rewardTxs[0].Outputs {
		total += out.Amount
	}
	expectedTotal := block.Rewards.MasternodePool + block.Rewards.FeeMasternode + block.Rewards.TreasuryShare + block.Rewards.FeeTreasury
	if total != expectedTotal {
		t.Fatalf("reward outputs must sum to pool+treasury: got %d want %d", total, expectedTotal)
	}
}

func TestFormBlockNoFinalizedTransactions(t *testing.T) {
	p := crypto.Ed25519Provider{}
	block, rewardTxs := FormBlock(p, 2, 172800, [32]byte{1}, registry.NodeID{}, nil, nil, nil, nil, [20]byte{}, [32]byte{})
	if block.Header.TxCount != 0 {
		t.Fatalf("expected 0 txs, got %d", block.Header.TxCount)
	}
	if len(rewardTxs) != 1 {
		t.Fatalf("expected a treasury-only reward transaction even with no active nodes, got %d", len(rewardTxs))
	}
}
