package node

import (
	"log/slog"
	"sync"
	"time"

	"timechain.dev/core/consensus"
	"timechain.dev/core/crypto"
	"timechain.dev/core/ledger"
	"timechain.dev/core/mempool"
	"timechain.dev/core/registry"
	"timechain.dev/core/rewards"
	"timechain.dev/core/slashing"
	"timechain.dev/core/treasury"
)

// Core orchestrates the three lockable state regions spec.md §5 names —
// ledger, registry, consensus — plus the mempool, treasury, and slashing
// executor built on top of them. It acquires regions in the fixed order
// ledger -> registry -> consensus for every multi-region mutation (spec.md
// §5 Atomicity).
type Core struct {
	log    *slog.Logger
	cfg    Config
	crypto crypto.Provider

	Ledger   *ledger.Ledger
	Registry *registry.Registry
	Mempool  *mempool.Mempool
	Treasury *treasury.Treasury
	Limiter  *treasury.SpendingLimiter
	Executor *slashing.Executor

	treasuryAddr [20]byte

	// consensus region: per-transaction and per-block round bookkeeping.
	roundMu       sync.Mutex
	txRounds      map[ledger.Hash]*consensus.TxRound
	blockRound    *consensus.BlockRound
	dayNumber     uint64
	previousBlock [32]byte
	pendingBlock  []rewards.FinalizedTransaction
}

// NewCore constructs a fully wired Core. If logger is nil, slog.Default()
// is used (spec.md SPEC_FULL.md [AMBIENT] Logging).
func NewCore(cfg Config, p crypto.Provider, treasuryAddr [20]byte, logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.Default()
	}
	l := ledger.New(p)
	r := registry.New(l, tierCollateralOverrides(cfg.TierCollateral))
	tr := treasury.New()
	limiter := treasury.NewSpendingLimiter(cfg.TreasuryDailyLimit, cfg.TreasuryMonthlyLimit, cfg.TreasuryCategoryCaps)
	exec := slashing.NewExecutor(l, r, tr, treasuryAddr, cfg.EvidenceFreshness)

	return &Core{
		log:          logger,
		cfg:          cfg,
		crypto:       p,
		Ledger:       l,
		Registry:     r,
		Mempool:      mempool.New(p, l),
		Treasury:     tr,
		Limiter:      limiter,
		Executor:     exec,
		treasuryAddr: treasuryAddr,
		txRounds:     make(map[ledger.Hash]*consensus.TxRound),
	}
}

// RegisterNode registers a new masternode and, for non-Free tiers, locks
// its collateral in both the ledger (spendability) and the treasury
// (aggregate accounting), keeping the two in sync (spec.md §4.6/§4.7
// accounting model).
func (c *Core) RegisterNode(id registry.NodeID, operator [20]byte, tier registry.Tier, collateralOutpoint ledger.Outpoint, hasCollateral bool, now time.Time) (*registry.Masternode, error) {
	mn, err := c.Registry.Register(id, operator, tier, collateralOutpoint, hasCollateral, now)
	if err != nil {
		return nil, err
	}
	if mn.HasCollateral {
		c.Treasury.LockCollateral(c.Registry.RequiredCollateral(tier))
	}
	return mn, nil
}

// RestoreNode reinserts a masternode record recovered from the durable
// journal, re-locking its collateral in the ledger and re-crediting the
// treasury's locked-collateral accounting to match (mirrors RegisterNode's
// accounting for the restart path).
func (c *Core) RestoreNode(mn *registry.Masternode) {
	c.Registry.Restore(mn)
	if mn.HasCollateral {
		c.Ledger.Lock(mn.CollateralOutpoint)
		c.Treasury.LockCollateral(c.Registry.RequiredCollateral(mn.Tier))
	}
}

// DeregisterNode marks a node Deregistered, starting the cooldown window
// UnlockNodeCollateral enforces (spec.md §4.3 Deregistration).
func (c *Core) DeregisterNode(id registry.NodeID, now time.Time) error {
	return c.Registry.Deregister(id, now)
}

// UnlockNodeCollateral releases a deregistered node's collateral lock,
// once cfg.DeregistrationCooldown has elapsed since deregistration, and
// releases the matching amount from the treasury's locked-collateral
// accounting (spec.md §4.3: "unlock collateral after a cooldown window").
func (c *Core) UnlockNodeCollateral(id registry.NodeID, now time.Time) error {
	mn, ok := c.Registry.Get(id)
	if !ok {
		return newErr(ErrUnknownNode, "")
	}
	if err := c.Registry.UnlockCollateral(id, c.cfg.DeregistrationCooldown, now); err != nil {
		return err
	}
	if mn.HasCollateral {
		return c.Treasury.ReleaseCollateral(c.Registry.RequiredCollateral(mn.Tier))
	}
	return nil
}

// SubmitTransaction admits tx to the mempool, the entry point for C3
// pre-validation (spec.md §2 "A signed transaction enters C3 after
// passing C2 pre-validation").
func (c *Core) SubmitTransaction(tx *ledger.Transaction) (ledger.Hash, error) {
	hash := ledger.TxHash(c.crypto, tx)
	if err := c.Mempool.Admit(tx); err != nil {
		c.log.Warn("transaction rejected at admission", "hash", hash, "err", err)
		return hash, err
	}
	c.log.Info("transaction admitted", "hash", hash)
	return hash, nil
}

// selectQuorum picks the voting set for a new transaction round according
// to cfg.QuorumSelectionMode (spec.md §9 Open Question).
func (c *Core) selectQuorum(eventID []byte) map[registry.NodeID]float64 {
	active := c.Registry.ListActive()
	size := consensus.QuorumSize(len(active), c.cfg.QuorumMin, c.cfg.QuorumMax)

	var ids []registry.NodeID
	if c.cfg.QuorumSelectionMode == "round_robin" {
		ids = consensus.SelectQuorumRoundRobin(active, size, c.dayNumber)
	} else {
		ids = consensus.SelectQuorumWeighted(c.crypto, active, size, eventID, c.previousBlock)
	}

	weights := make(map[registry.NodeID]float64, len(ids))
	for _, id := range ids {
		weights[id] = c.Registry.Weight(id)
	}
	return weights
}

// OpenTxRound starts a new per-transaction vote round for a mempool entry
// (spec.md §4.4: "C5 selects a quorum from C4's active set").
func (c *Core) OpenTxRound(hash ledger.Hash) (*consensus.TxRound, error) {
	c.roundMu.Lock()
	defer c.roundMu.Unlock()

	quorum := c.selectQuorum(hash[:])
	round := consensus.NewTxRound([32]byte(hash), quorum, c.cfg.TxRoundBudget, time.Now())
	c.txRounds[hash] = round
	return round, nil
}

// CastPreVote and CastPreCommit delegate to the round's state machine and,
// on finalization, apply the transaction to the ledger, evict it from the
// mempool, and queue it for the next block.
func (c *Core) CastPreVote(hash ledger.Hash, voter registry.NodeID, at time.Time) (consensus.RoundState, error) {
	return c.castVote(hash, voter, at, false)
}

func (c *Core) CastPreCommit(hash ledger.Hash, voter registry.NodeID, at time.Time) (consensus.RoundState, error) {
	return c.castVote(hash, voter, at, true)
}

func (c *Core) castVote(hash ledger.Hash, voter registry.NodeID, at time.Time, commit bool) (consensus.RoundState, error) {
	c.roundMu.Lock()
	round, ok := c.txRounds[hash]
	c.roundMu.Unlock()
	if !ok {
		return consensus.Cancelled, newErr(ErrUnknownRound, "")
	}

	var state consensus.RoundState
	var err error
	if commit {
		state, err = round.RecordPreCommit(voter)
	} else {
		state, err = round.RecordPreVote(voter)
	}
	if err != nil {
		return state, err
	}

	if state == consensus.Finalized {
		tx, found := c.Mempool.Get(hash)
		if !found {
			return state, newErr(ErrUnknownRound, "transaction no longer pending")
		}
		if _, err := c.Ledger.Apply(tx); err != nil {
			c.log.Error("finalized transaction failed to apply", "hash", hash, "err", err)
			return state, err
		}
		c.Mempool.Remove(hash)

		c.roundMu.Lock()
		c.pendingBlock = append(c.pendingBlock, rewards.FinalizedTransaction{Tx: tx, FinalizedAt: at.Unix(), Hash: hash})
		delete(c.txRounds, hash)
		c.roundMu.Unlock()

		c.log.Info("transaction finalized", "hash", hash)
	}
	return state, nil
}

// CancelRound abandons a transaction's round, e.g. when a later
// transaction from the same sender finalizes first (spec.md §4.4
// Cancellation).
func (c *Core) CancelRound(hash ledger.Hash) {
	c.roundMu.Lock()
	defer c.roundMu.Unlock()
	if round, ok := c.txRounds[hash]; ok {
		round.Cancel()
		delete(c.txRounds, hash)
	}
}

// OpenBlockRound starts the daily block formation cycle (spec.md §4.5
// Daily trigger), selecting a proposer and forming the unsigned block
// candidate from every transaction finalized since the previous block.
func (c *Core) OpenBlockRound(dayStart time.Time, perf map[registry.NodeID]rewards.NodePerformance) (*rewards.Block, []*ledger.Transaction, error) {
	c.roundMu.Lock()
	defer c.roundMu.Unlock()

	active := c.Registry.ListActive()
	proposer, ok := consensus.SelectProposer(c.crypto, active, c.previousBlock, c.dayNumber)
	if !ok {
		return nil, nil, newErr(ErrNoActiveSet, "")
	}

	operators := make(map[registry.NodeID][20]byte, len(active))
	weights := make(map[registry.NodeID]float64, len(active))
	for _, mn := range active {
		operators[mn.ID] = mn.Operator
		weights[mn.ID] = mn.VotingWeight()
	}

	block, rewardTxs := rewards.FormBlock(c.crypto, c.dayNumber, dayStart.Unix(), c.previousBlock, proposer, c.pendingBlock, active, perf, operators, c.treasuryAddr, c.Ledger.Snapshot())

	c.blockRound = consensus.NewBlockRound(c.dayNumber, proposer, weights, dayStart, c.cfg.BlockProposalWindow, c.cfg.BlockSigningWindow, c.cfg.BlockEmergencyExt)
	c.log.Info("block round opened", "height", c.dayNumber, "proposer", proposer, "tx_count", block.Header.TxCount)
	return block, rewardTxs, nil
}

// SignBlock records a signature toward the current block round and, on
// commit, applies the reward transactions and advances the day counter
// (spec.md §4.5 Finalization).
func (c *Core) SignBlock(signer registry.NodeID, rewardTxs []*ledger.Transaction, blockHash [32]byte) (consensus.RoundState, error) {
	c.roundMu.Lock()
	round := c.blockRound
	c.roundMu.Unlock()
	if round == nil {
		return consensus.Cancelled, newErr(ErrNoActiveSet, "no open block round")
	}

	state, err := round.Sign(signer)
	if err != nil {
		return state, err
	}

	if state == consensus.Finalized {
		for _, tx := range rewardTxs {
			if _, err := c.Ledger.Apply(tx); err != nil {
				c.log.Error("reward transaction failed to apply on block commit", "err", err)
				return state, err
			}
		}
		c.roundMu.Lock()
		c.dayNumber++
		c.previousBlock = blockHash
		c.pendingBlock = nil
		c.blockRound = nil
		c.roundMu.Unlock()
		c.log.Info("block committed", "height", c.dayNumber-1, "hash", blockHash)
	}
	return state, nil
}

// EscalateBlockRound transitions the current open block round to its
// emergency window (spec.md §4.4: "If the window expires, an emergency
// round begins").
func (c *Core) EscalateBlockRound(newProposer registry.NodeID, reopenedAt time.Time) error {
	c.roundMu.Lock()
	defer c.roundMu.Unlock()
	if c.blockRound == nil {
		return newErr(ErrNoActiveSet, "no open block round")
	}
	return c.blockRound.Escalate(newProposer, reopenedAt)
}
