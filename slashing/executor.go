package slashing

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"timechain.dev/core/ledger"
	"timechain.dev/core/registry"
	"timechain.dev/core/treasury"
)

// DefaultEvidenceFreshness bounds how old evidence may be before the
// executor rejects it (spec.md §4.7 Evidence freshness: "design default
// 1 h from violation timestamp").
const DefaultEvidenceFreshness = time.Hour

// Executor performs the atomic five-step slash (spec.md §4.7 Executor
// atomicity). It acquires the ledger before the registry, matching the
// fixed lock-ordering discipline of spec.md §5.
type Executor struct {
	mu         sync.Mutex
	ledger     *ledger.Ledger
	registry   *registry.Registry
	treasury   *treasury.Treasury
	freshness  time.Duration
	treasuryID [20]byte

	records []SlashingRecord
}

// NewExecutor constructs an Executor. treasuryAddr is the address the
// slashed portion of collateral is paid to on-chain; it must correspond
// to the address treasury.Treasury's operating balance is reconciled
// against by the caller.
func NewExecutor(l *ledger.Ledger, r *registry.Registry, t *treasury.Treasury, treasuryAddr [20]byte, freshness time.Duration) *Executor {
	if freshness <= 0 {
		freshness = DefaultEvidenceFreshness
	}
	return &Executor{ledger: l, registry: r, treasury: t, treasuryID: treasuryAddr, freshness: freshness}
}

// Records returns a copy of every slashing record emitted so far.
func (e *Executor) Records() []SlashingRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]SlashingRecord, len(e.records))
	copy(out, e.records)
	return out
}

// Execute verifies evidence freshness, computes the slash amount against
// current collateral, applies a KindSlash ledger transaction, and updates
// the masternode's registry record — all five spec.md §4.7 steps
// succeeding together or none mutating state. A slash attempt against an
// already permanently-slashed node returns (nil, nil): idempotent, not
// an error.
func (e *Executor) Execute(evidence Evidence, now time.Time, blockHeight uint64) (*SlashingEvent, error) {
	if now.Sub(evidence.ViolationTimestamp) > e.freshness {
		return nil, newErr(ErrStaleEvidence, "")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	mn, ok := e.registry.Get(evidence.Node)
	if !ok {
		return nil, newErr(ErrUnknownNode, "")
	}
	if mn.Status == registry.StatusSlashed {
		return nil, nil
	}
	if !mn.HasCollateral {
		return nil, newErr(ErrNoCollateral, "")
	}

	entry, ok := e.ledger.Get(mn.CollateralOutpoint)
	if !ok {
		return nil, newErr(ErrNoCollateral, "collateral outpoint already spent")
	}
	remaining := entry.Output.Amount
	slashAmount := uint64(float64(remaining) * evidence.Kind.PenaltyFraction())
	if slashAmount > remaining {
		slashAmount = remaining
	}
	residual := remaining - slashAmount

	tx := &ledger.Transaction{
		Kind:      ledger.KindSlash,
		Inputs:    []ledger.TxInput{{Outpoint: mn.CollateralOutpoint}},
		Timestamp: now.Unix(),
	}
	tx.Outputs = append(tx.Outputs, ledger.TxOutput{Amount: slashAmount, Address: e.treasuryID})
	if residual > 0 {
		tx.Outputs = append(tx.Outputs, ledger.TxOutput{Amount: residual, Address: mn.Operator})
	}

	delta, err := e.ledger.Apply(tx)
	if err != nil {
		return nil, err
	}

	if err := e.treasury.SlashToOperating(slashAmount); err != nil {
		e.ledger.Revert(delta)
		return nil, err
	}

	record := SlashingRecord{
		RecordID:            uuid.NewString(),
		Node:                evidence.Node,
		Kind:                evidence.Kind,
		EvidenceDigest:      evidence.Digest,
		AmountSlashed:       slashAmount,
		RemainingCollateral: residual,
		Timestamp:           now,
		BlockHeight:         blockHeight,
	}
	e.records = append(e.records, record)

	_ = e.registry.AppendSlashHistory(evidence.Node, registry.SlashingRef{
		RecordID: record.RecordID,
		Amount:   slashAmount,
		At:       now,
	})
	if evidence.Kind.ResetsLongevity() {
		_ = e.registry.ResetLongevity(evidence.Node)
	}

	if residual > 0 {
		newOutpoint := delta.AddedOutpoints[1]
		e.ledger.Lock(newOutpoint)
		_ = e.registry.SetCollateralOutpoint(evidence.Node, newOutpoint, true)
		if residual < e.registry.RequiredCollateral(mn.Tier) {
			_ = e.registry.SetTier(evidence.Node, downgradeTier(mn.Tier))
		}
	} else {
		_ = e.registry.SetCollateralOutpoint(evidence.Node, ledger.Outpoint{}, false)
	}

	_ = e.registry.SetStatus(evidence.Node, evidence.Kind.StatusEffect())

	return &SlashingEvent{
		RecordID:            record.RecordID,
		Node:                evidence.Node,
		Kind:                evidence.Kind,
		Amount:              slashAmount,
		RemainingCollateral: residual,
		TreasuryTxID:        delta.TxHash,
	}, nil
}

// downgradeTier steps a node down one tier when its post-slash collateral
// no longer meets its current tier's requirement (spec.md §4.7 executor
// step 5: "downgrade or mark the node Slashed").
func downgradeTier(t registry.Tier) registry.Tier {
	switch t {
	case registry.TierGold:
		return registry.TierSilver
	case registry.TierSilver:
		return registry.TierBronze
	default:
		return registry.TierFree
	}
}
