// Package slashing implements the violation detector's executor side
// (spec.md §4.7, component C7): the violation taxonomy and penalty
// table, evidence freshness checking, and the atomic five-step slash
// that mutates the ledger and registry together.
package slashing

import (
	"time"

	"timechain.dev/core/ledger"
	"timechain.dev/core/registry"
)

// ViolationKind enumerates spec.md §4.7's penalty table rows.
type ViolationKind uint8

const (
	InvalidBlockProposal ViolationKind = iota
	DoubleSigning
	DataWithholding
	AbandonmentShort // offline > 60 days
	AbandonmentLong  // offline > 90 days
	ConsensusManipulation
	NetworkAttack
)

func (k ViolationKind) String() string {
	switch k {
	case InvalidBlockProposal:
		return "InvalidBlockProposal"
	case DoubleSigning:
		return "DoubleSigning"
	case DataWithholding:
		return "DataWithholding"
	case AbandonmentShort:
		return "AbandonmentShort"
	case AbandonmentLong:
		return "AbandonmentLong"
	case ConsensusManipulation:
		return "ConsensusManipulation"
	case NetworkAttack:
		return "NetworkAttack"
	default:
		return "Unknown"
	}
}

// PenaltyFraction returns the fraction of remaining collateral a
// violation slashes (spec.md §4.7 penalty table).
func (k ViolationKind) PenaltyFraction() float64 {
	switch k {
	case InvalidBlockProposal:
		return 0.05
	case DoubleSigning:
		return 0.50
	case DataWithholding:
		return 0.25
	case AbandonmentShort:
		return 0.15
	case AbandonmentLong:
		return 0.20
	case ConsensusManipulation:
		return 0.70
	case NetworkAttack:
		return 1.00
	default:
		return 0
	}
}

// StatusEffect returns the registry status a violation imposes (spec.md
// §4.7 penalty table "Effect on status" column).
func (k ViolationKind) StatusEffect() registry.Status {
	switch k {
	case InvalidBlockProposal, DoubleSigning, DataWithholding:
		return registry.StatusOffline // temporary suspension / ban
	case AbandonmentShort, AbandonmentLong:
		return registry.StatusDeregistered
	case ConsensusManipulation, NetworkAttack:
		return registry.StatusSlashed // permanent
	default:
		return registry.StatusOffline
	}
}

// IsPermanent reports whether this violation kind marks a node
// permanently slashed, after which further slash attempts are a no-op
// (spec.md §4.7 "A slashing attempt on an already permanently-slashed
// node is a no-op (idempotent), not an error").
func (k ViolationKind) IsPermanent() bool {
	return k == ConsensusManipulation || k == NetworkAttack
}

// ResetsLongevity reports whether this violation resets the node's
// longevity accrual (spec.md §4.7 penalty table: the invalid-proposal,
// double-signing and data-withholding rows name "longevity reset"
// explicitly; the abandonment, consensus-manipulation and network-attack
// rows do not).
func (k ViolationKind) ResetsLongevity() bool {
	switch k {
	case InvalidBlockProposal, DoubleSigning, DataWithholding:
		return true
	default:
		return false
	}
}

// Evidence is the self-describing proof of misbehavior the violation
// detector hands the executor (spec.md §4.7 Evidence).
type Evidence struct {
	Node               registry.NodeID
	Kind               ViolationKind
	Digest             [32]byte
	ViolationTimestamp time.Time
	Payload            []byte
}

// SlashingRecord is spec.md §3 SlashingRecord, append-only once emitted.
type SlashingRecord struct {
	RecordID            string
	Node                registry.NodeID
	Kind                ViolationKind
	EvidenceDigest      [32]byte
	AmountSlashed       uint64
	RemainingCollateral uint64
	Timestamp           time.Time
	BlockHeight         uint64
}

// SlashingEvent is the broadcast projection of a SlashingRecord (spec.md
// §4.7 Event publication).
type SlashingEvent struct {
	RecordID            string
	Node                registry.NodeID
	Kind                ViolationKind
	Amount              uint64
	RemainingCollateral uint64
	TreasuryTxID        ledger.Hash
}
