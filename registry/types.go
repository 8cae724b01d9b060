// Package registry implements the masternode registry (spec.md §4.3,
// component C4): tier, collateral lock, longevity, reputation, and
// lifecycle state for every registered service provider.
package registry

import (
	"time"

	"timechain.dev/core/ledger"
)

// Tier is a masternode's service class (spec.md §3 MasternodeTier).
type Tier uint8

const (
	TierFree Tier = iota
	TierBronze
	TierSilver
	TierGold
)

// RequiredCollateral returns the collateral amount, in satoshis, a
// masternode of this tier must lock (spec.md §3 MasternodeTier).
func (t Tier) RequiredCollateral() uint64 {
	switch t {
	case TierBronze:
		return 1_000 * 1_00000000
	case TierSilver:
		return 10_000 * 1_00000000
	case TierGold:
		return 100_000 * 1_00000000
	default:
		return 0
	}
}

// weight returns the tier's base consensus/reward weight (spec.md §3
// tier_weight()).
func (t Tier) weight() uint64 {
	switch t {
	case TierSilver:
		return 10
	case TierGold:
		return 100
	default: // Free, Bronze
		return 1
	}
}

func (t Tier) String() string {
	switch t {
	case TierFree:
		return "Free"
	case TierBronze:
		return "Bronze"
	case TierSilver:
		return "Silver"
	case TierGold:
		return "Gold"
	default:
		return "Unknown"
	}
}

// Status is a masternode's lifecycle state (spec.md §3 Masternode).
type Status uint8

const (
	StatusPending Status = iota
	StatusActive
	StatusOffline
	StatusSlashed
	StatusDeregistered
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusActive:
		return "Active"
	case StatusOffline:
		return "Offline"
	case StatusSlashed:
		return "Slashed"
	case StatusDeregistered:
		return "Deregistered"
	default:
		return "Unknown"
	}
}

// LongevityResetWindow is the heartbeat-gap threshold beyond which
// cumulative uptime resets (spec.md §3 Masternode invariant, §4.3
// Heartbeat; "Gap exactly equal to 72 h is non-reset (inclusive
// boundary)").
const LongevityResetWindow = 72 * time.Hour

// NodeID uniquely identifies a masternode.
type NodeID [20]byte

// SlashingRef records a prior slash against this node without owning the
// authoritative SlashingRecord (that belongs to package slashing; spec.md
// §9 "Cyclic reference").
type SlashingRef struct {
	RecordID string
	Amount   uint64
	At       time.Time
}

// Masternode is the registry's primary record (spec.md §3 Masternode). The
// CollateralOutpoint is a non-owning reference into the ledger: the ledger
// owns the lock, the registry only remembers which outpoint backs this
// node (spec.md §9 "Cyclic reference").
type Masternode struct {
	ID                 NodeID
	Operator           [20]byte
	Tier               Tier
	CollateralOutpoint ledger.Outpoint
	HasCollateral      bool
	RegisteredAt       time.Time
	LastActive         time.Time
	CumulativeUptime   time.Duration
	Reputation         int32
	Status             Status
	DeregisteredAt     time.Time
	SlashHistory       []SlashingRef
}

// LongevityMultiplier is spec.md §3's longevity_multiplier(): scales from
// 1.0 up to a cap of 3.0 as cumulative uptime grows, at a rate of +0.5 per
// 365 days of continuous uptime.
func (m *Masternode) LongevityMultiplier() float64 {
	days := m.CumulativeUptime.Hours() / 24
	mult := 1.0 + (days/365)*0.5
	if mult > 3.0 {
		return 3.0
	}
	if mult < 1.0 {
		return 1.0
	}
	return mult
}

// TierWeight is spec.md §3's tier_weight().
func (m *Masternode) TierWeight() uint64 {
	return m.Tier.weight()
}

// VotingWeight is spec.md §3's voting_weight() = tier_weight() *
// longevity_multiplier(), except Free tier which always votes with zero
// weight ("Free tier has voting_power = 0").
func (m *Masternode) VotingWeight() float64 {
	if m.Tier == TierFree {
		return 0
	}
	return float64(m.TierWeight()) * m.LongevityMultiplier()
}
