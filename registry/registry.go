package registry

import (
	"sort"
	"sync"
	"time"

	"timechain.dev/core/ledger"
)

// minReputation and maxReputation bound Masternode.Reputation (spec.md §3
// Masternode invariant: "reputation score ∈ [-1000, +1000]").
const (
	minReputation int32 = -1000
	maxReputation int32 = 1000
)

// Registry owns the masternode table (spec.md §4.3, and the "registry"
// lock region of spec.md §5).
type Registry struct {
	mu        sync.RWMutex
	ledger    *ledger.Ledger
	nodes     map[NodeID]*Masternode
	byOp      map[[20]byte]NodeID // operator address -> node id, to reject duplicate registrations
	collateralOverrides map[Tier]uint64
}

// New constructs an empty Registry backed by l for collateral verification.
// collateralOverrides, if non-nil, replaces Tier.RequiredCollateral()'s
// built-in amount for the tiers it names (spec.md SPEC_FULL.md [AMBIENT]
// Configuration: per-deployment tier collateral overrides); tiers absent
// from the map keep their built-in requirement.
func New(l *ledger.Ledger, collateralOverrides map[Tier]uint64) *Registry {
	return &Registry{
		ledger:              l,
		nodes:               make(map[NodeID]*Masternode),
		byOp:                make(map[[20]byte]NodeID),
		collateralOverrides: collateralOverrides,
	}
}

// RequiredCollateral returns the collateral amount a masternode of tier t
// must lock, honoring this registry's configured overrides before falling
// back to Tier.RequiredCollateral()'s built-in default.
func (r *Registry) RequiredCollateral(t Tier) uint64 {
	if amt, ok := r.collateralOverrides[t]; ok {
		return amt
	}
	return t.RequiredCollateral()
}

// Register inserts a new masternode in Pending status (spec.md §4.3
// Registration). For non-Free tiers, collateralOutpoint must exist in the
// ledger, belong to operator, and carry at least the tier's required
// collateral; the registry locks it in the ledger on success.
func (r *Registry) Register(id NodeID, operator [20]byte, tier Tier, collateralOutpoint ledger.Outpoint, hasCollateral bool, now time.Time) (*Masternode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[id]; exists {
		return nil, newErr(ErrAlreadyRegistered, "node id already registered")
	}
	if _, exists := r.byOp[operator]; exists {
		return nil, newErr(ErrAlreadyRegistered, "operator already has a registered node")
	}

	if tier != TierFree {
		if !hasCollateral {
			return nil, newErr(ErrInvalidCollateral, "non-free tier requires a collateral outpoint")
		}
		entry, ok := r.ledger.Get(collateralOutpoint)
		if !ok {
			return nil, newErr(ErrInvalidCollateral, "collateral outpoint not found")
		}
		if entry.Output.Address != operator {
			return nil, newErr(ErrInvalidCollateral, "collateral outpoint does not belong to operator")
		}
		if entry.Output.Amount < r.RequiredCollateral(tier) {
			return nil, newErr(ErrInvalidCollateral, "collateral amount below tier requirement")
		}
		r.ledger.Lock(collateralOutpoint)
	}

	mn := &Masternode{
		ID:                 id,
		Operator:           operator,
		Tier:               tier,
		CollateralOutpoint: collateralOutpoint,
		HasCollateral:      tier != TierFree,
		RegisteredAt:       now,
		LastActive:         now,
		Status:             StatusPending,
	}
	r.nodes[id] = mn
	r.byOp[operator] = id
	return mn, nil
}

// Activate transitions a Pending node to Active (spec.md §4.3
// "Transition to Active when first heartbeat is received" — exposed
// separately for callers that activate without a timestamped heartbeat,
// e.g. governance-driven reactivation).
func (r *Registry) Activate(id NodeID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mn, ok := r.nodes[id]
	if !ok {
		return newErr(ErrUnknownNode, "")
	}
	if mn.Status == StatusPending {
		mn.Status = StatusActive
	}
	return nil
}

// Heartbeat updates last-active and the longevity accounting (spec.md
// §4.3 Heartbeat, §3 Masternode invariant "If last-active gap > 72h,
// cumulative uptime resets to 0").
func (r *Registry) Heartbeat(id NodeID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mn, ok := r.nodes[id]
	if !ok {
		return newErr(ErrUnknownNode, "")
	}

	gap := now.Sub(mn.LastActive)
	if gap <= LongevityResetWindow {
		mn.CumulativeUptime += gap
	} else {
		mn.CumulativeUptime = 0
	}
	mn.LastActive = now

	if mn.Status == StatusPending {
		mn.Status = StatusActive
	}
	return nil
}

// Deregister marks a node Deregistered (lawful exit; spec.md §4.3
// Deregistration) and stamps the deregistration time, which starts the
// cooldown UnlockCollateral enforces. It does not unlock collateral — that
// happens after the cooldown window via UnlockCollateral, once the caller
// has materialized a KindCollateralReturn transaction.
func (r *Registry) Deregister(id NodeID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mn, ok := r.nodes[id]
	if !ok {
		return newErr(ErrUnknownNode, "")
	}
	mn.Status = StatusDeregistered
	mn.DeregisteredAt = now
	return nil
}

// UnlockCollateral releases the ledger lock on a deregistered node's
// collateral outpoint, once cooldown has elapsed since Deregister (spec.md
// §4.3: "unlock collateral after a cooldown window"). Callers are expected
// to have already applied the KindCollateralReturn transaction that spends
// the outpoint back to the operator.
func (r *Registry) UnlockCollateral(id NodeID, cooldown time.Duration, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mn, ok := r.nodes[id]
	if !ok {
		return newErr(ErrUnknownNode, "")
	}
	if mn.Status != StatusDeregistered {
		return newErr(ErrNotDeregistered, "node has not been deregistered")
	}
	if now.Sub(mn.DeregisteredAt) < cooldown {
		return newErr(ErrCooldownNotElapsed, "")
	}
	if mn.HasCollateral {
		r.ledger.Unlock(mn.CollateralOutpoint)
	}
	return nil
}

// Restore reinserts a masternode record rebuilt from the durable journal,
// bypassing Register's collateral validation (the ledger has already been
// restored from the same journal by the time this runs).
func (r *Registry) Restore(mn *Masternode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *mn
	r.nodes[cp.ID] = &cp
	r.byOp[cp.Operator] = cp.ID
}

// Get returns the masternode record for id.
func (r *Registry) Get(id NodeID) (*Masternode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mn, ok := r.nodes[id]
	if !ok {
		return nil, false
	}
	cp := *mn
	return &cp, true
}

// ListActive returns every Active masternode ordered by node id ascending
// (spec.md §4.3 "list_active() -> ordered by node_id").
func (r *Registry) ListActive() []*Masternode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Masternode, 0, len(r.nodes))
	for _, mn := range r.nodes {
		if mn.Status == StatusActive {
			cp := *mn
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return lessNodeID(out[i].ID, out[j].ID)
	})
	return out
}

func lessNodeID(a, b NodeID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Weight returns a node's current voting weight, or 0 if unknown.
func (r *Registry) Weight(id NodeID) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mn, ok := r.nodes[id]
	if !ok {
		return 0
	}
	return mn.VotingWeight()
}

// TotalActiveWeight sums VotingWeight() over every Active node (spec.md
// §4.3 "total_active_weight()").
func (r *Registry) TotalActiveWeight() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total float64
	for _, mn := range r.nodes {
		if mn.Status == StatusActive {
			total += mn.VotingWeight()
		}
	}
	return total
}

// ActiveCount returns the number of Active masternodes (the N referenced
// throughout spec.md §4.4 and §4.5).
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, mn := range r.nodes {
		if mn.Status == StatusActive {
			n++
		}
	}
	return n
}

// AdjustReputation changes a node's reputation by delta, clamped to
// [-1000, 1000] (spec.md §3 Masternode invariant).
func (r *Registry) AdjustReputation(id NodeID, delta int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mn, ok := r.nodes[id]
	if !ok {
		return newErr(ErrUnknownNode, "")
	}
	mn.Reputation = clampReputation(mn.Reputation + delta)
	return nil
}

func clampReputation(v int32) int32 {
	if v < minReputation {
		return minReputation
	}
	if v > maxReputation {
		return maxReputation
	}
	return v
}

// SetStatus forcibly sets a node's status (used by the slashing executor
// and by longevity-driven offline detection).
func (r *Registry) SetStatus(id NodeID, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mn, ok := r.nodes[id]
	if !ok {
		return newErr(ErrUnknownNode, "")
	}
	mn.Status = status
	return nil
}

// ResetLongevity zeroes a node's cumulative uptime (spec.md §4.7 penalty
// table: most violations "reset longevity").
func (r *Registry) ResetLongevity(id NodeID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mn, ok := r.nodes[id]
	if !ok {
		return newErr(ErrUnknownNode, "")
	}
	mn.CumulativeUptime = 0
	return nil
}

// SetTier downgrades or changes a node's service tier (spec.md §4.7
// executor step 5: "if remaining collateral falls below the tier
// requirement, downgrade... the node").
func (r *Registry) SetTier(id NodeID, tier Tier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mn, ok := r.nodes[id]
	if !ok {
		return newErr(ErrUnknownNode, "")
	}
	mn.Tier = tier
	return nil
}

// SetCollateralOutpoint updates the ledger outpoint a node's collateral
// lock refers to, used after a slashing transaction re-locks the
// post-penalty remainder under a new outpoint.
func (r *Registry) SetCollateralOutpoint(id NodeID, outpoint ledger.Outpoint, hasCollateral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mn, ok := r.nodes[id]
	if !ok {
		return newErr(ErrUnknownNode, "")
	}
	mn.CollateralOutpoint = outpoint
	mn.HasCollateral = hasCollateral
	return nil
}

// AppendSlashHistory records a slash against a node without mutating
// collateral (collateral mutation is the ledger's job via a
// KindSlash transaction; the registry only tracks the reference).
func (r *Registry) AppendSlashHistory(id NodeID, ref SlashingRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mn, ok := r.nodes[id]
	if !ok {
		return newErr(ErrUnknownNode, "")
	}
	mn.SlashHistory = append(mn.SlashHistory, ref)
	return nil
}

// RemainingCollateral returns the current ledger amount of a node's
// collateral outpoint, or 0 if the node has no collateral (Free tier) or
// the outpoint has been spent.
func (r *Registry) RemainingCollateral(id NodeID) uint64 {
	r.mu.RLock()
	mn, ok := r.nodes[id]
	r.mu.RUnlock()
	if !ok || !mn.HasCollateral {
		return 0
	}
	entry, ok := r.ledger.Get(mn.CollateralOutpoint)
	if !ok {
		return 0
	}
	return entry.Output.Amount
}

// NodeByOperator resolves an operator address to its masternode id.
func (r *Registry) NodeByOperator(operator [20]byte) (NodeID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byOp[operator]
	return id, ok
}
