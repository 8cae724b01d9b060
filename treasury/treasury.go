// Package treasury implements protocol-managed treasury accounting and
// the governance proposal lifecycle (spec.md §4.6, component C6.6):
// operating and reserve balances, locked-collateral accounting kept
// separate from spendable funds, spending limits, and the
// Discussion -> Voting -> Approved/Rejected -> Executed/Expired state
// machine for funding proposals.
package treasury

import "sync"

// IncomeSource tags a treasury credit by its origin (spec.md §4.6
// "Incoming credits: block-reward treasury share, fee treasury share,
// slashing proceeds, expired proposal deposits").
type IncomeSource uint8

const (
	SourceBlockReward IncomeSource = iota
	SourceFeeShare
	SourceSlashingProceeds
	SourceExpiredDeposit
)

// Treasury owns the protocol's accounting (spec.md §3 Treasury). Locked
// collateral accounting here mirrors, but does not replace, the ledger's
// own lock-set: the ledger is authoritative over which outpoints are
// spendable, this tracks the aggregate figure for reporting and for the
// invariant that it is "never debitable except via lawful return or
// slashing".
type Treasury struct {
	mu               sync.Mutex
	operatingBalance uint64
	reserveBalance   uint64
	lockedCollateral uint64
	totalIncome      uint64
	totalSpending    uint64
}

// New constructs an empty Treasury.
func New() *Treasury {
	return &Treasury{}
}

// OperatingBalance returns the current spendable operating balance.
func (t *Treasury) OperatingBalance() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.operatingBalance
}

// ReserveBalance returns the current reserve balance.
func (t *Treasury) ReserveBalance() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reserveBalance
}

// LockedCollateral returns the aggregate locked-collateral figure.
func (t *Treasury) LockedCollateral() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lockedCollateral
}

// TotalIncome and TotalSpending report lifetime accounting totals
// (spec.md §3 Treasury).
func (t *Treasury) TotalIncome() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalIncome
}

func (t *Treasury) TotalSpending() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalSpending
}

// CreditOperating adds amount to the operating balance, regardless of
// source (spec.md §4.6 Incoming credits).
func (t *Treasury) CreditOperating(amount uint64, source IncomeSource) {
	_ = source
	t.mu.Lock()
	defer t.mu.Unlock()
	t.operatingBalance += amount
	t.totalIncome += amount
}

// CreditReserve adds amount to the reserve balance.
func (t *Treasury) CreditReserve(amount uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reserveBalance += amount
	t.totalIncome += amount
}

// LockCollateral records newly locked collateral in the aggregate figure
// (called when the registry locks a new masternode's collateral outpoint).
func (t *Treasury) LockCollateral(amount uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lockedCollateral += amount
}

// ReleaseCollateral moves amount out of locked-collateral accounting,
// either back to an operator (lawful return, handled by a
// KindCollateralReturn ledger transaction outside this package) or into
// the treasury's operating balance (slashing proceeds).
func (t *Treasury) ReleaseCollateral(amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if amount > t.lockedCollateral {
		return newErr(ErrNoLockedCollateral, "")
	}
	t.lockedCollateral -= amount
	return nil
}

// SlashToOperating releases amount from locked collateral directly into
// the operating balance (spec.md §4.7 executor step 3: "moves slash_amount
// from the locked-collateral accounting to the treasury operating
// balance").
func (t *Treasury) SlashToOperating(amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if amount > t.lockedCollateral {
		return newErr(ErrNoLockedCollateral, "")
	}
	t.lockedCollateral -= amount
	t.operatingBalance += amount
	t.totalIncome += amount
	return nil
}

// DebitOperating spends amount from the operating balance, consulting
// limiter first (spec.md §4.6: "Spending controls include daily and
// monthly limits and category caps, checked before any debit").
func (t *Treasury) DebitOperating(amount uint64, limiter *SpendingLimiter, category string, nowUnix int64) error {
	if limiter != nil {
		if err := limiter.Reserve(amount, category, nowUnix); err != nil {
			return err
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if amount > t.operatingBalance {
		if limiter != nil {
			limiter.Release(amount, category, nowUnix)
		}
		return newErr(ErrInsufficientFunds, "")
	}
	t.operatingBalance -= amount
	t.totalSpending += amount
	return nil
}

// DebitReserve spends amount from the reserve balance. Reserve debits
// bypass the operating-balance SpendingLimiter (spec.md §4.6: the reserve
// carries "a higher threshold to spend") — callers are expected to have
// already obtained the elevated governance approval that authorizes an
// emergency reserve spend before calling this.
func (t *Treasury) DebitReserve(amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if amount > t.reserveBalance {
		return newErr(ErrInsufficientFunds, "")
	}
	t.reserveBalance -= amount
	t.totalSpending += amount
	return nil
}
