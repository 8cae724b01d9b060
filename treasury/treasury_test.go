package treasury

import "testing"

func TestCreditAndDebitOperating(t *testing.T) {
	tr := New()
	tr.CreditOperating(1000, SourceBlockReward)
	if tr.OperatingBalance() != 1000 {
		t.Fatalf("expected 1000, got %d", tr.OperatingBalance())
	}
	if err := tr.DebitOperating(400, nil, "grants", 0); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if tr.OperatingBalance() != 600 {
		t.Fatalf("expected 600, got %d", tr.OperatingBalance())
	}
	if tr.TotalIncome() != 1000 || tr.TotalSpending() != 400 {
		t.Fatalf("income/spending totals wrong: %d/%d", tr.TotalIncome(), tr.TotalSpending())
	}
}

func TestDebitOperatingInsufficientFunds(t *testing.T) {
	tr := New()
	tr.CreditOperating(100, SourceFeeShare)
	if err := tr.DebitOperating(101, nil, "grants", 0); err == nil {
		t.Fatal("expected InsufficientFunds")
	}
}

func TestSlashToOperatingMovesFromLockedCollateral(t *testing.T) {
	tr := New()
	tr.LockCollateral(1000)
	if err := tr.SlashToOperating(300); err != nil {
		t.Fatalf("slash: %v", err)
	}
	if tr.LockedCollateral() != 700 {
		t.Fatalf("expected 700 remaining locked, got %d", tr.LockedCollateral())
	}
	if tr.OperatingBalance() != 300 {
		t.Fatalf("expected 300 operating, got %d", tr.OperatingBalance())
	}
}

func TestSlashToOperatingRejectsOverLockedAmount(t *testing.T) {
	tr := New()
	tr.LockCollateral(100)
	if err := tr.SlashToOperating(200); err == nil {
		t.Fatal("expected NoLockedCollateral error")
	}
}

func TestDebitOperatingRespectsLimiterCategoryCap(t *testing.T) {
	tr := New()
	tr.CreditOperating(1_000_000, SourceBlockReward)
	limiter := NewSpendingLimiter(0, 0, map[string]uint64{"grants": 500})

	if err := tr.DebitOperating(500, limiter, "grants", 1000); err != nil {
		t.Fatalf("first debit: %v", err)
	}
	if err := tr.DebitOperating(1, limiter, "grants", 1000); err == nil {
		t.Fatal("expected CategoryLimitExceeded on second debit")
	}
	// Operating balance must not have been touched by the rejected debit.
	if tr.OperatingBalance() != 1_000_000-500 {
		t.Fatalf("rejected debit must not mutate balance, got %d", tr.OperatingBalance())
	}
}

func TestDebitOperatingRespectsDailyLimitAcrossDays(t *testing.T) {
	tr := New()
	tr.CreditOperating(1_000_000, SourceBlockReward)
	limiter := NewSpendingLimiter(100, 0, nil)

	if err := tr.DebitOperating(100, limiter, "ops", 0); err != nil {
		t.Fatalf("day 0 debit: %v", err)
	}
	if err := tr.DebitOperating(1, limiter, "ops", 0); err == nil {
		t.Fatal("expected daily limit exceeded")
	}
	if err := tr.DebitOperating(100, limiter, "ops", secondsPerDay); err != nil {
		t.Fatalf("next-day debit should succeed with a fresh window: %v", err)
	}
}

func TestDebitOperatingReleasesReservationOnInsufficientFunds(t *testing.T) {
	tr := New()
	tr.CreditOperating(50, SourceFeeShare)
	limiter := NewSpendingLimiter(1000, 0, nil)

	if err := tr.DebitOperating(100, limiter, "ops", 0); err == nil {
		t.Fatal("expected insufficient funds")
	}
	if err := tr.DebitOperating(50, limiter, "ops", 0); err != nil {
		t.Fatalf("reservation should have been released, got: %v", err)
	}
}

func TestDebitReserveIndependentOfOperating(t *testing.T) {
	tr := New()
	tr.CreditReserve(500)
	if err := tr.DebitReserve(500); err != nil {
		t.Fatalf("debit reserve: %v", err)
	}
	if err := tr.DebitReserve(1); err == nil {
		t.Fatal("expected insufficient reserve funds")
	}
}
