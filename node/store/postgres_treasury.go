package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"timechain.dev/core/treasury"
)

// PostgresTreasuryStore is the alternate treasury journal backend for
// operators who want the treasury's income/spending ledger queryable with
// SQL rather than folded into the bbolt journal (spec.md SPEC_FULL.md
// [DOMAIN] Third-party stack; selected by node.Config.TreasuryBackend
// "postgres").
type PostgresTreasuryStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgresTreasury opens a pooled connection and ensures the
// schema exists.
func ConnectPostgresTreasury(ctx context.Context, dsn string) (*PostgresTreasuryStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect treasury postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping treasury postgres: %w", err)
	}
	s := &PostgresTreasuryStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresTreasuryStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresTreasuryStore) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS treasury_ledger (
	id BIGSERIAL PRIMARY KEY,
	at TIMESTAMPTZ NOT NULL,
	source TEXT NOT NULL,
	direction TEXT NOT NULL,
	amount BIGINT NOT NULL,
	category TEXT
);
CREATE TABLE IF NOT EXISTS treasury_snapshot (
	id SMALLINT PRIMARY KEY DEFAULT 1,
	operating_balance BIGINT NOT NULL,
	reserve_balance BIGINT NOT NULL,
	locked_collateral BIGINT NOT NULL,
	total_income BIGINT NOT NULL,
	total_spending BIGINT NOT NULL,
	CHECK (id = 1)
);
`
	_, err := s.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("init treasury schema: %w", err)
	}
	return nil
}

// RecordCredit appends an income event (spec.md §4.6 Income sources).
func (s *PostgresTreasuryStore) RecordCredit(ctx context.Context, source treasury.IncomeSource, amount uint64, at int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO treasury_ledger (at, source, direction, amount) VALUES (to_timestamp($1), $2, 'credit', $3)`,
		at, sourceLabel(source), amount)
	return err
}

// RecordDebit appends a spending event tagged with its governance category
// (spec.md §4.6 SpendingLimiter categories).
func (s *PostgresTreasuryStore) RecordDebit(ctx context.Context, category string, amount uint64, at int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO treasury_ledger (at, source, direction, amount, category) VALUES (to_timestamp($1), 'spend', 'debit', $2, $3)`,
		at, amount, category)
	return err
}

// SyncSnapshot upserts the treasury's current balances, a point-in-time
// view for operators running reconciliation queries against SQL rather
// than replaying the full ledger event stream.
func (s *PostgresTreasuryStore) SyncSnapshot(ctx context.Context, t *treasury.Treasury) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO treasury_snapshot (id, operating_balance, reserve_balance, locked_collateral, total_income, total_spending)
VALUES (1, $1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	operating_balance = EXCLUDED.operating_balance,
	reserve_balance = EXCLUDED.reserve_balance,
	locked_collateral = EXCLUDED.locked_collateral,
	total_income = EXCLUDED.total_income,
	total_spending = EXCLUDED.total_spending
`, t.OperatingBalance(), t.ReserveBalance(), t.LockedCollateral(), t.TotalIncome(), t.TotalSpending())
	return err
}

func sourceLabel(s treasury.IncomeSource) string {
	switch s {
	case treasury.SourceBlockReward:
		return "block_reward"
	case treasury.SourceFeeShare:
		return "fee_share"
	case treasury.SourceSlashingProceeds:
		return "slashing_proceeds"
	case treasury.SourceExpiredDeposit:
		return "expired_deposit"
	default:
		return "unknown"
	}
}
