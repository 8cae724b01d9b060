package store

import (
	"testing"
	"time"

	"timechain.dev/core/ledger"
	"timechain.dev/core/registry"
	"timechain.dev/core/slashing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir, "devnet")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPutAndLoadUTXOs(t *testing.T) {
	db := openTestDB(t)
	o := ledger.Outpoint{TxHash: ledger.Hash{1, 2, 3}, Index: 1}
	e := ledger.UtxoEntry{Output: ledger.TxOutput{Amount: 500, Address: [20]byte{9}}}
	if err := db.PutUTXO(o, e); err != nil {
		t.Fatalf("put: %v", err)
	}

	var got []ledger.Outpoint
	if err := db.LoadUTXOs(func(op ledger.Outpoint, entry ledger.UtxoEntry) error {
		got = append(got, op)
		if entry.Output.Amount != 500 {
			t.Fatalf("unexpected amount %d", entry.Output.Amount)
		}
		return nil
	}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0] != o {
		t.Fatalf("expected one matching outpoint, got %v", got)
	}

	if err := db.DeleteUTXO(o); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got = nil
	_ = db.LoadUTXOs(func(op ledger.Outpoint, entry ledger.UtxoEntry) error {
		got = append(got, op)
		return nil
	})
	if len(got) != 0 {
		t.Fatalf("expected no utxos after delete, got %d", len(got))
	}
}

func TestPutAndGetNode(t *testing.T) {
	db := openTestDB(t)
	mn := &registry.Masternode{
		ID:           registry.NodeID{7},
		Operator:     [20]byte{8},
		Tier:         registry.TierSilver,
		RegisteredAt: time.Unix(1000, 0),
		LastActive:   time.Unix(2000, 0),
		Status:       registry.StatusActive,
	}
	if err := db.PutNode(mn); err != nil {
		t.Fatalf("put node: %v", err)
	}
	got, ok, err := db.GetNode(mn.ID)
	if err != nil || !ok {
		t.Fatalf("get node: ok=%v err=%v", ok, err)
	}
	if got.Tier != registry.TierSilver || got.Operator != mn.Operator {
		t.Fatalf("unexpected node record: %+v", got)
	}
}

func TestCommitDayPersistsManifest(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, "devnet")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.CommitDay(5, "deadbeef", time.Unix(12345, 0)); err != nil {
		t.Fatalf("commit day: %v", err)
	}
	_ = db.Close()

	reopened, err := Open(dir, "devnet")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if reopened.Manifest().DayNumber != 5 {
		t.Fatalf("expected day 5 to survive reopen, got %d", reopened.Manifest().DayNumber)
	}
}

func TestAppendSlashingRecord(t *testing.T) {
	db := openTestDB(t)
	rec := slashing.SlashingRecord{RecordID: "abc-123", Node: registry.NodeID{1}, AmountSlashed: 10}
	if err := db.AppendSlashingRecord(rec); err != nil {
		t.Fatalf("append: %v", err)
	}
}
