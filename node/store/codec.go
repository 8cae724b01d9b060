package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"timechain.dev/core/ledger"
	"timechain.dev/core/registry"
	"timechain.dev/core/slashing"
)

func encodeOutpointKey(o ledger.Outpoint) []byte {
	key := make([]byte, 0, 36)
	key = append(key, o.TxHash[:]...)
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], o.Index)
	return append(key, idx[:]...)
}

// utxoRecord is the JSON wire shape persisted per UTXO; kept separate from
// ledger.UtxoEntry so a future on-disk format change doesn't ripple into
// the in-memory ledger type.
type utxoRecord struct {
	Amount  uint64   `json:"amount"`
	Address [20]byte `json:"address"`
}

func encodeUtxoEntry(e ledger.UtxoEntry) ([]byte, error) {
	return json.Marshal(utxoRecord{Amount: e.Output.Amount, Address: e.Output.Address})
}

func decodeUtxoEntry(b []byte) (ledger.UtxoEntry, error) {
	var r utxoRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return ledger.UtxoEntry{}, fmt.Errorf("decode utxo: %w", err)
	}
	return ledger.UtxoEntry{Output: ledger.TxOutput{Amount: r.Amount, Address: r.Address}}, nil
}

// nodeRecord is the JSON wire shape for a persisted masternode registration.
type nodeRecord struct {
	ID                 registry.NodeID `json:"id"`
	Operator           [20]byte        `json:"operator"`
	Tier               registry.Tier   `json:"tier"`
	CollateralOutpoint ledger.Outpoint `json:"collateral_outpoint"`
	HasCollateral      bool            `json:"has_collateral"`
	RegisteredAt       time.Time       `json:"registered_at"`
	LastActive         time.Time       `json:"last_active"`
	CumulativeUptime   time.Duration   `json:"cumulative_uptime"`
	Reputation         int32           `json:"reputation"`
	Status             registry.Status `json:"status"`
}

func encodeNode(mn *registry.Masternode) ([]byte, error) {
	return json.Marshal(nodeRecord{
		ID:                 mn.ID,
		Operator:           mn.Operator,
		Tier:               mn.Tier,
		CollateralOutpoint: mn.CollateralOutpoint,
		HasCollateral:      mn.HasCollateral,
		RegisteredAt:       mn.RegisteredAt,
		LastActive:         mn.LastActive,
		CumulativeUptime:   mn.CumulativeUptime,
		Reputation:         mn.Reputation,
		Status:             mn.Status,
	})
}

func decodeNode(b []byte) (*registry.Masternode, error) {
	var r nodeRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	return &registry.Masternode{
		ID:                 r.ID,
		Operator:           r.Operator,
		Tier:               r.Tier,
		CollateralOutpoint: r.CollateralOutpoint,
		HasCollateral:      r.HasCollateral,
		RegisteredAt:       r.RegisteredAt,
		LastActive:         r.LastActive,
		CumulativeUptime:   r.CumulativeUptime,
		Reputation:         r.Reputation,
		Status:             r.Status,
	}, nil
}

func encodeSlashingRecord(rec slashing.SlashingRecord) ([]byte, error) {
	return json.Marshal(rec)
}

func decodeSlashingRecord(b []byte) (slashing.SlashingRecord, error) {
	var rec slashing.SlashingRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return slashing.SlashingRecord{}, fmt.Errorf("decode slashing record: %w", err)
	}
	return rec, nil
}
