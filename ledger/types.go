// Package ledger implements the UTXO ledger (spec.md §4.1, component C2):
// an injective Outpoint -> TxOutput map plus a locked-outpoint set, with
// atomic apply/revert of transactions and nonce-monotonicity enforcement.
package ledger

// Hash is a 32-byte content-addressed identifier (spec.md §3 Hash).
type Hash [32]byte

// Outpoint identifies a UTXO: the transaction that created it and its
// output index within that transaction (spec.md §3 Outpoint).
type Outpoint struct {
	TxHash Hash
	Index  uint32
}

// TxOutput is a spendable output: an amount in satoshis and an owning
// address hash (spec.md §3 TxOutput). Address is the 20-byte public-key
// hash, not the rendered base58-check string.
type TxOutput struct {
	Amount  uint64
	Address [20]byte
}

// TxInput references the outpoint it spends and carries the spending
// authorization (spec.md §3 TxInput).
type TxInput struct {
	Outpoint  Outpoint
	Signature []byte
	PubKey    []byte
}

// TransactionKind distinguishes ordinary user transactions from the
// protocol-signed synthetic transactions that reward distribution,
// slashing, and lawful collateral return materialize (spec.md §9 Open
// Question: these must be real ledger transactions, not simulated).
type TransactionKind uint8

const (
	KindStandard TransactionKind = iota
	KindReward
	KindSlash
	KindCollateralReturn
	KindMint
)

// Transaction is the unit the ledger applies (spec.md §3 Transaction).
// Protocol kinds (every kind but KindStandard) skip the signature, balance
// and nonce checks in Apply; of these, KindReward, KindSlash and
// KindCollateralReturn may also spend locked outpoints, while KindMint may
// not. KindSlash spends the node's locked collateral outpoint as its input.
type Transaction struct {
	Kind      TransactionKind
	Inputs    []TxInput
	Outputs   []TxOutput
	Fee       uint64
	Nonce     uint64
	Timestamp int64
	Sender    [20]byte // address hash whose nonce this transaction consumes
	Signature []byte
	SenderPub []byte
}

// UtxoEntry is the value type stored per Outpoint.
type UtxoEntry struct {
	Output TxOutput
}

// StateDelta captures everything Apply mutated so Revert can undo it
// (spec.md §4.1 Apply algorithm; §8 apply/revert round trip law).
type StateDelta struct {
	TxHash        Hash
	RemovedOutpoints []Outpoint
	RemovedEntries   []UtxoEntry // parallel to RemovedOutpoints, for revert
	AddedOutpoints   []Outpoint
	Sender           [20]byte
	PrevNonce        uint64
	HasPrevNonce     bool
	NewNonce         uint64
	HasNewNonce      bool
}
