package ledger

import (
	"bytes"
	"sort"
	"sync"

	"timechain.dev/core/crypto"
)

// Ledger owns the UTXO set, the locked-outpoint set, and the per-address
// nonce index (spec.md §4.1, §9 "Global mutable state... Model each as a
// typed region with explicit initialize/teardown"). It is the "ledger"
// region referenced by spec.md §5's lock-ordering discipline: any
// multi-region mutation acquires ledger before registry before consensus.
type Ledger struct {
	mu      sync.RWMutex
	crypto  crypto.Provider
	utxos   map[Outpoint]UtxoEntry
	locked  map[Outpoint]struct{}
	nonces  map[[20]byte]uint64
	byAddr  map[[20]byte]map[Outpoint]struct{}
}

// New constructs an empty Ledger.
func New(p crypto.Provider) *Ledger {
	return &Ledger{
		crypto: p,
		utxos:  make(map[Outpoint]UtxoEntry),
		locked: make(map[Outpoint]struct{}),
		nonces: make(map[[20]byte]uint64),
		byAddr: make(map[[20]byte]map[Outpoint]struct{}),
	}
}

// Restore inserts o/e directly into the UTXO set, bypassing Apply's
// validation, for rebuilding a Ledger from a durable journal on startup
// (spec.md §9 "Global mutable state... initialize from the journal, not
// from replaying every historical transaction").
func (l *Ledger) Restore(o Outpoint, e UtxoEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.utxos[o] = e
	l.addToAddrIndex(e.Output.Address, o)
}

// Get returns the UTXO at outpoint, if present.
func (l *Ledger) Get(o Outpoint) (UtxoEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.utxos[o]
	return e, ok
}

// IsLocked reports whether outpoint is in the locked-collateral set
// (spec.md §4.1 "lock(outpoint), unlock(outpoint), is_locked(outpoint)").
func (l *Ledger) IsLocked(o Outpoint) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.locked[o]
	return ok
}

// Lock marks outpoint as locked collateral. It is idempotent.
func (l *Ledger) Lock(o Outpoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked[o] = struct{}{}
}

// Unlock removes outpoint from the locked-collateral set. It is idempotent.
func (l *Ledger) Unlock(o Outpoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locked, o)
}

// AccountNonce returns the current nonce on record for address (0 if the
// address has never spent).
func (l *Ledger) AccountNonce(addr [20]byte) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nonces[addr]
}

// BalanceOf sums the amount of every unspent output owned by addr
// (spec.md §4.1 "balance_of(address)").
func (l *Ledger) BalanceOf(addr [20]byte) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total uint64
	for o := range l.byAddr[addr] {
		total += l.utxos[o].Output.Amount
	}
	return total
}

// SpendableUTXOsOf returns every unspent, unlocked output owned by addr
// (spec.md §4.1 "spendable_utxos_of(address)").
func (l *Ledger) SpendableUTXOsOf(addr [20]byte) map[Outpoint]UtxoEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[Outpoint]UtxoEntry)
	for o := range l.byAddr[addr] {
		if _, locked := l.locked[o]; locked {
			continue
		}
		out[o] = l.utxos[o]
	}
	return out
}

// allowsLockedSpend reports whether kind may spend a locked outpoint
// (spec.md §4.1: "if locked (and the transaction is not a protocol-signed
// slashing or reward transaction)").
func allowsLockedSpend(kind TransactionKind) bool {
	switch kind {
	case KindSlash, KindCollateralReturn, KindReward:
		return true
	default:
		return false
	}
}

// Apply validates tx against the current ledger state and, on success,
// mutates the UTXO set and nonce index, returning a StateDelta that Revert
// can use to undo the change (spec.md §4.1 Apply algorithm).
func (l *Ledger) Apply(tx *Transaction) (*StateDelta, error) {
	if tx == nil {
		return nil, newErr(ErrUnbalanced, "nil transaction")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var inputSum uint64
	seen := make(map[Outpoint]struct{}, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if _, dup := seen[in.Outpoint]; dup {
			return nil, newErr(ErrDuplicateOutput, "input spent twice in same transaction")
		}
		seen[in.Outpoint] = struct{}{}

		entry, ok := l.utxos[in.Outpoint]
		if !ok {
			return nil, newErr(ErrUnknownOutpoint, "")
		}
		if _, locked := l.locked[in.Outpoint]; locked && !allowsLockedSpend(tx.Kind) {
			return nil, newErr(ErrLockedOutpoint, "")
		}
		if tx.Kind == KindStandard {
			digest := SigningDigest(l.crypto, tx)
			if !l.crypto.Verify(in.PubKey, digest[:], in.Signature) {
				return nil, newErr(ErrBadSignature, "")
			}
			pkHash := crypto.PubKeyHash160(l.crypto, in.PubKey)
			if pkHash != entry.Output.Address {
				return nil, newErr(ErrBadSignature, "pubkey does not match output address")
			}
		}
		var overflow bool
		inputSum, overflow = addU64(inputSum, entry.Output.Value())
		if overflow {
			return nil, newErr(ErrUnbalanced, "input sum overflow")
		}
	}

	var outputSum uint64
	for _, out := range tx.Outputs {
		if out.Amount == 0 {
			return nil, newErr(ErrNegativeAmount, "output amount must be > 0")
		}
		var overflow bool
		outputSum, overflow = addU64(outputSum, out.Amount)
		if overflow {
			return nil, newErr(ErrUnbalanced, "output sum overflow")
		}
	}

	if tx.Kind == KindStandard {
		total, overflow := addU64(outputSum, tx.Fee)
		if overflow || total != inputSum {
			return nil, newErr(ErrUnbalanced, "")
		}

		current := l.nonces[tx.Sender]
		if tx.Nonce != current+1 {
			return nil, newErr(ErrNonceGap, "")
		}
	}

	// All checks passed; mutate.
	delta := &StateDelta{
		TxHash: TxHash(l.crypto, tx),
		Sender: tx.Sender,
	}

	for o := range seen {
		entry := l.utxos[o]
		delta.RemovedOutpoints = append(delta.RemovedOutpoints, o)
		delta.RemovedEntries = append(delta.RemovedEntries, entry)
		delete(l.utxos, o)
		l.removeFromAddrIndex(entry.Output.Address, o)
	}

	txHash := delta.TxHash
	for i, out := range tx.Outputs {
		o := Outpoint{TxHash: txHash, Index: uint32(i)}
		l.utxos[o] = UtxoEntry{Output: out}
		l.addToAddrIndex(out.Address, o)
		delta.AddedOutpoints = append(delta.AddedOutpoints, o)
	}

	if tx.Kind == KindStandard {
		delta.PrevNonce = l.nonces[tx.Sender]
		delta.HasPrevNonce = true
		delta.NewNonce = tx.Nonce
		delta.HasNewNonce = true
		l.nonces[tx.Sender] = tx.Nonce
	}

	return delta, nil
}

// Revert undoes a previously applied delta, restoring removed outpoints and
// erasing added ones (spec.md §8 "apply followed by revert... restores
// ledger identity").
func (l *Ledger) Revert(delta *StateDelta) {
	if delta == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, o := range delta.AddedOutpoints {
		if entry, ok := l.utxos[o]; ok {
			l.removeFromAddrIndex(entry.Output.Address, o)
		}
		delete(l.utxos, o)
	}
	for i, o := range delta.RemovedOutpoints {
		entry := delta.RemovedEntries[i]
		l.utxos[o] = entry
		l.addToAddrIndex(entry.Output.Address, o)
	}
	if delta.HasPrevNonce {
		l.nonces[delta.Sender] = delta.PrevNonce
	}
}

// Snapshot returns the Merkle root over the lexicographically sorted
// serialized (outpoint, output) pairs (spec.md §4.1 "state_root").
func (l *Ledger) Snapshot() [32]byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stateRootLocked()
}

func (l *Ledger) stateRootLocked() [32]byte {
	type pair struct {
		key   []byte
		entry UtxoEntry
		op    Outpoint
	}
	pairs := make([]pair, 0, len(l.utxos))
	for o, e := range l.utxos {
		pairs = append(pairs, pair{key: outpointBytes(o), entry: e, op: o})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return bytes.Compare(pairs[i].key, pairs[j].key) < 0
	})
	leaves := make([][]byte, len(pairs))
	for i, p := range pairs {
		buf := append([]byte(nil), p.key...)
		buf = appendU64(buf, p.entry.Output.Amount)
		buf = append(buf, p.entry.Output.Address[:]...)
		leaves[i] = buf
	}
	return crypto.MerkleRoot(l.crypto, leaves)
}

func (l *Ledger) addToAddrIndex(addr [20]byte, o Outpoint) {
	set, ok := l.byAddr[addr]
	if !ok {
		set = make(map[Outpoint]struct{})
		l.byAddr[addr] = set
	}
	set[o] = struct{}{}
}

func (l *Ledger) removeFromAddrIndex(addr [20]byte, o Outpoint) {
	if set, ok := l.byAddr[addr]; ok {
		delete(set, o)
		if len(set) == 0 {
			delete(l.byAddr, addr)
		}
	}
}

func addU64(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum < a
}

// Value returns the output's amount. Defined as a method so callers don't
// reach into the struct directly when computing sums in hot paths.
func (o TxOutput) Value() uint64 { return o.Amount }
