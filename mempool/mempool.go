// Package mempool implements the pending-transaction set (spec.md §4.2,
// component C3): transactions that passed UTXO pre-validation but have not
// yet been finalized by consensus.
package mempool

import (
	"sync"
	"time"

	"timechain.dev/core/crypto"
	"timechain.dev/core/ledger"
)

// DefaultMaxAge is the default eviction age for a pending transaction
// (spec.md §4.2 "A pending transaction older than a configured age
// (default 1 h) is evicted").
const DefaultMaxAge = time.Hour

type senderNonce struct {
	sender [20]byte
	nonce  uint64
}

type entry struct {
	tx       *ledger.Transaction
	hash     ledger.Hash
	admitted time.Time
}

// Mempool is the shared pending-transaction region (spec.md §5 "The
// mempool is shared by all submission endpoints and by the consensus
// core; writes go through a single writer").
type Mempool struct {
	mu      sync.Mutex
	crypto  crypto.Provider
	ledger  *ledger.Ledger
	maxAge  time.Duration
	now     func() time.Time
	byHash  map[ledger.Hash]*entry
	bySN    map[senderNonce]*entry
	spends  map[ledger.Outpoint]*entry
}

// New constructs a Mempool backed by l for pre-validation.
func New(p crypto.Provider, l *ledger.Ledger) *Mempool {
	return &Mempool{
		crypto: p,
		ledger: l,
		maxAge: DefaultMaxAge,
		now:    time.Now,
		byHash: make(map[ledger.Hash]*entry),
		bySN:   make(map[senderNonce]*entry),
		spends: make(map[ledger.Outpoint]*entry),
	}
}

// SetMaxAge overrides the default eviction age (for tests/configuration).
func (m *Mempool) SetMaxAge(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxAge = d
}

// ErrorCode enumerates mempool admission failures.
type ErrorCode string

const (
	ErrNonceConflict    ErrorCode = "NonceConflict"
	ErrOutpointConflict ErrorCode = "OutpointConflict"
	ErrUnknownOutpoint  ErrorCode = "UnknownOutpoint"
	ErrLockedOutpoint   ErrorCode = "LockedOutpoint"
	ErrBadSignature     ErrorCode = "BadSignature"
	ErrUnbalanced       ErrorCode = "Unbalanced"
	ErrNonceGap         ErrorCode = "NonceGap"
)

// Error is the mempool's typed admission error.
type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Msg }

// Admit validates tx against the ledger's committed state and the current
// pending set, then inserts it (spec.md §4.2 Admission). Mempool admission
// never mutates ledger state, so it re-derives the same checks
// Ledger.Apply performs (outpoint existence, lock status, signature,
// balance, nonce succession) against the committed ledger directly rather
// than calling Apply.
func (m *Mempool) Admit(tx *ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sn := senderNonce{sender: tx.Sender, nonce: tx.Nonce}
	if _, exists := m.bySN[sn]; exists {
		return &Error{Code: ErrNonceConflict, Msg: "pending transaction already uses this (sender, nonce)"}
	}

	for _, in := range tx.Inputs {
		if _, exists := m.spends[in.Outpoint]; exists {
			return &Error{Code: ErrOutpointConflict, Msg: "outpoint already claimed by a pending transaction"}
		}
	}

	var inputSum uint64
	for _, in := range tx.Inputs {
		utxo, ok := m.ledger.Get(in.Outpoint)
		if !ok {
			return &Error{Code: ErrUnknownOutpoint, Msg: "input outpoint not found in ledger"}
		}
		if m.ledger.IsLocked(in.Outpoint) {
			return &Error{Code: ErrLockedOutpoint, Msg: "input outpoint is locked"}
		}
		digest := ledger.SigningDigest(m.crypto, tx)
		if !m.crypto.Verify(in.PubKey, digest[:], in.Signature) {
			return &Error{Code: ErrBadSignature, Msg: "signature verification failed"}
		}
		if crypto.PubKeyHash160(m.crypto, in.PubKey) != utxo.Output.Address {
			return &Error{Code: ErrBadSignature, Msg: "pubkey does not match output address"}
		}
		var overflow bool
		inputSum, overflow = addU64(inputSum, utxo.Output.Amount)
		if overflow {
			return &Error{Code: ErrUnbalanced, Msg: "input sum overflow"}
		}
	}

	var outputSum uint64
	for _, out := range tx.Outputs {
		var overflow bool
		outputSum, overflow = addU64(outputSum, out.Amount)
		if overflow {
			return &Error{Code: ErrUnbalanced, Msg: "output sum overflow"}
		}
	}
	total, overflow := addU64(outputSum, tx.Fee)
	if overflow || total != inputSum {
		return &Error{Code: ErrUnbalanced, Msg: "outputs plus fee do not match inputs"}
	}

	if current := m.ledger.AccountNonce(tx.Sender); tx.Nonce != current+1 {
		return &Error{Code: ErrNonceGap, Msg: "nonce does not follow committed account nonce"}
	}

	txHash := ledger.TxHash(m.crypto, tx)
	e := &entry{tx: tx, hash: txHash, admitted: m.now()}
	m.byHash[txHash] = e
	m.bySN[sn] = e
	for _, in := range tx.Inputs {
		m.spends[in.Outpoint] = e
	}
	return nil
}

func addU64(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum < a
}

// Remove evicts the pending transaction with the given hash, e.g. on
// finalization (spec.md §4.2 Eviction).
func (m *Mempool) Remove(hash ledger.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(hash)
}

func (m *Mempool) removeLocked(hash ledger.Hash) {
	e, ok := m.byHash[hash]
	if !ok {
		return
	}
	delete(m.byHash, hash)
	delete(m.bySN, senderNonce{sender: e.tx.Sender, nonce: e.tx.Nonce})
	for _, in := range e.tx.Inputs {
		if m.spends[in.Outpoint] == e {
			delete(m.spends, in.Outpoint)
		}
	}
}

// Get returns the pending transaction for hash, if present.
func (m *Mempool) Get(hash ledger.Hash) (*ledger.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byHash[hash]
	if !ok {
		return nil, false
	}
	return e.tx, true
}

// EvictExpired removes every pending transaction older than the configured
// max age, returning their hashes.
func (m *Mempool) EvictExpired() []ledger.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.maxAge)
	var evicted []ledger.Hash
	for hash, e := range m.byHash {
		if e.admitted.Before(cutoff) {
			evicted = append(evicted, hash)
		}
	}
	for _, hash := range evicted {
		m.removeLocked(hash)
	}
	return evicted
}

// Len returns the number of pending transactions.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byHash)
}

// HasConflict reports whether outpoint is already claimed by a different
// pending transaction than exclude.
func (m *Mempool) HasConflict(outpoint ledger.Outpoint, exclude ledger.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.spends[outpoint]
	return ok && e.hash != exclude
}
