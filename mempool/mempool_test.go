package mempool

import (
	"testing"
	"time"

	"timechain.dev/core/crypto"
	"timechain.dev/core/ledger"
)

// fundedTx mints 1000 units to a fresh keypair's address on l and returns a
// signed KindStandard transaction spending that mint at the given nonce.
func fundedTx(t *testing.T, p crypto.Provider, l *ledger.Ledger, seed byte, nonce uint64) *ledger.Transaction {
	t.Helper()
	pub, priv := crypto.GenerateKeypair([32]byte{seed})
	sender := crypto.PubKeyHash160(p, pub)

	mint := &ledger.Transaction{Kind: ledger.KindMint, Outputs: []ledger.TxOutput{{Amount: 1000, Address: sender}}}
	delta, err := l.Apply(mint)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	tx := &ledger.Transaction{
		Kind:    ledger.KindStandard,
		Inputs:  []ledger.TxInput{{Outpoint: delta.AddedOutpoints[0], PubKey: pub}},
		Outputs: []ledger.TxOutput{{Amount: 900, Address: [20]byte{0xaa}}},
		Fee:     100,
		Sender:  sender,
		Nonce:   nonce,
	}
	digest := ledger.SigningDigest(p, tx)
	tx.Inputs[0].Signature = p.Sign(priv, digest[:])
	return tx
}

func TestAdmitAndRemove(t *testing.T) {
	p := crypto.Ed25519Provider{}
	l := ledger.New(p)
	mp := New(p, l)

	tx := fundedTx(t, p, l, 1, 1)

	if err := mp.Admit(tx); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if mp.Len() != 1 {
		t.Fatalf("expected 1 pending tx, got %d", mp.Len())
	}

	hash := ledger.TxHash(p, tx)
	mp.Remove(hash)
	if mp.Len() != 0 {
		t.Fatalf("expected 0 after removal, got %d", mp.Len())
	}
}

func TestAdmitRejectsUnknownOutpoint(t *testing.T) {
	p := crypto.Ed25519Provider{}
	l := ledger.New(p)
	mp := New(p, l)

	sender := [20]byte{1}
	tx := &ledger.Transaction{
		Kind:    ledger.KindStandard,
		Inputs:  []ledger.TxInput{{Outpoint: ledger.Outpoint{TxHash: ledger.Hash{1}, Index: 0}}},
		Outputs: []ledger.TxOutput{{Amount: 1, Address: sender}},
		Nonce:   1,
		Sender:  sender,
	}

	err := mp.Admit(tx)
	if err == nil {
		t.Fatal("expected unknown outpoint rejection")
	}
	if e, ok := err.(*Error); !ok || e.Code != ErrUnknownOutpoint {
		t.Fatalf("expected ErrUnknownOutpoint, got %v", err)
	}
}

func TestAdmitRejectsLockedOutpoint(t *testing.T) {
	p := crypto.Ed25519Provider{}
	l := ledger.New(p)
	mp := New(p, l)

	tx := fundedTx(t, p, l, 2, 1)
	l.Lock(tx.Inputs[0].Outpoint)

	err := mp.Admit(tx)
	if err == nil {
		t.Fatal("expected locked outpoint rejection")
	}
	if e, ok := err.(*Error); !ok || e.Code != ErrLockedOutpoint {
		t.Fatalf("expected ErrLockedOutpoint, got %v", err)
	}
}

func TestAdmitRejectsBadSignature(t *testing.T) {
	p := crypto.Ed25519Provider{}
	l := ledger.New(p)
	mp := New(p, l)

	tx := fundedTx(t, p, l, 3, 1)
	tx.Inputs[0].Signature[0] ^= 0xFF

	err := mp.Admit(tx)
	if err == nil {
		t.Fatal("expected signature rejection")
	}
	if e, ok := err.(*Error); !ok || e.Code != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestAdmitRejectsNonceGap(t *testing.T) {
	p := crypto.Ed25519Provider{}
	l := ledger.New(p)
	mp := New(p, l)

	tx := fundedTx(t, p, l, 4, 5)

	err := mp.Admit(tx)
	if err == nil {
		t.Fatal("expected nonce gap rejection")
	}
	if e, ok := err.(*Error); !ok || e.Code != ErrNonceGap {
		t.Fatalf("expected ErrNonceGap, got %v", err)
	}
}

func TestAdmitRejectsNonceConflict(t *testing.T) {
	p := crypto.Ed25519Provider{}
	l := ledger.New(p)
	mp := New(p, l)

	pub, priv := crypto.GenerateKeypair([32]byte{5})
	sender := crypto.PubKeyHash160(p, pub)
	mint := &ledger.Transaction{Kind: ledger.KindMint, Outputs: []ledger.TxOutput{
		{Amount: 1000, Address: sender},
		{Amount: 1000, Address: sender},
	}}
	delta, err := l.Apply(mint)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	sign := func(op ledger.Outpoint) *ledger.Transaction {
		tx := &ledger.Transaction{
			Kind:    ledger.KindStandard,
			Inputs:  []ledger.TxInput{{Outpoint: op, PubKey: pub}},
			Outputs: []ledger.TxOutput{{Amount: 900, Address: [20]byte{0xaa}}},
			Fee:     100,
			Sender:  sender,
			Nonce:   1,
		}
		digest := ledger.SigningDigest(p, tx)
		tx.Inputs[0].Signature = p.Sign(priv, digest[:])
		return tx
	}

	if err := mp.Admit(sign(delta.AddedOutpoints[0])); err != nil {
		t.Fatalf("first admit: %v", err)
	}
	err = mp.Admit(sign(delta.AddedOutpoints[1]))
	if err == nil {
		t.Fatal("expected nonce conflict")
	}
	if e, ok := err.(*Error); !ok || e.Code != ErrNonceConflict {
		t.Fatalf("expected ErrNonceConflict, got %v", err)
	}
}

func TestAdmitRejectsOutpointConflict(t *testing.T) {
	p := crypto.Ed25519Provider{}
	l := ledger.New(p)
	mp := New(p, l)

	pub, priv := crypto.GenerateKeypair([32]byte{6})
	sender := crypto.PubKeyHash160(p, pub)
	mint := &ledger.Transaction{Kind: ledger.KindMint, Outputs: []ledger.TxOutput{{Amount: 1000, Address: sender}}}
	delta, err := l.Apply(mint)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	op := delta.AddedOutpoints[0]

	sign := func(nonce uint64) *ledger.Transaction {
		tx := &ledger.Transaction{
			Kind:    ledger.KindStandard,
			Inputs:  []ledger.TxInput{{Outpoint: op, PubKey: pub}},
			Outputs: []ledger.TxOutput{{Amount: 900, Address: [20]byte{0xaa}}},
			Fee:     100,
			Sender:  sender,
			Nonce:   nonce,
		}
		digest := ledger.SigningDigest(p, tx)
		tx.Inputs[0].Signature = p.Sign(priv, digest[:])
		return tx
	}

	if err := mp.Admit(sign(1)); err != nil {
		t.Fatalf("first admit: %v", err)
	}
	err = mp.Admit(sign(2))
	if err == nil {
		t.Fatal("expected outpoint conflict")
	}
	if e, ok := err.(*Error); !ok || e.Code != ErrOutpointConflict {
		t.Fatalf("expected ErrOutpointConflict, got %v", err)
	}
}

func TestEvictExpired(t *testing.T) {
	p := crypto.Ed25519Provider{}
	l := ledger.New(p)
	mp := New(p, l)
	mp.SetMaxAge(time.Minute)

	base := time.Now()
	mp.now = func() time.Time { return base }

	tx := fundedTx(t, p, l, 7, 1)
	if err := mp.Admit(tx); err != nil {
		t.Fatalf("admit: %v", err)
	}

	mp.now = func() time.Time { return base.Add(2 * time.Minute) }
	evicted := mp.EvictExpired()
	if len(evicted) != 1 {
		t.Fatalf("expected 1 eviction, got %d", len(evicted))
	}
	if mp.Len() != 0 {
		t.Fatalf("expected empty mempool after eviction, got %d", mp.Len())
	}
}

func TestHasConflict(t *testing.T) {
	p := crypto.Ed25519Provider{}
	l := ledger.New(p)
	mp := New(p, l)

	tx := fundedTx(t, p, l, 8, 1)
	if err := mp.Admit(tx); err != nil {
		t.Fatalf("admit: %v", err)
	}
	hash := ledger.TxHash(p, tx)
	op := tx.Inputs[0].Outpoint
	if mp.HasConflict(op, hash) {
		t.Fatal("should not conflict with itself")
	}
	if !mp.HasConflict(op, ledger.Hash{0xFF}) {
		t.Fatal("should conflict with a different transaction")
	}
}
