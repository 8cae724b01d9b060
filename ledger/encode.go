package ledger

import (
	"encoding/binary"

	"timechain.dev/core/crypto"
)

// canonicalTxBytes serializes tx deterministically for hashing and signing,
// covering every field except Signature itself (spec.md §3 Transaction:
// "signature covers all fields except itself").
func canonicalTxBytes(tx *Transaction) []byte {
	buf := make([]byte, 0, 128+len(tx.Inputs)*96+len(tx.Outputs)*28)

	buf = append(buf, byte(tx.Kind))
	buf = appendU32(buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.Outpoint.TxHash[:]...)
		buf = appendU32(buf, in.Outpoint.Index)
		buf = append(buf, in.PubKey...)
		buf = appendU32(buf, uint32(len(in.PubKey)))
	}
	buf = appendU32(buf, uint32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf = appendU64(buf, out.Amount)
		buf = append(buf, out.Address[:]...)
	}
	buf = appendU64(buf, tx.Fee)
	buf = appendU64(buf, tx.Nonce)
	buf = appendU64(buf, uint64(tx.Timestamp))
	buf = append(buf, tx.Sender[:]...)
	return buf
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// TxHash computes the content hash of tx (spec.md §3: "Content-hashed
// deterministically").
func TxHash(p crypto.Provider, tx *Transaction) Hash {
	return Hash(p.SHA3_256(canonicalTxBytes(tx)))
}

// SigningDigest returns the digest that TxInput.Signature and
// Transaction.Signature are computed over: the canonical bytes of the
// transaction with its own Signature field excluded by construction.
func SigningDigest(p crypto.Provider, tx *Transaction) [32]byte {
	return p.SHA3_256(canonicalTxBytes(tx))
}

// outpointBytes serializes an outpoint for use as a merkle leaf or map key
// material requiring byte ordering.
func outpointBytes(o Outpoint) []byte {
	buf := make([]byte, 0, 36)
	buf = append(buf, o.TxHash[:]...)
	buf = appendU32(buf, o.Index)
	return buf
}
