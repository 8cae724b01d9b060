package crypto

import "testing"

func TestMerkleRootEmpty(t *testing.T) {
	p := Ed25519Provider{}
	if got := MerkleRoot(p, nil); got != ([32]byte{}) {
		t.Fatalf("expected zero root for empty input, got %x", got)
	}
}

func TestMerkleRootSingleLeaf(t *testing.T) {
	p := Ed25519Provider{}
	leaf := []byte("tx-1")
	root := MerkleRoot(p, [][]byte{leaf})
	want := p.SHA3_256(append([]byte{0x00}, leaf...))
	if root != want {
		t.Fatalf("single-leaf root should equal tagged leaf hash")
	}
}

func TestMerkleRootDeterministic(t *testing.T) {
	p := Ed25519Provider{}
	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	r1 := MerkleRoot(p, leaves)
	r2 := MerkleRoot(p, leaves)
	if r1 != r2 {
		t.Fatal("merkle root must be deterministic")
	}
}

func TestMerkleRootOddPromotion(t *testing.T) {
	p := Ed25519Provider{}
	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	root := MerkleRoot(p, leaves)

	// Duplicating the last leaf must NOT yield the same root (guards
	// against the classic duplicate-leaf merkle ambiguity).
	dup := MerkleRoot(p, [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("c")})
	if root == dup {
		t.Fatal("odd-leaf promotion must differ from duplicate-leaf padding")
	}
}

func TestMerkleRootHashesMatchesBytes(t *testing.T) {
	p := Ed25519Provider{}
	h1 := p.SHA3_256([]byte("x"))
	h2 := p.SHA3_256([]byte("y"))
	viaHashes := MerkleRootHashes(p, [][32]byte{h1, h2})
	viaBytes := MerkleRoot(p, [][]byte{h1[:], h2[:]})
	if viaHashes != viaBytes {
		t.Fatal("MerkleRootHashes and MerkleRoot must agree on equivalent input")
	}
}
