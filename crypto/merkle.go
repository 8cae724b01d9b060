package crypto

// MerkleRoot computes the Merkle root over leaves using domain-separated
// tagged hashing (leaf tag 0x00, inner-node tag 0x01), the same
// construction the teacher protocol uses for its transaction merkle tree.
// An odd node at any level is promoted unchanged to the next level rather
// than duplicated, avoiding the classic CVE-2012-2459 duplicate-leaf
// second-preimage issue.
func MerkleRoot(p Provider, leaves [][]byte) [32]byte {
	if len(leaves) == 0 {
		return [32]byte{}
	}
	level := make([][32]byte, len(leaves))
	for i, leaf := range leaves {
		buf := make([]byte, 0, 1+len(leaf))
		buf = append(buf, 0x00)
		buf = append(buf, leaf...)
		level[i] = p.SHA3_256(buf)
	}
	return foldLevels(p, level)
}

// MerkleRootHashes is MerkleRoot specialized for leaves that are already
// 32-byte hashes (transaction IDs, outpoint digests).
func MerkleRootHashes(p Provider, leaves [][32]byte) [32]byte {
	if len(leaves) == 0 {
		return [32]byte{}
	}
	level := make([][32]byte, len(leaves))
	for i, leaf := range leaves {
		buf := make([]byte, 0, 33)
		buf = append(buf, 0x00)
		buf = append(buf, leaf[:]...)
		level[i] = p.SHA3_256(buf)
	}
	return foldLevels(p, level)
}

func foldLevels(p Provider, level [][32]byte) [32]byte {
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); {
			if i == len(level)-1 {
				next = append(next, level[i])
				i++
				continue
			}
			buf := make([]byte, 0, 65)
			buf = append(buf, 0x01)
			buf = append(buf, level[i][:]...)
			buf = append(buf, level[i+1][:]...)
			next = append(next, p.SHA3_256(buf))
			i += 2
		}
		level = next
	}
	return level[0]
}
