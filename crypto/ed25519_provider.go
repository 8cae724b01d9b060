package crypto

import (
	stded25519 "crypto/ed25519"

	"golang.org/x/crypto/sha3"
)

// Ed25519Provider is the production Provider: SHA3-256 content hashing
// (golang.org/x/crypto/sha3) plus Ed25519 signatures (stdlib crypto/ed25519,
// the same primitive golang.org/x/crypto re-exports).
type Ed25519Provider struct{}

func (Ed25519Provider) SHA3_256(input []byte) [32]byte {
	return sha3.Sum256(input)
}

func (Ed25519Provider) Sign(priv []byte, msg []byte) []byte {
	if len(priv) != stded25519.PrivateKeySize {
		return nil
	}
	return stded25519.Sign(stded25519.PrivateKey(priv), msg)
}

func (Ed25519Provider) Verify(pub []byte, msg []byte, sig []byte) bool {
	if len(pub) != stded25519.PublicKeySize || len(sig) != stded25519.SignatureSize {
		return false
	}
	return stded25519.Verify(stded25519.PublicKey(pub), msg, sig)
}

// GenerateKeypair returns a fresh Ed25519 keypair (32-byte public key,
// 64-byte expanded private key). Intended for tests and tooling; the wallet
// component that manages operator keys in production is out of scope
// (spec.md §1).
func GenerateKeypair(seed [32]byte) (pub []byte, priv []byte) {
	privKey := stded25519.NewKeyFromSeed(seed[:])
	return []byte(privKey.Public().(stded25519.PublicKey)), []byte(privKey)
}
