// Package crypto provides the narrow cryptographic primitives used by the
// rest of the core: content hashing, Ed25519 signature verification, and
// address encoding. It exposes a single capability interface so consensus
// code never imports a concrete crypto backend directly.
package crypto

// Provider is the crypto capability the core depends on. A single
// implementation (Ed25519Provider) ships with this module; the interface
// exists so tests can inject deterministic stand-ins without linking a real
// signature scheme.
type Provider interface {
	// SHA3_256 returns the 32-byte content hash of input.
	SHA3_256(input []byte) [32]byte

	// Sign produces a 64-byte Ed25519 signature over msg using priv, a
	// 64-byte Ed25519 private key in the standard library's expanded form.
	Sign(priv []byte, msg []byte) []byte

	// Verify reports whether sig is a valid Ed25519 signature over msg
	// under the 32-byte public key pub.
	Verify(pub []byte, msg []byte, sig []byte) bool
}
