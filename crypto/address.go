package crypto

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// AddressVersionMainnet is the mainnet address version byte (spec.md §6).
const AddressVersionMainnet byte = 0x4D

// AddressVersionTestnet is the testnet address version byte. The exact
// value is a deployment choice (spec.md §6 "testnet prefix varies by
// network"); 0x8D keeps the base58 alphabet's leading-character convention
// distinct from mainnet.
const AddressVersionTestnet byte = 0x8D

const (
	addressPubKeyHashLen = 20
	addressChecksumLen   = 4
	addressRawLen        = 1 + addressPubKeyHashLen + addressChecksumLen
)

// ErrInvalidAddress is returned when decoding a malformed or
// checksum-mismatched address string.
var ErrInvalidAddress = errors.New("crypto: invalid address")

// Address is a decoded address: version byte and 20-byte public-key hash.
// The 4-byte checksum of the 25-byte encoded record is not stored; Encode
// computes it and DecodeAddress verifies and drops it.
type Address struct {
	Version    byte
	PubKeyHash [20]byte
}

// PubKeyHash160 derives the 20-byte address payload from a public key by
// truncating its SHA3-256 digest, mirroring the single-hash-function
// posture of this protocol's C1 primitives (spec.md §3 Address).
func PubKeyHash160(p Provider, pubkey []byte) [20]byte {
	full := p.SHA3_256(pubkey)
	var out [20]byte
	copy(out[:], full[:20])
	return out
}

// NewAddress builds an Address from a version byte and a public-key hash.
func NewAddress(version byte, pubKeyHash [20]byte) Address {
	return Address{Version: version, PubKeyHash: pubKeyHash}
}

// Encode renders the address as base58-check text: base58(version ||
// pubkey_hash || checksum) where checksum is the first 4 bytes of
// SHA3-256(SHA3-256(version || pubkey_hash)).
func (a Address) Encode(p Provider) string {
	raw := a.rawBytes(p)
	return base58.Encode(raw)
}

func (a Address) rawBytes(p Provider) []byte {
	raw := make([]byte, 0, addressRawLen)
	raw = append(raw, a.Version)
	raw = append(raw, a.PubKeyHash[:]...)
	inner := p.SHA3_256(raw)
	outer := p.SHA3_256(inner[:])
	raw = append(raw, outer[:addressChecksumLen]...)
	return raw
}

// DecodeAddress parses a base58-check address string and verifies its
// checksum. It returns ErrInvalidAddress on any malformed input.
func DecodeAddress(p Provider, s string) (Address, error) {
	raw := base58.Decode(s)
	if len(raw) != addressRawLen {
		return Address{}, ErrInvalidAddress
	}
	payload := raw[:1+addressPubKeyHashLen]
	checksum := raw[1+addressPubKeyHashLen:]

	inner := p.SHA3_256(payload)
	outer := p.SHA3_256(inner[:])
	for i := 0; i < addressChecksumLen; i++ {
		if checksum[i] != outer[i] {
			return Address{}, ErrInvalidAddress
		}
	}

	var a Address
	a.Version = payload[0]
	copy(a.PubKeyHash[:], payload[1:])
	return a, nil
}
