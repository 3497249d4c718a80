package primitives

import "encoding/hex"

// AddressSize is the length in bytes of an Address.
const AddressSize = 20

// Address is a 20-byte account identifier, derived from a 32-byte public
// key per the two rules in the data model:
//
//  1. if the last 12 bytes of the key are zero and the first 20 are not,
//     the address is the first 20 bytes verbatim ("embedded" form, used to
//     preserve a pre-existing EVM address encoded into the key slot).
//  2. otherwise, the address is the last 20 bytes of keccak256(key).
type Address [AddressSize]byte

// ZeroAddress is the all-zero address.
var ZeroAddress = Address{}

// String returns the hex encoding of the address, prefixed with 0x.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// AddressFromHex parses a hex string (with or without 0x prefix) into an Address.
func AddressFromHex(s string) (Address, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, err
	}
	var a Address
	if len(b) != AddressSize {
		return Address{}, hex.ErrLength
	}
	copy(a[:], b)
	return a, nil
}

// DeriveAddress implements the two-rule address derivation from a 32-byte
// public key described by the data model. Every signature-verifying path
// (secp256k1 recovery and the Ed25519 native encoding) must use this
// function so both produce addresses under the same rule set.
func DeriveAddress(pubKey [32]byte) Address {
	last12Zero := true
	for _, b := range pubKey[20:] {
		if b != 0 {
			last12Zero = false
			break
		}
	}
	first20NonZero := false
	for _, b := range pubKey[:20] {
		if b != 0 {
			first20NonZero = true
			break
		}
	}
	if last12Zero && first20NonZero {
		var a Address
		copy(a[:], pubKey[:20])
		return a
	}

	h := Keccak256(pubKey[:])
	var a Address
	copy(a[:], h[12:])
	return a
}
