package primitives

import (
	"crypto/ed25519"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"
)

// SigAlgorithm identifies which signature scheme signed a transaction.
type SigAlgorithm byte

const (
	// SigSecp256k1 signatures carry an explicit recovery/parity bit and
	// recover the signer's public key, the scheme used by legacy,
	// access-list and dynamic-fee transactions.
	SigSecp256k1 SigAlgorithm = iota
	// SigEd25519 is the alternative native encoding accepted for
	// interoperability; the public key travels alongside the signature
	// since Ed25519 has no recovery.
	SigEd25519
)

// Signature is the witness data attached to a transaction.
type Signature struct {
	Algorithm SigAlgorithm
	// R, S, V are populated for SigSecp256k1; V is the recovery id
	// (yParity for typed transactions).
	R, S [32]byte
	V    byte
	// PubKey is populated for SigEd25519 (32 bytes) since there is no
	// recovery step; Sig holds the 64-byte Ed25519 signature.
	PubKey [32]byte
	Sig    [64]byte
}

// SignSecp256k1 produces a secp256k1 signature with explicit recovery id over hash
// using the given private key.
func SignSecp256k1(priv *secp256k1.PrivateKey, hash Hash) (Signature, error) {
	sig, err := ecdsa.SignCompact(priv, hash[:], false)
	if err != nil {
		return Signature{}, errors.Wrap(err, "secp256k1 sign")
	}
	// SignCompact's output is [recoveryID+27, R(32), S(32)].
	var s Signature
	s.Algorithm = SigSecp256k1
	s.V = sig[0] - 27
	copy(s.R[:], sig[1:33])
	copy(s.S[:], sig[33:65])
	return s, nil
}

// RecoverSecp256k1 recovers the 32-byte padded public key (x-only, Y
// dropped per the data model's 32-byte key convention) and the derived
// Address from a secp256k1 signature over hash.
func RecoverSecp256k1(sig Signature, hash Hash) (pubKey [32]byte, addr Address, err error) {
	compact := make([]byte, 65)
	compact[0] = sig.V + 27
	copy(compact[1:33], sig.R[:])
	copy(compact[33:65], sig.S[:])

	pub, _, err := ecdsa.RecoverCompact(compact, hash[:])
	if err != nil {
		return pubKey, addr, errors.Wrap(err, "secp256k1 recover")
	}

	serialized := pub.SerializeUncompressed() // 0x04 || X(32) || Y(32)
	copy(pubKey[:], serialized[1:33])
	addr = DeriveAddress(pubKey)
	return pubKey, addr, nil
}

// SignEd25519 signs hash with the given Ed25519 private key, for the
// alternative native encoding named in the external interfaces.
func SignEd25519(priv ed25519.PrivateKey, hash Hash) Signature {
	var s Signature
	s.Algorithm = SigEd25519
	copy(s.PubKey[:], priv.Public().(ed25519.PublicKey))
	sig := ed25519.Sign(priv, hash[:])
	copy(s.Sig[:], sig)
	return s
}

// RecoverEd25519 verifies an Ed25519 signature over hash and derives the
// signer's Address from the embedded public key.
func RecoverEd25519(sig Signature, hash Hash) (addr Address, err error) {
	if !ed25519.Verify(ed25519.PublicKey(sig.PubKey[:]), hash[:], sig.Sig[:]) {
		return Address{}, errors.New("ed25519 signature verification failed")
	}
	return DeriveAddress(sig.PubKey), nil
}

// Recover dispatches on sig.Algorithm and returns the recovered sender
// address. This is the single entry point every signature-verifying path
// in the executor, mempool and block validator must use.
func Recover(sig Signature, hash Hash) (Address, error) {
	switch sig.Algorithm {
	case SigSecp256k1:
		_, addr, err := RecoverSecp256k1(sig, hash)
		return addr, err
	case SigEd25519:
		return RecoverEd25519(sig, hash)
	default:
		return Address{}, errors.Errorf("unknown signature algorithm %d", sig.Algorithm)
	}
}
