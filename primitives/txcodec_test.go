package primitives

import (
	"crypto/rand"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/holiman/uint256"
)

func newSignedTx(t *testing.T, nonce uint64, txType TxType) *Transaction {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %s", err)
	}

	to := Address{1, 2, 3}
	tx := &Transaction{
		Nonce:    nonce,
		To:       &to,
		Value:    uint256.NewInt(10),
		GasLimit: 21000,
		GasPrice: uint256.NewInt(1),
		Type:     txType,
		ChainID:  uint256.NewInt(7),
	}
	if txType == TxDynamicFee {
		tx.MaxFeePerGas = uint256.NewInt(5)
		tx.MaxPriorityFeePerGas = uint256.NewInt(1)
	}
	if txType == TxAccessList {
		tx.AccessList = []AccessTuple{{Address: to, StorageKeys: []Hash{{1}}}}
	}

	// From must match the key that will sign, so set it from the derived
	// address before computing the signing digest.
	pub := priv.PubKey().SerializeUncompressed()
	var pk32 [32]byte
	copy(pk32[:], pub[1:33])
	tx.From = DeriveAddress(pk32)

	digest := Keccak256(tx.encodingPayload())
	sig, err := SignSecp256k1(priv, digest)
	if err != nil {
		t.Fatalf("sign: %s", err)
	}
	tx.Sig = sig
	tx.Hash = tx.ComputeHash()
	return tx
}

func TestDecodeTransactionRoundTrip(t *testing.T) {
	for _, txType := range []TxType{TxLegacy, TxAccessList, TxDynamicFee} {
		tx := newSignedTx(t, 3, txType)
		encoded := EncodeTransaction(tx)

		decoded, err := DecodeTransaction(encoded)
		if err != nil {
			t.Fatalf("decode %v: %s", txType, err)
		}

		if decoded.Hash != tx.Hash {
			t.Fatalf("hash mismatch for %v:\n%s\nvs\n%s", txType, spew.Sdump(decoded), spew.Sdump(tx))
		}
		if decoded.From != tx.From {
			t.Fatalf("sender mismatch for %v: got %s want %s", txType, decoded.From, tx.From)
		}
		if decoded.Nonce != tx.Nonce || decoded.GasLimit != tx.GasLimit {
			t.Fatalf("field mismatch for %v", txType)
		}
	}
}

func TestDecodeTransactionRejectsCorruptedTag(t *testing.T) {
	tx := newSignedTx(t, 1, TxLegacy)
	encoded := EncodeTransaction(tx)
	encoded[0] ^= 0xFF // corrupt the leading RLP tag byte of the payload item

	if _, err := DecodeTransaction(encoded); err == nil {
		t.Fatal("expected decode of a transaction with a corrupted tag byte to fail")
	}
}

func TestDeriveAddressEmbeddedForm(t *testing.T) {
	var key [32]byte
	copy(key[:20], []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20})
	addr := DeriveAddress(key)
	var want Address
	copy(want[:], key[:20])
	if addr != want {
		t.Fatalf("embedded derivation mismatch: got %s want %s", addr, want)
	}
}

func TestDeriveAddressHashedForm(t *testing.T) {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		t.Fatal(err)
	}
	// Ensure we are not accidentally in the embedded form.
	key[31] = 1
	addr := DeriveAddress(key)
	h := Keccak256(key[:])
	var want Address
	copy(want[:], h[12:])
	if addr != want {
		t.Fatalf("hashed derivation mismatch: got %s want %s", addr, want)
	}
}
