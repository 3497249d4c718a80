// Package state implements the account/storage view transactions execute
// against: a primitives.Address-keyed account map and per-account
// key/value storage, persisted through C2's accounts/storage column
// families with an in-memory journal for per-transaction revert. There is
// no teacher analogue (kaspad is UTXO-only); the shape is grounded on the
// go-ethereum-lineage StateDB/journal pattern visible throughout
// other_examples' state_processor family, expressed in the teacher's own
// staging/commit idiom (consensus/datastructures).
package state

import (
	"github.com/holiman/uint256"

	"github.com/dagchaind/dagchaind/primitives"
	"github.com/dagchaind/dagchaind/primitives/rlp"
)

// Account is the per-address record from the data model: nonce, balance,
// a reference to contract code (zero hash for externally-owned accounts),
// and the root of this account's storage map.
type Account struct {
	Nonce       uint64
	Balance     *uint256.Int
	CodeHash    primitives.Hash
	StorageRoot primitives.Hash
}

// NewAccount returns a freshly created account with zero nonce/balance.
func NewAccount() *Account {
	return &Account{Balance: uint256.NewInt(0)}
}

// Clone returns a deep copy, since the dirty cache must never hand out an
// alias a caller could mutate behind the journal's back.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	return &Account{
		Nonce:       a.Nonce,
		Balance:     new(uint256.Int).Set(a.Balance),
		CodeHash:    a.CodeHash,
		StorageRoot: a.StorageRoot,
	}
}

// IsContract reports whether the account has associated code.
func (a *Account) IsContract() bool {
	return !a.CodeHash.IsZero()
}

func encodeAccount(a *Account) []byte {
	e := rlp.NewEncoder()
	e.WriteUint64(a.Nonce)
	balance := a.Balance
	if balance == nil {
		balance = uint256.NewInt(0)
	}
	e.WriteBytes(balance.Bytes())
	e.WriteBytes(a.CodeHash[:])
	e.WriteBytes(a.StorageRoot[:])
	return e.Bytes()
}

func decodeAccount(raw []byte) (*Account, error) {
	d := rlp.NewDecoder(raw)
	a := &Account{}

	nonce, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	a.Nonce = nonce

	balanceBytes, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	a.Balance = new(uint256.Int).SetBytes(balanceBytes)

	codeHashBytes, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	a.CodeHash, _ = primitives.HashFromSlice(codeHashBytes)

	storageRootBytes, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	a.StorageRoot, _ = primitives.HashFromSlice(storageRootBytes)

	return a, nil
}
