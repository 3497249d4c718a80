package primitives

import "github.com/holiman/uint256"

// Account is the per-address state record. Storage is addressed
// per-account via a separate keyed mapping (see storage column family
// "storage"); StorageRoot is the Merkle root over that account's slots.
type Account struct {
	Nonce       uint64
	Balance     *uint256.Int
	CodeHash    Hash
	StorageRoot Hash
}

// NewAccount returns a freshly created account: nonce 0, zero balance, no
// code, empty storage root.
func NewAccount() *Account {
	return &Account{Balance: uint256.NewInt(0)}
}

// Clone returns a deep copy of the account, for snapshot/rollback use.
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

// Encode serializes the account with a leading version byte, per the
// storage layout's forward-compatibility requirement.
func (a *Account) Encode() []byte {
	const version = 1
	out := make([]byte, 0, 1+8+32+32+32)
	out = append(out, version)
	var nonceBuf [8]byte
	for i := 0; i < 8; i++ {
		nonceBuf[i] = byte(a.Nonce >> (8 * (7 - i)))
	}
	out = append(out, nonceBuf[:]...)
	bal := a.Balance.Bytes32()
	out = append(out, bal[:]...)
	out = append(out, a.CodeHash[:]...)
	out = append(out, a.StorageRoot[:]...)
	return out
}

// DecodeAccount parses bytes produced by Account.Encode.
func DecodeAccount(b []byte) (*Account, error) {
	if len(b) != 1+8+32+32+32 {
		return nil, errBadAccountEncoding
	}
	if b[0] != 1 {
		return nil, errUnsupportedAccountVersion
	}
	a := &Account{}
	var nonce uint64
	for i := 0; i < 8; i++ {
		nonce = nonce<<8 | uint64(b[1+i])
	}
	a.Nonce = nonce
	var balBytes [32]byte
	copy(balBytes[:], b[9:41])
	a.Balance = new(uint256.Int).SetBytes32(balBytes[:])
	copy(a.CodeHash[:], b[41:73])
	copy(a.StorageRoot[:], b[73:105])
	return a, nil
}

var (
	errBadAccountEncoding        = encodingError("malformed account encoding")
	errUnsupportedAccountVersion = encodingError("unsupported account encoding version")
)

type encodingError string

func (e encodingError) Error() string { return string(e) }
