package primitives

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/dagchaind/dagchaind/primitives/rlp"
)

// TxType identifies a transaction's envelope, dispatched on an explicit
// first byte rather than through reflection (see design notes §9).
type TxType byte

const (
	// TxLegacy transactions have no envelope byte; they are plain RLP.
	TxLegacy TxType = 0x00
	// TxAccessList is envelope type 0x01 (EIP-2930 shaped).
	TxAccessList TxType = 0x01
	// TxDynamicFee is envelope type 0x02 (EIP-1559 shaped).
	TxDynamicFee TxType = 0x02
)

// MinGasLimit is the minimum gas_limit accepted for any transaction.
const MinGasLimit = 21000

// AccessTuple is one entry of an EIP-2930-style access list.
type AccessTuple struct {
	Address     Address
	StorageKeys []Hash
}

// Transaction is the canonical, signed transaction type shared by the
// mempool, executor and block builder/validator.
type Transaction struct {
	Hash     Hash
	Nonce    uint64
	From     Address
	To       *Address // nil means contract creation
	Value    *uint256.Int
	GasLimit uint64
	GasPrice *uint256.Int
	Data     []byte
	Sig      Signature
	Type     TxType

	// DynamicFee-only fields; nil/zero for other types.
	MaxFeePerGas         *uint256.Int
	MaxPriorityFeePerGas *uint256.Int

	// AccessList-only field; nil for other types.
	AccessList []AccessTuple

	// ChainID is nil when the transaction does not carry one (legacy,
	// pre-EIP-155 style); typed transactions always carry it.
	ChainID *uint256.Int
}

// EffectiveGasPrice returns MaxFeePerGas for a dynamic-fee transaction
// that sets it, and GasPrice otherwise. No block context is consulted.
func (t *Transaction) EffectiveGasPrice() *uint256.Int {
	if t.Type != TxDynamicFee {
		return t.GasPrice
	}
	if t.MaxFeePerGas != nil {
		return t.MaxFeePerGas
	}
	return t.GasPrice
}

// Validate checks the structural invariants from the data model that do
// not require chain state: gas_limit >= 21000 and value/gas_price set.
// The sender is not recovered here; callers do that through Recover.
func (t *Transaction) Validate() error {
	if t.GasLimit < MinGasLimit {
		return errors.Errorf("gas_limit %d below minimum %d", t.GasLimit, MinGasLimit)
	}
	if t.Value == nil || t.GasPrice == nil {
		return errors.New("value and gas_price must be set")
	}
	return nil
}

// encodingPayload returns the RLP-style encoding of every field except the
// signature; this is what both the tx hash and the signing digest are
// computed over.
func (t *Transaction) encodingPayload() []byte {
	e := rlp.NewEncoder()
	e.WriteBytes([]byte{byte(t.Type)})
	e.WriteUint64(t.Nonce)
	e.WriteBytes(t.From[:])
	if t.To != nil {
		e.WriteBytes(t.To[:])
	} else {
		e.WriteBytes(nil)
	}
	e.WriteBytes(u256Bytes(t.Value))
	e.WriteUint64(t.GasLimit)
	e.WriteBytes(u256Bytes(t.GasPrice))
	e.WriteBytes(t.Data)
	if t.ChainID != nil {
		e.WriteBytes(u256Bytes(t.ChainID))
	} else {
		e.WriteBytes(nil)
	}
	if t.Type == TxDynamicFee {
		e.WriteBytes(u256Bytes(t.MaxFeePerGas))
		e.WriteBytes(u256Bytes(t.MaxPriorityFeePerGas))
	}
	if t.Type == TxAccessList {
		e.WriteUint64(uint64(len(t.AccessList)))
		for _, at := range t.AccessList {
			e.WriteBytes(at.Address[:])
			e.WriteUint64(uint64(len(at.StorageKeys)))
			for _, k := range at.StorageKeys {
				e.WriteBytes(k[:])
			}
		}
	}
	return e.Bytes()
}

// ComputeHash computes the deterministic transaction hash over the
// canonical encoding, excluding the signature, per the data model.
func (t *Transaction) ComputeHash() Hash {
	return Keccak256(t.encodingPayload())
}

func u256Bytes(v *uint256.Int) []byte {
	if v == nil {
		return nil
	}
	b := v.Bytes32()
	return b[:]
}

func u256FromBytes(b []byte) *uint256.Int {
	v := new(uint256.Int)
	if len(b) == 0 {
		return v
	}
	var padded [32]byte
	copy(padded[32-len(b):], b)
	return v.SetBytes32(padded[:])
}
