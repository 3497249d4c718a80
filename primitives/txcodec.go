package primitives

import (
	"github.com/pkg/errors"

	"github.com/dagchaind/dagchaind/primitives/rlp"
)

// EncodeTransaction serializes a transaction for wire transmission and
// storage: encodingPayload() followed by the signature fields, written as a
// flat sequence of RLP-style byte-string items (no list item). Legacy transactions are emitted as bare RLP; typed transactions
// (AccessList, DynamicFee) are prefixed with their type byte per the
// external-interface encoding rules ("first byte identifies type").
func EncodeTransaction(t *Transaction) []byte {
	e := rlp.NewEncoder()
	payload := t.encodingPayload()
	e.WriteBytes(payload)
	e.WriteBytes([]byte{byte(t.Sig.Algorithm)})
	e.WriteBytes(t.Sig.R[:])
	e.WriteBytes(t.Sig.S[:])
	e.WriteBytes([]byte{t.Sig.V})
	e.WriteBytes(t.Sig.PubKey[:])
	e.WriteBytes(t.Sig.Sig[:])
	body := e.Bytes()

	if t.Type == TxLegacy {
		return body
	}
	return append([]byte{byte(t.Type)}, body...)
}

// DecodeTransaction parses bytes produced by EncodeTransaction (or an
// equivalent legacy RLP / typed-envelope encoding per §6), dispatching on
// the first byte: 0x01 = access-list, 0x02 = dynamic-fee, anything else is
// treated as bare legacy RLP. from/hash are recovered and recomputed
// rather than trusted from the wire.
func DecodeTransaction(raw []byte) (*Transaction, error) {
	if len(raw) == 0 {
		return nil, errors.New("rlp: empty transaction")
	}

	txType := TxLegacy
	body := raw
	switch raw[0] {
	case byte(TxAccessList):
		txType = TxAccessList
		body = raw[1:]
	case byte(TxDynamicFee):
		txType = TxDynamicFee
		body = raw[1:]
	}

	d := rlp.NewDecoder(body)
	payload, err := d.ReadBytes()
	if err != nil {
		return nil, errors.Wrap(err, "rlp: decode payload")
	}

	t, err := decodePayload(txType, payload)
	if err != nil {
		return nil, err
	}

	algo, err := d.ReadBytes()
	if err != nil {
		return nil, errors.Wrap(err, "rlp: decode sig algorithm")
	}
	if len(algo) != 1 {
		return nil, errors.New("rlp: malformed signature algorithm")
	}
	t.Sig.Algorithm = SigAlgorithm(algo[0])

	r, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	s, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	v, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	pub, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	sig, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	copy(t.Sig.R[:], r)
	copy(t.Sig.S[:], s)
	if len(v) == 1 {
		t.Sig.V = v[0]
	}
	copy(t.Sig.PubKey[:], pub)
	copy(t.Sig.Sig[:], sig)

	from, err := Recover(t.Sig, Keccak256(payload))
	if err != nil {
		return nil, errors.Wrap(err, "rlp: recover sender")
	}
	t.From = from
	t.Hash = t.ComputeHash()
	return t, nil
}

func decodePayload(txType TxType, payload []byte) (*Transaction, error) {
	d := rlp.NewDecoder(payload)
	typeByte, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	if len(typeByte) != 1 || TxType(typeByte[0]) != txType {
		return nil, errors.New("rlp: transaction type mismatch between envelope and payload")
	}

	t := &Transaction{Type: txType}

	t.Nonce, err = d.ReadUint64()
	if err != nil {
		return nil, err
	}
	fromB, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	copy(t.From[:], fromB)

	toB, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	if len(toB) == AddressSize {
		var to Address
		copy(to[:], toB)
		t.To = &to
	}

	valB, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	t.Value = u256FromBytes(valB)

	t.GasLimit, err = d.ReadUint64()
	if err != nil {
		return nil, err
	}

	gpB, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	t.GasPrice = u256FromBytes(gpB)

	t.Data, err = d.ReadBytes()
	if err != nil {
		return nil, err
	}

	chainIDB, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	if len(chainIDB) > 0 {
		t.ChainID = u256FromBytes(chainIDB)
	}

	if txType == TxDynamicFee {
		maxFeeB, err := d.ReadBytes()
		if err != nil {
			return nil, err
		}
		t.MaxFeePerGas = u256FromBytes(maxFeeB)

		maxPrioB, err := d.ReadBytes()
		if err != nil {
			return nil, err
		}
		t.MaxPriorityFeePerGas = u256FromBytes(maxPrioB)
	}

	if txType == TxAccessList {
		count, err := d.ReadUint64()
		if err != nil {
			return nil, err
		}
		t.AccessList = make([]AccessTuple, 0, count)
		for i := uint64(0); i < count; i++ {
			addrB, err := d.ReadBytes()
			if err != nil {
				return nil, err
			}
			var at AccessTuple
			copy(at.Address[:], addrB)
			keyCount, err := d.ReadUint64()
			if err != nil {
				return nil, err
			}
			for j := uint64(0); j < keyCount; j++ {
				keyB, err := d.ReadBytes()
				if err != nil {
					return nil, err
				}
				h, _ := HashFromSlice(keyB)
				at.StorageKeys = append(at.StorageKeys, h)
			}
			t.AccessList = append(t.AccessList, at)
		}
	}

	return t, nil
}
