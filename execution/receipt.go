package execution

import (
	"github.com/dagchaind/dagchaind/primitives"
	"github.com/dagchaind/dagchaind/primitives/rlp"
)

// Receipt, Log and ReceiptStatus alias the data model's canonical types
// (primitives.Receipt and friends) rather than redeclaring them, so a
// block builder/validator can feed an Executor's output straight into
// primitives.ReceiptRoot without a conversion step.
type (
	Receipt       = primitives.Receipt
	Log           = primitives.Log
	ReceiptStatus = primitives.ReceiptStatus
)

const (
	ReceiptSuccess  = primitives.ReceiptSuccess
	ReceiptReverted = primitives.ReceiptReverted
)

// EncodeReceipt serialises a receipt for persistence in storage.CFReceipts.
func EncodeReceipt(r *Receipt) []byte {
	e := rlp.NewEncoder()
	e.WriteBytes(r.TxHash[:])
	e.WriteBytes([]byte{byte(r.Status)})
	e.WriteUint64(r.GasUsed)
	e.WriteUint64(uint64(len(r.Logs)))
	for _, l := range r.Logs {
		e.WriteBytes(l.Address[:])
		e.WriteUint64(uint64(len(l.Topics)))
		for _, t := range l.Topics {
			e.WriteBytes(t[:])
		}
		e.WriteBytes(l.Data)
	}
	if r.ContractAddress != nil {
		e.WriteBytes(r.ContractAddress[:])
	} else {
		e.WriteBytes(nil)
	}
	return e.Bytes()
}

// DecodeReceipt parses a receipt previously produced by EncodeReceipt.
func DecodeReceipt(raw []byte) (*Receipt, error) {
	d := rlp.NewDecoder(raw)
	r := &Receipt{}

	txHashBytes, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	r.TxHash, _ = primitives.HashFromSlice(txHashBytes)

	statusBytes, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	if len(statusBytes) == 1 {
		r.Status = ReceiptStatus(statusBytes[0])
	}

	if r.GasUsed, err = d.ReadUint64(); err != nil {
		return nil, err
	}

	logCount, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < logCount; i++ {
		var l Log
		addrBytes, err := d.ReadBytes()
		if err != nil {
			return nil, err
		}
		copy(l.Address[:], addrBytes)

		topicCount, err := d.ReadUint64()
		if err != nil {
			return nil, err
		}
		for j := uint64(0); j < topicCount; j++ {
			tb, err := d.ReadBytes()
			if err != nil {
				return nil, err
			}
			h, _ := primitives.HashFromSlice(tb)
			l.Topics = append(l.Topics, h)
		}

		if l.Data, err = d.ReadBytes(); err != nil {
			return nil, err
		}
		l.Data = append([]byte(nil), l.Data...)
		r.Logs = append(r.Logs, l)
	}

	contractBytes, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	if len(contractBytes) == primitives.AddressSize {
		var addr primitives.Address
		copy(addr[:], contractBytes)
		r.ContractAddress = &addr
	}

	return r, nil
}
