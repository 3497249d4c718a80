package primitives

// ReceiptStatus is the outcome of executing a transaction.
type ReceiptStatus byte

const (
	ReceiptSuccess ReceiptStatus = iota
	ReceiptReverted
)

// Log is a single event emitted by a contract during execution.
type Log struct {
	Address Address
	Topics  []Hash
	Data    []byte
}

// Receipt records the outcome of including one transaction in a block.
type Receipt struct {
	TxHash          Hash
	Status          ReceiptStatus
	GasUsed         uint64
	Logs            []Log
	ContractAddress *Address
}

// ComputeHash hashes the receipt for inclusion in a block's receipt_root,
// covering status, gas used, logs and any created contract address.
func (r *Receipt) ComputeHash() Hash {
	parts := [][]byte{r.TxHash[:], {byte(r.Status)}, uint64Bytes(r.GasUsed)}
	for _, l := range r.Logs {
		parts = append(parts, l.Address[:])
		for _, t := range l.Topics {
			parts = append(parts, t[:])
		}
		parts = append(parts, l.Data)
	}
	if r.ContractAddress != nil {
		parts = append(parts, r.ContractAddress[:])
	}
	return Keccak256(parts...)
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * (7 - i)))
	}
	return b
}

// ReceiptRoot computes the block-level receipt_root: the keccak of the
// concatenation of the ordered per-receipt hashes.
func ReceiptRoot(receipts []*Receipt) Hash {
	parts := make([][]byte, len(receipts))
	for i, r := range receipts {
		h := r.ComputeHash()
		parts[i] = h[:]
	}
	return Keccak256(parts...)
}

// TxRoot computes the block-level tx_root: the keccak of the concatenation
// of the ordered transaction hashes.
func TxRoot(txs []*Transaction) Hash {
	parts := make([][]byte, len(txs))
	for i, t := range txs {
		parts[i] = t.Hash[:]
	}
	return Keccak256(parts...)
}
