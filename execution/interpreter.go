package execution

import (
	"github.com/holiman/uint256"

	"github.com/dagchaind/dagchaind/primitives"
)

// BlockContext is the subset of a block the executor makes visible to
// every transaction and interpreter invocation within it.
type BlockContext struct {
	BlockHash primitives.Hash
	Height    uint64
	BlueScore uint64
	Timestamp uint64
	Proposer  primitives.Address
}

// CallContext is the per-call context an Interpreter receives, matching
// the data model's {from, to, value, gas_remaining, block_context} shape.
type CallContext struct {
	From         primitives.Address
	To           primitives.Address
	Value        *uint256.Int
	Data         []byte
	GasRemaining uint64
	Block        BlockContext
}

// Interpreter executes a contract call's code against input and returns
// the leftover gas. Swappable per spec.md's "pluggable per-transaction
// interpreter" non-goal; this package ships only a deterministic built-in
// transfer-only implementation since no VM is defined here.
type Interpreter interface {
	Run(ctx CallContext, code, input []byte, gas uint64) (ret []byte, gasLeft uint64, err error)
}

// NoOpInterpreter is the default Interpreter: it performs no computation
// and returns all gas unspent, since value transfer and contract-code
// installation are handled directly by the Executor. Determinism (no
// wall clock, randomness or I/O) is trivially satisfied.
type NoOpInterpreter struct{}

// Run implements Interpreter.
func (NoOpInterpreter) Run(_ CallContext, _, _ []byte, gas uint64) ([]byte, uint64, error) {
	return nil, gas, nil
}
