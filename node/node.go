// Package node exposes dagchaind's external interface surface as a plain
// Go API: the RPC-equivalent request surface of spec.md §6, with no
// transport attached. Grounded on the teacher's domain/consensus.go thin
// facade (one-line delegating methods over an underlying engine), adapted
// from a UTXO chain's block/UTXO queries to an account chain's
// block/receipt/balance/nonce/gas queries. A JSON-RPC or gRPC layer wraps
// this surface out of scope, exactly as spec.md frames it.
package node

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/dagchaind/dagchaind/consensus"
	"github.com/dagchaind/dagchaind/errs"
	"github.com/dagchaind/dagchaind/primitives"
)

// BlockTag selects which account/nonce view get_balance/get_nonce reads
// from, per spec.md §6 ("Pending consults the mempool per §4.6").
type BlockTag int

const (
	// Latest reads the committed state of the selected chain's tip.
	Latest BlockTag = iota
	// Pending additionally accounts for the sender's queued mempool nonce.
	Pending
)

// DefaultGasEstimateBufferPct is the percentage estimate_gas adds on top
// of the dry-run's measured gas, per spec.md §6's documented default.
const DefaultGasEstimateBufferPct = 10

// Node is the library-level handle an embedding application (CLI,
// JSON-RPC server, wallet backend) drives. It owns no transport; every
// method here is the direct Go equivalent of one spec.md §6 request.
type Node struct {
	consensus *consensus.Consensus
}

// New wraps an already-constructed Consensus engine as a Node.
func New(c *consensus.Consensus) *Node {
	return &Node{consensus: c}
}

// SubmitRawTransaction decodes raw (legacy RLP or a typed envelope, told
// apart by primitives.DecodeTransaction on its first byte; signed with
// secp256k1 or native Ed25519) and admits it to the mempool, returning its
// hash.
func (n *Node) SubmitRawTransaction(raw []byte) (primitives.Hash, error) {
	tx, err := primitives.DecodeTransaction(raw)
	if err != nil {
		return primitives.Hash{}, errs.NewTransactionInvalidError(errs.TransactionInvalidEncoding, "%s", err)
	}
	now := uint64(time.Now().Unix())
	if err := n.consensus.Mempool().Add(tx, now); err != nil {
		return primitives.Hash{}, err
	}
	return tx.Hash, nil
}

// GetBlockByHash returns the block stored under hash, or ok=false if
// unknown.
func (n *Node) GetBlockByHash(hash primitives.Hash) (*primitives.Block, bool, error) {
	return n.consensus.BlockByHash(hash)
}

// GetBlockByHeight returns every block recorded at height. A DAG may carry
// more than one block per height before GhostDAG orders them onto (or off
// of) the selected chain.
func (n *Node) GetBlockByHeight(height uint64) ([]*primitives.Block, error) {
	return n.consensus.BlockByHeight(height)
}

// GetTransactionReceipt returns the receipt for txHash, or ok=false if that
// transaction was never included in a block on the selected chain.
func (n *Node) GetTransactionReceipt(txHash primitives.Hash) (*primitives.Receipt, bool, error) {
	return n.consensus.Receipt(txHash)
}

// GetBalance returns addr's balance as of tag. Balance carries no distinct
// "pending" notion (unlike nonce, no in-flight mempool transaction changes
// a balance until it executes), so tag is accepted for API symmetry with
// GetNonce and currently always reads committed state.
func (n *Node) GetBalance(addr primitives.Address, _ BlockTag) (*uint256.Int, error) {
	return n.consensus.LatestState().BalanceOf(addr)
}

// GetNonce returns addr's next usable nonce as of tag. Pending folds in
// the mempool's contiguous queued-nonce run for addr, per spec.md §4.6.
func (n *Node) GetNonce(addr primitives.Address, tag BlockTag) (uint64, error) {
	if tag == Pending {
		return n.consensus.Mempool().PendingNonce(addr)
	}
	st := n.consensus.LatestState()
	return st.NonceOf(addr)
}

// EstimateGas dry-runs call against a throwaway copy of the latest
// committed state and returns the measured gas plus
// DefaultGasEstimateBufferPct percent.
func (n *Node) EstimateGas(call *primitives.Transaction) (uint64, error) {
	return n.consensus.EstimateGas(call, DefaultGasEstimateBufferPct)
}

// ChainID returns the chain ID signed transactions on this node must
// match.
func (n *Node) ChainID() uint64 {
	cfg := n.consensus.Config()
	if cfg.Executor.ChainID == nil {
		return 0
	}
	return cfg.Executor.ChainID.Uint64()
}

// BlockNumber returns the selected tip's height.
func (n *Node) BlockNumber() (uint64, error) {
	tip := n.consensus.SelectedTip()
	block, ok, err := n.consensus.BlockByHash(tip)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.Errorf("node: selected tip %s missing from block store", tip)
	}
	return block.Height, nil
}

// GetMempoolSnapshot returns every transaction currently pooled, in no
// particular order -- a point-in-time snapshot per spec.md §5's "select_for
// block takes a snapshot" concurrency note.
func (n *Node) GetMempoolSnapshot() []*primitives.Transaction {
	return n.consensus.Mempool().Snapshot()
}
