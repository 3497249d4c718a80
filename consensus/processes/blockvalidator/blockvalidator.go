// Package blockvalidator validates a block per spec.md §4.8's four
// validation steps: structural checks, signature verification, GhostDAG
// re-classification against the recorded blue_score, and re-execution of
// the block's own transactions against its selected parent's state to
// check state_root/tx_root/receipt_root. Grounded on the teacher's
// domain/consensus/processes/blockvalidator (block_header_in_isolation.go's
// checkParentsLimit/checkBlockParentsOrder shape for the structural pass;
// blockvalidator.go's New(...) multi-manager constructor style), adapted
// from UTXO/proof-of-work checks to the account-based, signed-header model.
package blockvalidator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/dagchaind/dagchaind/consensus/model"
	"github.com/dagchaind/dagchaind/errs"
	"github.com/dagchaind/dagchaind/execution"
	"github.com/dagchaind/dagchaind/execution/state"
	"github.com/dagchaind/dagchaind/primitives"
)

// MaxFutureDriftSecs bounds how far a block's timestamp may sit ahead of
// the validator's own clock before it is rejected.
const MaxFutureDriftSecs = 120

// DefaultValidationBudget is the wall-clock ceiling re-execution may run
// for before a block is rejected with BlockInvalidValidationTimeout, per
// spec.md §5's "block validation budget (default 5s per block)".
const DefaultValidationBudget = 5 * time.Second

// Validator runs the stateless and stateful checks a received (or locally
// built) block must pass before it is committed.
type Validator struct {
	executor *execution.Executor
}

// New builds a Validator running re-execution through executor.
func New(executor *execution.Executor) *Validator {
	return &Validator{executor: executor}
}

// ValidateStructure checks everything answerable without consulting chain
// state: parent-count bound, a non-zero selected parent unless this is
// truly a genesis block, and the timestamp is not implausibly far in the
// future. Mirrors the teacher's checkParentsLimit/ValidateHeaderInIsolation
// pass.
func ValidateStructure(block *primitives.Block, params model.GhostdagParams, nowSecs uint64) error {
	isGenesis := block.SelectedParent.IsZero() && len(block.MergeParents) == 0
	if !isGenesis && block.SelectedParent.IsZero() {
		return errs.NewBlockInvalidError(errs.BlockInvalidStructure, "non-genesis block has no selected parent")
	}
	parentCount := len(block.MergeParents)
	if !block.SelectedParent.IsZero() {
		parentCount++
	}
	if uint32(parentCount) > params.MaxParents {
		return errs.NewBlockInvalidError(errs.BlockInvalidTooManyParents, "block has %d parents, max is %d", parentCount, params.MaxParents)
	}
	if block.Timestamp > nowSecs+MaxFutureDriftSecs {
		return errs.NewBlockInvalidError(errs.BlockInvalidTimestamp, "block timestamp %d is more than %ds ahead of now (%d)", block.Timestamp, MaxFutureDriftSecs, nowSecs)
	}
	for _, tx := range block.Transactions {
		if err := tx.Validate(); err != nil {
			return errs.NewBlockInvalidError(errs.BlockInvalidStructure, "transaction %s: %s", tx.Hash, err)
		}
	}
	return nil
}

// ValidateTimestampAgainstParent rejects block unless its timestamp
// strictly increases over selectedParent's, per spec.md §3's "timestamp
// strictly increases along any selected-parent chain" invariant.
func ValidateTimestampAgainstParent(block, selectedParent *primitives.Block) error {
	if block.Timestamp <= selectedParent.Timestamp {
		return errs.NewBlockInvalidError(errs.BlockInvalidTimestamp, "block timestamp %d does not strictly increase over selected parent %s's timestamp %d", block.Timestamp, selectedParent.Hash(), selectedParent.Timestamp)
	}
	return nil
}

// VerifySignature recovers the block's proposer address from its
// signature and checks it matches the address derived from the header's
// ProposerPubKey.
func VerifySignature(block *primitives.Block) (primitives.Address, error) {
	recovered, err := primitives.Recover(block.Signature, block.SigningDigest())
	if err != nil {
		return primitives.Address{}, errs.NewBlockInvalidError(errs.BlockInvalidSignature, "recover proposer: %s", err)
	}
	claimed := primitives.DeriveAddress(block.ProposerPubKey)
	if recovered != claimed {
		return primitives.Address{}, errs.NewBlockInvalidError(errs.BlockInvalidSignature, "signature recovers to %s, header claims proposer %s", recovered, claimed)
	}
	return claimed, nil
}

// CheckBlueScore verifies the GhostDAG classification just computed for
// this block (by the caller, ahead of staging it) matches what the block
// itself claims.
func CheckBlueScore(block *primitives.Block, classified *model.BlockGHOSTDAGData) error {
	if block.BlueScore != classified.BlueScore {
		return errs.NewBlockInvalidError(errs.BlockInvalidBlueScoreMismatch, "block claims blue_score %d, classification computed %d", block.BlueScore, classified.BlueScore)
	}
	return nil
}

// ExecuteAndCheckRoots runs executeAndCheckRoots under ctx, rejecting the
// block with BlockInvalidValidationTimeout if it does not finish before
// ctx is done. Re-execution runs on its own goroutine via errgroup so the
// budget is enforced even though execution itself has no cancellation
// points -- the caller abandons a slow block rather than blocking on it,
// per spec.md §5's per-block validation budget.
func (v *Validator) ExecuteAndCheckRoots(ctx context.Context, st *state.StateDB, block *primitives.Block, proposer primitives.Address) ([]*primitives.Receipt, uint64, error) {
	type outcome struct {
		receipts []*primitives.Receipt
		gasUsed  uint64
		err      error
	}
	result := make(chan outcome, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		receipts, gasUsed, err := v.executeAndCheckRoots(st, block, proposer)
		select {
		case result <- outcome{receipts, gasUsed, err}:
		case <-gctx.Done():
		}
		return err
	})

	select {
	case <-ctx.Done():
		return nil, 0, errs.NewBlockInvalidError(errs.BlockInvalidValidationTimeout, "block %s exceeded its validation budget", block.Hash())
	case o := <-result:
		return o.receipts, o.gasUsed, o.err
	}
}

// executeAndCheckRoots re-executes block's own transactions against st
// (which must already reflect the selected parent's committed state) and
// checks the resulting state_root/tx_root/receipt_root against the
// header's claims. st is mutated in place; the caller commits it only
// once this returns successfully.
func (v *Validator) executeAndCheckRoots(st *state.StateDB, block *primitives.Block, proposer primitives.Address) ([]*primitives.Receipt, uint64, error) {
	blockCtx := execution.BlockContext{
		BlockHash: block.Hash(),
		Height:    block.Height,
		BlueScore: block.BlueScore,
		Timestamp: block.Timestamp,
		Proposer:  proposer,
	}
	receipts, gasUsed, err := v.executor.ExecuteBlock(st, blockCtx, block.Transactions)
	if err != nil {
		return nil, 0, errors.Wrap(err, "blockvalidator: re-execution failed")
	}

	gotTxRoot := primitives.TxRoot(block.Transactions)
	if gotTxRoot != block.TxRoot {
		return nil, 0, errs.NewBlockInvalidError(errs.BlockInvalidTxRootMismatch, "computed %s, header claims %s", gotTxRoot, block.TxRoot)
	}
	gotReceiptRoot := primitives.ReceiptRoot(receipts)
	if gotReceiptRoot != block.ReceiptRoot {
		return nil, 0, errs.NewBlockInvalidError(errs.BlockInvalidReceiptRootMismatch, "computed %s, header claims %s", gotReceiptRoot, block.ReceiptRoot)
	}
	gotStateRoot, err := st.Root()
	if err != nil {
		return nil, 0, err
	}
	if gotStateRoot != block.StateRoot {
		return nil, 0, errs.NewBlockInvalidError(errs.BlockInvalidStateRootMismatch, "computed %s, header claims %s", gotStateRoot, block.StateRoot)
	}

	return receipts, gasUsed, nil
}
