// Package execution implements C8, the deterministic state transition
// applying an ordered transaction list to account state: per spec.md
// §4.7, recover sender, check nonce/balance, pre-pay gas, dispatch to
// contract creation or the interpreter, commit-or-revert, emit a
// receipt, then credit the treasury/proposer reward. There is no
// teacher analogue (kaspad is UTXO-only); the step sequence is grounded
// on the go-ethereum-lineage state-processor shape visible across
// other_examples' state_processor family, expressed in the teacher's own
// error/logging idiom (errs, logs.Logger).
package execution

import (
	"github.com/holiman/uint256"

	"github.com/dagchaind/dagchaind/errs"
	"github.com/dagchaind/dagchaind/execution/state"
	"github.com/dagchaind/dagchaind/logs"
	"github.com/dagchaind/dagchaind/primitives"
	"github.com/dagchaind/dagchaind/primitives/rlp"
)

// Config holds the per-chain economic parameters named in the
// configuration surface (§6): chain_id, block_reward, halving_interval,
// treasury_address, treasury_fraction_pct.
type Config struct {
	ChainID             *uint256.Int
	TreasuryAddress     primitives.Address
	TreasuryFractionPct uint64
	BlockReward         *uint256.Int
	HalvingInterval     uint64
}

// DefaultConfig matches spec §6's documented defaults (10% treasury cut).
var DefaultConfig = Config{
	TreasuryFractionPct: 10,
	BlockReward:         uint256.NewInt(0),
	HalvingInterval:     0,
}

// Executor applies transactions to a state.StateDB.
type Executor struct {
	cfg    Config
	interp Interpreter
	log    logs.Logger
}

// New builds an Executor. A nil interp defaults to NoOpInterpreter.
func New(cfg Config, interp Interpreter, log logs.Logger) *Executor {
	if interp == nil {
		interp = NoOpInterpreter{}
	}
	return &Executor{cfg: cfg, interp: interp, log: log}
}

// ExecuteBlock applies txs in order against st and credits the treasury
// and proposer rewards, matching the execute_block(parent_state_snapshot,
// ordered_txs) -> (new_state_root, receipts, gas_used_total) contract.
// The caller is responsible for computing the resulting state_root from
// st once this returns.
func (ex *Executor) ExecuteBlock(st *state.StateDB, block BlockContext, txs []*primitives.Transaction) ([]*Receipt, uint64, error) {
	receipts := make([]*Receipt, 0, len(txs))
	var gasUsedTotal uint64
	totalFees := uint256.NewInt(0)

	for _, tx := range txs {
		receipt, fee, gasUsed, err := ex.executeTx(st, block, tx)
		if err != nil {
			return nil, 0, err
		}
		receipts = append(receipts, receipt)
		gasUsedTotal += gasUsed
		totalFees.Add(totalFees, fee)
	}

	if err := ex.rewardBlock(st, block, totalFees); err != nil {
		return nil, 0, err
	}

	return receipts, gasUsedTotal, nil
}

// intrinsicGas is the fixed base cost of every transaction, charged
// whether or not an interpreter call is made.
const intrinsicGas = primitives.MinGasLimit

func (ex *Executor) executeTx(st *state.StateDB, block BlockContext, tx *primitives.Transaction) (*Receipt, *uint256.Int, uint64, error) {
	if err := tx.Validate(); err != nil {
		return nil, nil, 0, errs.NewTransactionInvalidError(errs.TransactionInvalidEncoding, "%s", err)
	}
	if tx.ChainID != nil && ex.cfg.ChainID != nil && tx.ChainID.Cmp(ex.cfg.ChainID) != 0 {
		return nil, nil, 0, errs.NewTransactionInvalidError(errs.TransactionInvalidChainID, "tx chain id %s does not match configured %s", tx.ChainID, ex.cfg.ChainID)
	}

	sender, err := primitives.Recover(tx.Sig, tx.ComputeHash())
	if err != nil {
		return nil, nil, 0, errs.NewTransactionInvalidError(errs.TransactionInvalidSignature, "recover sender: %s", err)
	}

	account, existed, err := st.GetAccount(sender)
	if err != nil {
		return nil, nil, 0, err
	}
	var accountNonce uint64
	balance := uint256.NewInt(0)
	if existed {
		accountNonce = account.Nonce
		balance = account.Balance
	}
	if tx.Nonce != accountNonce {
		return nil, nil, 0, errs.NewTransactionInvalidError(errs.TransactionInvalidNonce, "nonce %d does not match account nonce %d", tx.Nonce, accountNonce)
	}

	prepay := new(uint256.Int).Mul(uint256.NewInt(tx.GasLimit), tx.GasPrice)
	required := new(uint256.Int).Add(prepay, tx.Value)
	if balance.Cmp(required) < 0 {
		return nil, nil, 0, errs.NewTransactionInvalidError(errs.TransactionInvalidBalance, "balance %s below required %s", balance, required)
	}

	// Steps 3-4: debit the gas pre-pay and increment the nonce. These
	// survive a revert per spec.md §4.7 step 6, so they happen before the
	// snapshot is taken.
	if err := st.SubBalance(sender, prepay); err != nil {
		return nil, nil, 0, err
	}
	if err := st.SetNonce(sender, tx.Nonce+1); err != nil {
		return nil, nil, 0, err
	}

	snapshot := st.Snapshot()
	gasRemaining := tx.GasLimit - intrinsicGas
	status := ReceiptSuccess
	var contractAddress *primitives.Address

	switch {
	case tx.To == nil:
		addr := contractCreationAddress(sender, tx.Nonce)
		if err := st.SetCode(addr, tx.Data); err != nil {
			return nil, nil, 0, err
		}
		if err := st.AddBalance(addr, tx.Value); err != nil {
			return nil, nil, 0, err
		}
		contractAddress = &addr

	default:
		toAccount, toExisted, err := st.GetAccount(*tx.To)
		if err != nil {
			return nil, nil, 0, err
		}
		if toExisted && toAccount.IsContract() {
			code, err := st.GetCode(*tx.To)
			if err != nil {
				return nil, nil, 0, err
			}
			ctx := CallContext{
				From:         sender,
				To:           *tx.To,
				Value:        tx.Value,
				Data:         tx.Data,
				GasRemaining: gasRemaining,
				Block:        block,
			}
			if err := st.AddBalance(*tx.To, tx.Value); err != nil {
				return nil, nil, 0, err
			}
			_, gasLeft, runErr := ex.interp.Run(ctx, code, tx.Data, gasRemaining)
			if runErr != nil {
				st.RevertToSnapshot(snapshot)
				status = ReceiptReverted
				gasRemaining = gasLeft
				if ex.log != nil {
					ex.log.Debugf("tx %s reverted: %s", tx.ComputeHash(), runErr)
				}
			} else {
				gasRemaining = gasLeft
			}
		} else {
			if err := st.AddBalance(*tx.To, tx.Value); err != nil {
				return nil, nil, 0, err
			}
		}
	}

	// Step 6: refund unused gas at gas_price, whether or not the call
	// reverted (only the call's own state diffs were rolled back above).
	refund := new(uint256.Int).Mul(uint256.NewInt(gasRemaining), tx.GasPrice)
	if err := st.AddBalance(sender, refund); err != nil {
		return nil, nil, 0, err
	}

	gasUsed := tx.GasLimit - gasRemaining
	fee := new(uint256.Int).Mul(uint256.NewInt(gasUsed), tx.GasPrice)

	receipt := &Receipt{
		TxHash:          tx.ComputeHash(),
		Status:          status,
		GasUsed:         gasUsed,
		ContractAddress: contractAddress,
	}
	return receipt, fee, gasUsed, nil
}

// contractCreationAddress implements address = keccak(rlp(from,
// nonce-1))[12..]: tx.Nonce is already "nonce-1" relative to the
// just-incremented account nonce.
func contractCreationAddress(from primitives.Address, nonce uint64) primitives.Address {
	e := rlp.NewEncoder()
	e.WriteBytes(from[:])
	e.WriteUint64(nonce)
	hash := primitives.Keccak256(e.Bytes())
	var addr primitives.Address
	copy(addr[:], hash[12:])
	return addr
}

// rewardBlock credits the treasury its configured fraction of total fees
// and the proposer the remainder plus the halved block reward.
func (ex *Executor) rewardBlock(st *state.StateDB, block BlockContext, totalFees *uint256.Int) error {
	treasuryAmount := new(uint256.Int).Mul(totalFees, uint256.NewInt(ex.cfg.TreasuryFractionPct))
	treasuryAmount.Div(treasuryAmount, uint256.NewInt(100))
	proposerAmount := new(uint256.Int).Sub(totalFees, treasuryAmount)
	proposerAmount.Add(proposerAmount, halvedReward(ex.cfg.BlockReward, block.Height, ex.cfg.HalvingInterval))

	if !ex.cfg.TreasuryAddress.IsZero() && treasuryAmount.Sign() > 0 {
		if err := st.AddBalance(ex.cfg.TreasuryAddress, treasuryAmount); err != nil {
			return err
		}
	}
	if !block.Proposer.IsZero() && proposerAmount.Sign() > 0 {
		if err := st.AddBalance(block.Proposer, proposerAmount); err != nil {
			return err
		}
	}
	return nil
}

func halvedReward(base *uint256.Int, height, interval uint64) *uint256.Int {
	if base == nil {
		return uint256.NewInt(0)
	}
	reward := new(uint256.Int).Set(base)
	if interval == 0 {
		return reward
	}
	halvings := height / interval
	for i := uint64(0); i < halvings && reward.Sign() > 0; i++ {
		reward.Rsh(reward, 1)
	}
	return reward
}
