// Package mempool implements the pending-transaction pool: per-sender
// nonce ordering, a fee-priority index for block building, and
// nonce-gap/orphan bookkeeping. Grounded on the teacher's
// domain/miningmanager/mempool (transactions_pool.go's allTransactions/
// feeRate-index shape, orphan_pool.go's gap-queue/TTL-expiry pattern).
// The teacher's pool keys everything by UTXO outpoint; dagchaind keys by
// (sender, nonce) instead, since the spec's execution model is
// account-based.
package mempool

import (
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"github.com/dagchaind/dagchaind/errs"
	"github.com/dagchaind/dagchaind/logs"
	"github.com/dagchaind/dagchaind/primitives"
)

// StateReader answers the on-chain account view admission checks run
// against. Satisfied by execution/state.StateDB read through the
// selected parent's committed state.
type StateReader interface {
	NonceOf(addr primitives.Address) (uint64, error)
	BalanceOf(addr primitives.Address) (*uint256.Int, error)
}

// Config bounds the pool's behavior.
type Config struct {
	MaxCount              int
	MinGasPrice            uint64
	ExpireScanIntervalSecs uint64
	TransactionTTLSecs     uint64
}

// DefaultConfig matches spec §4.6/§6's documented defaults.
var DefaultConfig = Config{
	MaxCount:               5000,
	MinGasPrice:            1,
	ExpireScanIntervalSecs: 60,
	TransactionTTLSecs:      3600,
}

type pooledTx struct {
	tx         *primitives.Transaction
	sender     primitives.Address
	hash       primitives.Hash
	sequence   uint64
	addedAtSec uint64
}

// Pool is the concurrency-safe pending-transaction pool.
type Pool struct {
	mu sync.RWMutex

	cfg   Config
	log   logs.Logger
	state StateReader

	allTransactions map[primitives.Hash]*pooledTx
	bySender        map[primitives.Address][]*pooledTx // sorted ascending by nonce
	sequence        uint64
	lastExpireScan  uint64
}

// New builds an empty Pool reading account state through state.
func New(cfg Config, state StateReader, log logs.Logger) *Pool {
	return &Pool{
		cfg:             cfg,
		log:             log,
		state:           state,
		allTransactions: make(map[primitives.Hash]*pooledTx),
		bySender:        make(map[primitives.Address][]*pooledTx),
	}
}

// Add validates and admits tx per spec §4.6: signature, nonce >= on-chain
// nonce, gas price floor, and balance sufficiency. A nonce gap is
// accepted and queued; only the contiguous prefix from the account's
// current nonce is eligible for block selection.
func (p *Pool) Add(tx *primitives.Transaction, now uint64) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	sender, err := primitives.Recover(tx.Sig, tx.ComputeHash())
	if err != nil {
		return errs.NewTransactionInvalidError(errs.TransactionInvalidSignature, "recover sender: %s", err)
	}

	hash := tx.ComputeHash()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.allTransactions[hash]; ok {
		return errs.NewMempoolError(errs.MempoolDuplicateTx, "transaction %s already pooled", hash)
	}

	minGasPrice := uint256.NewInt(p.cfg.MinGasPrice)
	if tx.GasPrice.Cmp(minGasPrice) < 0 {
		return errs.NewMempoolError(errs.MempoolUnderpriced, "gas price %s below floor %d", tx.GasPrice, p.cfg.MinGasPrice)
	}

	accountNonce, err := p.state.NonceOf(sender)
	if err != nil {
		return err
	}
	if tx.Nonce < accountNonce {
		return errs.NewTransactionInvalidError(errs.TransactionInvalidNonce, "nonce %d below account nonce %d", tx.Nonce, accountNonce)
	}

	balance, err := p.state.BalanceOf(sender)
	if err != nil {
		return err
	}
	cost := new(uint256.Int).Mul(uint256.NewInt(tx.GasLimit), tx.GasPrice)
	cost.Add(cost, tx.Value)
	if balance.Cmp(cost) < 0 {
		return errs.NewTransactionInvalidError(errs.TransactionInvalidBalance, "balance %s below required %s", balance, cost)
	}

	if len(p.allTransactions) >= p.cfg.MaxCount {
		if !p.evictLowestPriced(tx.GasPrice) {
			return errs.NewMempoolError(errs.MempoolFull, "pool at capacity %d", p.cfg.MaxCount)
		}
	}

	p.sequence++
	pt := &pooledTx{tx: tx, sender: sender, hash: hash, sequence: p.sequence, addedAtSec: now}
	p.allTransactions[hash] = pt
	p.insertBySender(pt)

	return nil
}

func (p *Pool) insertBySender(pt *pooledTx) {
	list := p.bySender[pt.sender]
	idx := sort.Search(len(list), func(i int) bool { return list[i].tx.Nonce >= pt.tx.Nonce })
	list = append(list, nil)
	copy(list[idx+1:], list[idx:])
	list[idx] = pt
	p.bySender[pt.sender] = list
}

// evictLowestPriced drops the lowest-priced transaction belonging to the
// sender with the largest total pending volume, per spec §4.6's overflow
// policy. Returns whether room was made (false if candidate does not
// outbid the cheapest eviction candidate).
func (p *Pool) evictLowestPriced(incomingGasPrice *uint256.Int) bool {
	var largestSender primitives.Address
	var largestCount int
	for sender, list := range p.bySender {
		if len(list) > largestCount {
			largestCount = len(list)
			largestSender = sender
		}
	}
	if largestCount == 0 {
		return false
	}

	list := p.bySender[largestSender]
	lowestIdx := 0
	for i, pt := range list {
		if pt.tx.GasPrice.Cmp(list[lowestIdx].tx.GasPrice) < 0 {
			lowestIdx = i
		}
	}
	victim := list[lowestIdx]
	if victim.tx.GasPrice.Cmp(incomingGasPrice) >= 0 {
		return false
	}

	p.removeLocked(victim.hash)
	return true
}

// RemoveIncluded drops every transaction in hashes (a block's included
// set). Other pooled transactions, including later nonces of the same
// senders, are not re-checked and stay in the pool.
func (p *Pool) RemoveIncluded(hashes []primitives.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range hashes {
		p.removeLocked(h)
	}
}

func (p *Pool) removeLocked(hash primitives.Hash) {
	pt, ok := p.allTransactions[hash]
	if !ok {
		return
	}
	delete(p.allTransactions, hash)
	list := p.bySender[pt.sender]
	for i, c := range list {
		if c.hash == hash {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(p.bySender, pt.sender)
	} else {
		p.bySender[pt.sender] = list
	}
}

// PendingNonce returns max(state_nonce, 1+max(nonce of sender's
// contiguous pending txs)), the spec §4.6/§6 nonce query.
func (p *Pool) PendingNonce(sender primitives.Address) (uint64, error) {
	stateNonce, err := p.state.NonceOf(sender)
	if err != nil {
		return 0, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	list := p.bySender[sender]
	expected := stateNonce
	for _, pt := range list {
		if pt.tx.Nonce != expected {
			break
		}
		expected++
	}
	return expected, nil
}

// SelectForBlock greedily selects transactions highest-gas-price-first
// (earliest admitted first on equal price), respecting per-sender nonce contiguity from the account's current nonce
// and the cumulative gas bound maxGas.
func (p *Pool) SelectForBlock(maxGas uint64, minGasPrice uint64) ([]*primitives.Transaction, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	floor := uint256.NewInt(minGasPrice)

	type head struct {
		sender primitives.Address
		idx    int
	}
	var heads []head
	nextExpected := make(map[primitives.Address]uint64)
	for sender, list := range p.bySender {
		stateNonce, err := p.state.NonceOf(sender)
		if err != nil {
			return nil, err
		}
		nextExpected[sender] = stateNonce
		heads = append(heads, head{sender: sender})
		_ = list
	}

	var selected []*primitives.Transaction
	var gasUsed uint64

	for {
		bestIdx := -1
		var bestPrice *uint256.Int
		var bestSeq uint64
		for i, h := range heads {
			list := p.bySender[h.sender]
			if h.idx >= len(list) {
				continue
			}
			pt := list[h.idx]
			if pt.tx.Nonce != nextExpected[h.sender] {
				continue
			}
			if pt.tx.GasPrice.Cmp(floor) < 0 {
				continue
			}
			if bestIdx == -1 || pt.tx.GasPrice.Cmp(bestPrice) > 0 ||
				(pt.tx.GasPrice.Cmp(bestPrice) == 0 && pt.sequence < bestSeq) {
				bestIdx = i
				bestPrice = pt.tx.GasPrice
				bestSeq = pt.sequence
			}
		}
		if bestIdx == -1 {
			break
		}

		h := &heads[bestIdx]
		pt := p.bySender[h.sender][h.idx]
		if gasUsed+pt.tx.GasLimit > maxGas {
			h.idx = len(p.bySender[h.sender]) // exhaust this sender's head; others may still fit
			continue
		}

		selected = append(selected, pt.tx)
		gasUsed += pt.tx.GasLimit
		nextExpected[h.sender] = pt.tx.Nonce + 1
		h.idx++
	}

	return selected, nil
}

// Snapshot returns every pooled transaction, for debugging/visibility.
func (p *Pool) Snapshot() []*primitives.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*primitives.Transaction, 0, len(p.allTransactions))
	for _, pt := range p.allTransactions {
		out = append(out, pt.tx)
	}
	return out
}

// Count returns the number of pooled transactions.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.allTransactions)
}

// ExpireStale removes every pooled transaction, contiguous or queued,
// older than the configured TTL, scanning at most once per ExpireScanIntervalSecs,
// mirroring transactionsPool.expireOldTransactions's scan-interval gate.
func (p *Pool) ExpireStale(now uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if now-p.lastExpireScan < p.cfg.ExpireScanIntervalSecs {
		return
	}

	for hash, pt := range p.allTransactions {
		if now-pt.addedAtSec > p.cfg.TransactionTTLSecs {
			p.removeLocked(hash)
		}
	}
	p.lastExpireScan = now
}
