// Package consensus ties together C3-C9: the datastructure stores, the
// GhostDAG/topology/traversal/finality processes, the mempool, the
// executor and the block builder/validator, into the single entry point
// an embedding application drives (submit a transaction, build a block,
// ingest a received block). Grounded on the teacher's domain/consensus
// (consensus.go's thin facade over processes.BlockProcessor/
// ConsensusStateManager, factory.go's wiring of every process/store
// together from one Database handle).
package consensus

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/dagchaind/dagchaind/consensus/datastructures/blockrelationstore"
	"github.com/dagchaind/dagchaind/consensus/datastructures/blockstore"
	"github.com/dagchaind/dagchaind/consensus/datastructures/ghostdagdatastore"
	"github.com/dagchaind/dagchaind/consensus/model"
	"github.com/dagchaind/dagchaind/consensus/processes/blockbuilder"
	"github.com/dagchaind/dagchaind/consensus/processes/blockvalidator"
	"github.com/dagchaind/dagchaind/consensus/processes/dagtopologymanager"
	"github.com/dagchaind/dagchaind/consensus/processes/dagtraversalmanager"
	"github.com/dagchaind/dagchaind/consensus/processes/finalitymanager"
	"github.com/dagchaind/dagchaind/consensus/processes/ghostdagmanager"
	"github.com/dagchaind/dagchaind/consensus/processes/tipselector"
	"github.com/dagchaind/dagchaind/errs"
	"github.com/dagchaind/dagchaind/execution"
	"github.com/dagchaind/dagchaind/execution/state"
	"github.com/dagchaind/dagchaind/logs"
	"github.com/dagchaind/dagchaind/mempool"
	"github.com/dagchaind/dagchaind/primitives"
	"github.com/dagchaind/dagchaind/storage"
)

// orphanTTLSecs bounds how long a block with unknown parents is kept
// waiting before it is dropped, mirroring the teacher's orphan-pool
// TTL-expiry idiom (domain/miningmanager/mempool/orphan_pool.go) applied
// to blocks instead of transactions.
const orphanTTLSecs = 3600

// Config bundles every tunable the consensus facade is built from:
// GhostDAG parameters, finality depth, the executor's economic
// parameters, mempool bounds, and block-proposal limits.
type Config struct {
	Ghostdag       model.GhostdagParams
	FinalityDepth  uint64
	Executor       execution.Config
	Mempool        mempool.Config
	ChainVersion   uint32
	MaxBlockGas    uint64
	StoreCacheSize int
}

// DefaultConfig matches the configuration surface's documented defaults.
var DefaultConfig = Config{
	Ghostdag:       model.DefaultGhostdagParams,
	FinalityDepth:  12,
	Executor:       execution.DefaultConfig,
	Mempool:        mempool.DefaultConfig,
	ChainVersion:   1,
	MaxBlockGas:    30_000_000,
	StoreCacheSize: 2048,
}

// Consensus is the single entry point embedding code drives: submit
// transactions, build proposals, and ingest blocks (locally built or
// externally received) through one validated, atomically-committed path.
type Consensus struct {
	mu sync.Mutex

	cfg Config
	db  storage.Database
	log logs.Logger

	blockStore    *blockstore.Store
	relationStore *blockrelationstore.Store
	ghostdagStore *ghostdagdatastore.Store
	dagTopology   *dagtopologymanager.Manager
	dagTraverse   *dagtraversalmanager.Manager
	ghostdag      *ghostdagmanager.Manager
	tipSelector   *tipselector.Selector
	finality      *finalitymanager.Manager

	pool      *mempool.Pool
	executor  *execution.Executor
	validator *blockvalidator.Validator
	builder   *blockbuilder.Builder

	selectedTip primitives.Hash

	orphans map[primitives.Hash][]orphanEntry // keyed by the missing parent
}

type orphanEntry struct {
	block   *primitives.Block
	addedAt uint64
}

// selectedTipKey records the sole metadata entry this package owns
// outside the other stores' own column families.
var selectedTipKey = []byte("selected_tip")

// New wires every process and store from db and opens the genesis block
// if the store is empty.
func New(cfg Config, db storage.Database, interp execution.Interpreter, log logs.Logger) (*Consensus, error) {
	c := &Consensus{
		cfg:     cfg,
		db:      db,
		log:     log,
		orphans: make(map[primitives.Hash][]orphanEntry),
	}

	c.blockStore = blockstore.New(cfg.StoreCacheSize)
	c.relationStore = blockrelationstore.New(cfg.StoreCacheSize)
	c.ghostdagStore = ghostdagdatastore.New(cfg.StoreCacheSize)
	c.dagTopology = dagtopologymanager.New(db, c.relationStore, c.ghostdagStore)
	c.dagTraverse = dagtraversalmanager.New(db, c.dagTopology, c.ghostdagStore)
	c.ghostdag = ghostdagmanager.New(cfg.Ghostdag.K, db, c.dagTopology, c.ghostdagStore)
	c.tipSelector = tipselector.New(c.dagTopology, c.ghostdag)
	c.finality = finalitymanager.New(cfg.FinalityDepth, db, c.dagTopology, c.dagTraverse, c.ghostdag)

	c.executor = execution.New(cfg.Executor, interp, log)
	c.validator = blockvalidator.New(c.executor)

	st := state.New(db)
	c.pool = mempool.New(cfg.Mempool, st, log)
	c.builder = blockbuilder.New(blockbuilder.Config{
		Version:        cfg.ChainVersion,
		GhostdagParams: cfg.Ghostdag,
		MaxBlockGas:    cfg.MaxBlockGas,
		MinGasPrice:    cfg.Mempool.MinGasPrice,
	}, db, c.blockStore, c.tipSelector, c.ghostdag, c.pool, c.executor, log)

	raw, ok, err := db.Get(storage.CFMetadata, selectedTipKey)
	if err != nil {
		return nil, err
	}
	if ok {
		c.selectedTip, _ = primitives.HashFromSlice(raw)
		return c, nil
	}
	if err := c.seedGenesis(); err != nil {
		return nil, err
	}
	return c, nil
}

// seedGenesis commits the zero-parent genesis block this chain starts
// from: no transactions, blue_score zero, state_root computed by
// StateDB.Root over whatever account state the store holds at seeding
// (on a fresh store, the keccak of an empty input, not the zero hash).
func (c *Consensus) seedGenesis() error {
	genesis := &primitives.Block{
		Version:        c.cfg.ChainVersion,
		GhostdagParams: primitives.GhostdagParams{K: c.cfg.Ghostdag.K, MaxParents: c.cfg.Ghostdag.MaxParents},
	}
	st := state.New(c.db)
	stateRoot, err := st.Root()
	if err != nil {
		return err
	}
	genesis.StateRoot = stateRoot
	genesis.TxRoot = primitives.TxRoot(nil)
	genesis.ReceiptRoot = primitives.ReceiptRoot(nil)
	hash := genesis.Hash()

	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	c.blockStore.Stage(genesis)
	if err := c.blockStore.Commit(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := c.relationStore.StageBlock(c.db, hash, nil); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := c.relationStore.Commit(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	c.ghostdagStore.Stage(hash, ghostdagmanager.GenesisData())
	if err := c.ghostdagStore.Commit(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Put(storage.CFMetadata, selectedTipKey, hash[:]); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.selectedTip = hash
	return nil
}

// SelectedTip returns the hash of the current best block.
func (c *Consensus) SelectedTip() primitives.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedTip
}

// Mempool exposes the pending-transaction pool for submission/inspection.
func (c *Consensus) Mempool() *mempool.Pool { return c.pool }

// Config returns the configuration this Consensus was built from, for
// callers that need the economic/chain parameters (e.g. node.Node's
// chain_id and estimate_gas).
func (c *Consensus) Config() Config { return c.cfg }

// BlockByHash returns the block stored under hash, the ok result mirroring
// storage's Get convention.
func (c *Consensus) BlockByHash(hash primitives.Hash) (*primitives.Block, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockStore.Get(c.db, hash)
}

// BlockByHeight returns every block recorded at height (plural: a DAG may
// hold several blocks at the same height before GhostDAG orders them).
func (c *Consensus) BlockByHeight(height uint64) ([]*primitives.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockStore.GetAtHeight(c.db, height)
}

// Receipt returns the receipt recorded for txHash, if that transaction was
// ever included in a block on the selected chain.
func (c *Consensus) Receipt(txHash primitives.Hash) (*primitives.Receipt, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok, err := c.db.Get(storage.CFReceipts, txHash[:])
	if err != nil || !ok {
		return nil, ok, err
	}
	r, err := execution.DecodeReceipt(raw)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

// LatestState opens a StateDB view of the committed chain (the selected
// tip's account/storage view -- the "Latest" block tag of spec.md §6).
func (c *Consensus) LatestState() *state.StateDB {
	return state.New(c.db)
}

// EstimateGas dry-runs call as a single-transaction block against a
// throwaway copy of the latest committed state (never committed back) and
// returns the gas it used plus a configured percentage buffer, per spec.md
// §6's estimate_gas contract.
func (c *Consensus) EstimateGas(call *primitives.Transaction, bufferPct uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := state.New(c.db)
	blockCtx := execution.BlockContext{
		Height:    0,
		BlueScore: 0,
		Timestamp: 0,
	}
	_, gasUsed, err := c.executor.ExecuteBlock(st, blockCtx, []*primitives.Transaction{call})
	if err != nil {
		return 0, err
	}
	return gasUsed + (gasUsed*bufferPct)/100, nil
}

// BuildBlock assembles and signs a new proposal on top of the current
// tip set, draining the mempool. The caller still must feed the result
// back through IngestBlock to have it committed through the same path
// every block takes.
func (c *Consensus) BuildBlock(timestamp uint64, proposerPubKey [32]byte, vrfReveal [32]byte, sign blockbuilder.SignFunc) (*blockbuilder.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builder.BuildBlock(timestamp, proposerPubKey, vrfReveal, sign)
}

// IngestBlock validates and, if valid, commits block: structural and
// signature checks always run; GhostDAG classification and finality
// checks always run and are persisted so DAG/tip bookkeeping stays
// globally correct. Full state re-execution and root verification is
// performed only when block is (or, after a reorg, becomes) the
// selected tip -- see DESIGN.md's "selected-chain-only state
// verification" resolution. Re-execution runs under ctx, bounded to
// blockvalidator.DefaultValidationBudget: a block whose re-execution
// overruns the budget is rejected with BlockInvalidValidationTimeout
// rather than blocking ingestion indefinitely.
func (c *Consensus) IngestBlock(ctx context.Context, block *primitives.Block, nowSecs uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := block.Hash()
	if _, known, err := c.blockStore.Get(c.db, hash); err != nil {
		return err
	} else if known {
		return nil
	}

	if err := blockvalidator.ValidateStructure(block, c.cfg.Ghostdag, nowSecs); err != nil {
		return err
	}
	proposer, err := blockvalidator.VerifySignature(block)
	if err != nil {
		return err
	}

	isGenesis := block.SelectedParent.IsZero() && len(block.MergeParents) == 0
	if !isGenesis {
		for _, p := range block.Parents() {
			if _, ok, err := c.blockStore.Get(c.db, p); err != nil {
				return err
			} else if !ok {
				c.queueOrphan(block, p, nowSecs)
				return nil
			}
		}
		selectedParentBlock, _, err := c.blockStore.Get(c.db, block.SelectedParent)
		if err != nil {
			return err
		}
		if err := blockvalidator.ValidateTimestampAgainstParent(block, selectedParentBlock); err != nil {
			return err
		}
	}

	if err := c.admitClassifiedBlock(ctx, block, hash, proposer, nowSecs); err != nil {
		return err
	}

	c.promoteOrphans(hash, nowSecs)
	return nil
}

// admitClassifiedBlock runs classification, finality and (conditionally)
// state verification for a block whose parents are all known, then
// commits it.
func (c *Consensus) admitClassifiedBlock(ctx context.Context, block *primitives.Block, hash primitives.Hash, proposer primitives.Address, nowSecs uint64) error {
	ghostdagData, err := c.ghostdag.Classify(block.Parents())
	if err != nil {
		return errs.NewClassificationError(errs.ClassificationMissingAncestor, err)
	}
	if err := blockvalidator.CheckBlueScore(block, ghostdagData); err != nil {
		return err
	}

	if err := c.relationStore.StageBlock(c.db, hash, block.Parents()); err != nil {
		return err
	}
	c.ghostdagStore.Stage(hash, ghostdagData)

	violating, err := c.finality.IsViolatingFinality(hash)
	if err != nil {
		c.relationStore.Discard()
		c.ghostdagStore.Discard()
		return err
	}
	if violating {
		c.relationStore.Discard()
		c.ghostdagStore.Discard()
		return errs.NewBlockInvalidError(errs.BlockInvalidFinalityViolation, "block %s conflicts with the finalized tip", hash)
	}

	tips, err := c.dagTopology.Tips()
	if err != nil {
		c.relationStore.Discard()
		c.ghostdagStore.Discard()
		return err
	}
	newGlobalTip, err := c.ghostdag.ChooseSelectedParent(tips.Slice()...)
	if err != nil {
		c.relationStore.Discard()
		c.ghostdagStore.Discard()
		return err
	}

	var receipts []*primitives.Receipt
	var st *state.StateDB
	becomesTip := newGlobalTip == hash

	if becomesTip {
		if block.SelectedParent == c.selectedTip || c.selectedTip.IsZero() {
			st = state.New(c.db)
		} else {
			st, err = c.replayChain(block.SelectedParent)
			if err != nil {
				c.relationStore.Discard()
				c.ghostdagStore.Discard()
				return errors.Wrap(err, "consensus: replay chain for reorg")
			}
		}
		validateCtx, cancel := context.WithTimeout(ctx, blockvalidator.DefaultValidationBudget)
		receipts, _, err = c.validator.ExecuteAndCheckRoots(validateCtx, st, block, proposer)
		cancel()
		if err != nil {
			c.relationStore.Discard()
			c.ghostdagStore.Discard()
			return err
		}
	}

	tx, err := c.db.Begin()
	if err != nil {
		c.relationStore.Discard()
		c.ghostdagStore.Discard()
		return err
	}

	c.blockStore.Stage(block)
	if err := c.blockStore.Commit(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := c.relationStore.Commit(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := c.ghostdagStore.Commit(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if becomesTip {
		if err := st.Commit(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		for _, r := range receipts {
			if err := tx.Put(storage.CFReceipts, r.TxHash[:], execution.EncodeReceipt(r)); err != nil {
				_ = tx.Rollback()
				return err
			}
			if err := tx.Put(storage.CFTxByHash, r.TxHash[:], hash[:]); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
	}

	if _, err := c.finality.AdvanceFinality(tx, newGlobalTip); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Put(storage.CFMetadata, selectedTipKey, newGlobalTip[:]); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	c.selectedTip = newGlobalTip
	if becomesTip {
		c.pool.RemoveIncluded(txHashes(block.Transactions))
	}
	if c.log != nil {
		c.log.Infof("admitted block %s at height %d, blue_score %d, selected_tip now %s", hash, block.Height, block.BlueScore, newGlobalTip)
	}
	return nil
}

// replayChain rebuilds a StateDB reflecting exactly the result of
// executing, in order from genesis, every block on tip's selected-parent
// chain. This is the reorg path: execution/state.StateDB has no
// per-block snapshot isolation, so the only way to recover "the state
// as of an arbitrary ancestor" once the committed DB has moved past it
// is to wipe the account/storage column families and replay. Acceptable
// for this exercise's scope (see DESIGN.md); a production system would
// keep a bounded window of per-block state snapshots instead.
func (c *Consensus) replayChain(tip primitives.Hash) (*state.StateDB, error) {
	chain, err := c.dagTraverse.SelectedParentChain(tip)
	if err != nil {
		return nil, err
	}
	// chain is tip-to-genesis; reverse to genesis-to-tip replay order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	if err := wipeColumnFamily(c.db, storage.CFAccounts); err != nil {
		return nil, err
	}
	if err := wipeColumnFamily(c.db, storage.CFStorage); err != nil {
		return nil, err
	}

	st := state.New(c.db)
	for _, h := range chain {
		block, ok, err := c.blockStore.Get(c.db, h)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Errorf("consensus: replay: block %s missing from store", h)
		}
		if len(block.Transactions) == 0 {
			continue
		}
		data, err := c.ghostdagStore.Get(c.db, h)
		if err != nil {
			return nil, err
		}
		proposer := primitives.DeriveAddress(block.ProposerPubKey)
		blockCtx := execution.BlockContext{
			BlockHash: h,
			Height:    block.Height,
			BlueScore: data.BlueScore,
			Timestamp: block.Timestamp,
			Proposer:  proposer,
		}
		if _, _, err := c.executor.ExecuteBlock(st, blockCtx, block.Transactions); err != nil {
			return nil, errors.Wrapf(err, "replay block %s", h)
		}
	}
	return st, nil
}

func txHashes(txs []*primitives.Transaction) []primitives.Hash {
	out := make([]primitives.Hash, len(txs))
	for i, tx := range txs {
		out[i] = tx.Hash
	}
	return out
}

// wipeColumnFamily deletes every key in cf. Used only by the reorg replay
// path, which rebuilds the entire account/storage view from scratch.
func wipeColumnFamily(db storage.Database, cf storage.ColumnFamily) error {
	for {
		cursor, err := db.Cursor(cf, nil)
		if err != nil {
			return err
		}
		var keys [][]byte
		for cursor.Next() {
			keys = append(keys, append([]byte(nil), cursor.Key()...))
		}
		cerr := cursor.Error()
		_ = cursor.Close()
		if cerr != nil {
			return cerr
		}
		if len(keys) == 0 {
			return nil
		}
		for _, k := range keys {
			if err := db.Delete(cf, k); err != nil {
				return err
			}
		}
	}
}

// queueOrphan records block as waiting on missingParent, subject to
// orphanTTLSecs expiry on the next promoteOrphans sweep.
func (c *Consensus) queueOrphan(block *primitives.Block, missingParent primitives.Hash, nowSecs uint64) {
	c.orphans[missingParent] = append(c.orphans[missingParent], orphanEntry{block: block, addedAt: nowSecs})
	if c.log != nil {
		c.log.Debugf("queued orphan %s waiting on parent %s", block.Hash(), missingParent)
	}
}

// promoteOrphans re-attempts ingestion of every block that was waiting
// on parentHash, now that it has arrived, and sweeps expired entries
// from the whole table.
func (c *Consensus) promoteOrphans(parentHash primitives.Hash, nowSecs uint64) {
	waiting := c.orphans[parentHash]
	delete(c.orphans, parentHash)
	sort.Slice(waiting, func(i, j int) bool { return waiting[i].block.Height < waiting[j].block.Height })
	for _, entry := range waiting {
		hash := entry.block.Hash()
		if _, known, err := c.blockStore.Get(c.db, hash); err == nil && known {
			continue
		}
		proposer, err := blockvalidator.VerifySignature(entry.block)
		if err != nil {
			continue
		}
		ready := true
		for _, p := range entry.block.Parents() {
			if _, ok, err := c.blockStore.Get(c.db, p); err != nil || !ok {
				ready = false
				break
			}
		}
		if !ready {
			c.orphans[parentHash] = append(c.orphans[parentHash], entry)
			continue
		}
		// Each promoted orphan gets its own fresh validation budget,
		// independent of whatever request triggered this sweep.
		if err := c.admitClassifiedBlock(context.Background(), entry.block, hash, proposer, nowSecs); err == nil {
			c.promoteOrphans(hash, nowSecs)
		}
	}

	for parent, entries := range c.orphans {
		kept := entries[:0]
		for _, e := range entries {
			if nowSecs-e.addedAt <= orphanTTLSecs {
				kept = append(kept, e)
			} else if c.log != nil {
				c.log.Debugf("dropping expired orphan %s waiting on %s", e.block.Hash(), parent)
			}
		}
		if len(kept) == 0 {
			delete(c.orphans, parent)
		} else {
			c.orphans[parent] = kept
		}
	}
}
