package blockbuilder

import (
	"crypto/ed25519"
	"testing"

	"github.com/holiman/uint256"

	"github.com/dagchaind/dagchaind/consensus/datastructures/blockrelationstore"
	"github.com/dagchaind/dagchaind/consensus/datastructures/blockstore"
	"github.com/dagchaind/dagchaind/consensus/datastructures/ghostdagdatastore"
	"github.com/dagchaind/dagchaind/consensus/model"
	"github.com/dagchaind/dagchaind/consensus/processes/blockvalidator"
	"github.com/dagchaind/dagchaind/consensus/processes/dagtopologymanager"
	"github.com/dagchaind/dagchaind/consensus/processes/ghostdagmanager"
	"github.com/dagchaind/dagchaind/consensus/processes/tipselector"
	"github.com/dagchaind/dagchaind/execution"
	"github.com/dagchaind/dagchaind/execution/state"
	"github.com/dagchaind/dagchaind/mempool"
	"github.com/dagchaind/dagchaind/primitives"
	"github.com/dagchaind/dagchaind/storage/leveldb"
)

// seedGenesis commits a bare zero-parent genesis block through the same
// stores a Builder reads from, mirroring what consensus.Consensus does
// at startup.
func seedGenesis(t *testing.T, db *leveldb.DB, blockStore *blockstore.Store, relationStore *blockrelationstore.Store, ghostdagStore *ghostdagdatastore.Store) *primitives.Block {
	t.Helper()
	st := state.New(db)
	stateRoot, err := st.Root()
	if err != nil {
		t.Fatalf("genesis Root: %s", err)
	}
	genesis := &primitives.Block{
		StateRoot:   stateRoot,
		TxRoot:      primitives.TxRoot(nil),
		ReceiptRoot: primitives.ReceiptRoot(nil),
	}
	hash := genesis.Hash()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %s", err)
	}
	blockStore.Stage(genesis)
	if err := blockStore.Commit(tx); err != nil {
		t.Fatalf("blockStore.Commit: %s", err)
	}
	if err := relationStore.StageBlock(db, hash, nil); err != nil {
		t.Fatalf("StageBlock: %s", err)
	}
	if err := relationStore.Commit(tx); err != nil {
		t.Fatalf("relationStore.Commit: %s", err)
	}
	ghostdagStore.Stage(hash, ghostdagmanager.GenesisData())
	if err := ghostdagStore.Commit(tx); err != nil {
		t.Fatalf("ghostdagStore.Commit: %s", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("tx.Commit: %s", err)
	}
	return genesis
}

func TestBuildBlockOnGenesis(t *testing.T) {
	db, err := leveldb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer db.Close()

	blockStore := blockstore.New(64)
	relationStore := blockrelationstore.New(64)
	ghostdagStore := ghostdagdatastore.New(64)
	dagTopology := dagtopologymanager.New(db, relationStore, ghostdagStore)
	ghostdag := ghostdagmanager.New(model.DefaultGhostdagParams.K, db, dagTopology, ghostdagStore)
	tipSelector := tipselector.New(dagTopology, ghostdag)

	genesis := seedGenesis(t, db, blockStore, relationStore, ghostdagStore)

	src := make([]byte, ed25519.SeedSize)
	for i := range src {
		src[i] = 7
	}
	priv := ed25519.NewKeyFromSeed(src)
	var pub [32]byte
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	proposer := primitives.DeriveAddress(pub)

	pool := mempool.New(mempool.DefaultConfig, state.New(db), nil)

	sender := make([]byte, ed25519.SeedSize)
	for i := range sender {
		sender[i] = 9
	}
	senderPriv := ed25519.NewKeyFromSeed(sender)
	var senderPub [32]byte
	copy(senderPub[:], senderPriv.Public().(ed25519.PublicKey))
	senderAddr := primitives.DeriveAddress(senderPub)

	seedState := state.New(db)
	if err := seedState.AddBalance(senderAddr, uint256.NewInt(1_000_000)); err != nil {
		t.Fatalf("seed balance: %s", err)
	}
	fundTx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %s", err)
	}
	if err := seedState.Commit(fundTx); err != nil {
		t.Fatalf("commit seed: %s", err)
	}
	if err := fundTx.Commit(); err != nil {
		t.Fatalf("fundTx.Commit: %s", err)
	}

	recipient := primitives.Keccak256([]byte("recipient"))
	var recipientAddr primitives.Address
	copy(recipientAddr[:], recipient[:primitives.AddressSize])

	pendingTx := &primitives.Transaction{
		Nonce:    0,
		To:       &recipientAddr,
		Value:    uint256.NewInt(5),
		GasLimit: primitives.MinGasLimit,
		GasPrice: uint256.NewInt(1),
	}
	pendingTx.From = senderAddr
	digest := pendingTx.ComputeHash()
	pendingTx.Sig = primitives.SignEd25519(senderPriv, digest)
	pendingTx.Hash = digest
	if err := pool.Add(pendingTx, 1); err != nil {
		t.Fatalf("pool.Add: %s", err)
	}

	executor := execution.New(execution.DefaultConfig, nil, nil)
	builder := New(Config{
		Version:        1,
		GhostdagParams: model.DefaultGhostdagParams,
		MaxBlockGas:    30_000_000,
		MinGasPrice:    1,
	}, db, blockStore, tipSelector, ghostdag, pool, executor, nil)

	sign := func(digest primitives.Hash) (primitives.Signature, [32]byte, error) {
		return primitives.SignEd25519(priv, digest), pub, nil
	}

	result, err := builder.BuildBlock(100, pub, [32]byte{}, sign)
	if err != nil {
		t.Fatalf("BuildBlock: %s", err)
	}
	if result.Block.SelectedParent != genesis.Hash() {
		t.Fatalf("SelectedParent = %s, want genesis %s", result.Block.SelectedParent, genesis.Hash())
	}
	if result.Block.Height != genesis.Height+1 {
		t.Fatalf("Height = %d, want %d", result.Block.Height, genesis.Height+1)
	}
	if len(result.Block.Transactions) != 1 {
		t.Fatalf("len(Transactions) = %d, want 1", len(result.Block.Transactions))
	}

	recovered, err := blockvalidator.VerifySignature(result.Block)
	if err != nil {
		t.Fatalf("VerifySignature: %s", err)
	}
	if recovered != proposer {
		t.Fatalf("VerifySignature recovered %s, want %s", recovered, proposer)
	}
}
