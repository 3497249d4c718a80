package blockvalidator

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"github.com/dagchaind/dagchaind/consensus/model"
	"github.com/dagchaind/dagchaind/errs"
	"github.com/dagchaind/dagchaind/execution"
	"github.com/dagchaind/dagchaind/execution/state"
	"github.com/dagchaind/dagchaind/primitives"
	"github.com/dagchaind/dagchaind/storage/leveldb"
)

type signer struct {
	priv ed25519.PrivateKey
	pub  [32]byte
	addr primitives.Address
}

func newSigner(seed byte) signer {
	src := make([]byte, ed25519.SeedSize)
	for i := range src {
		src[i] = seed
	}
	priv := ed25519.NewKeyFromSeed(src)
	var pub [32]byte
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return signer{priv: priv, pub: pub, addr: primitives.DeriveAddress(pub)}
}

func (s signer) signTx(tx *primitives.Transaction) *primitives.Transaction {
	tx.From = s.addr
	hash := tx.ComputeHash()
	tx.Sig = primitives.SignEd25519(s.priv, hash)
	tx.Hash = hash
	return tx
}

func (s signer) signBlock(block *primitives.Block) {
	block.ProposerPubKey = s.pub
	block.Signature = primitives.SignEd25519(s.priv, block.SigningDigest())
}

func TestValidateStructureRejectsTooManyParents(t *testing.T) {
	block := &primitives.Block{
		SelectedParent: primitives.Keccak256([]byte("parent")),
		MergeParents:   []primitives.Hash{primitives.Keccak256([]byte("a")), primitives.Keccak256([]byte("b"))},
	}
	err := ValidateStructure(block, model.GhostdagParams{K: 18, MaxParents: 2}, 0)
	if err == nil {
		t.Fatalf("ValidateStructure: expected too-many-parents rejection, got nil")
	}
}

func TestValidateStructureRejectsFutureTimestamp(t *testing.T) {
	block := &primitives.Block{Timestamp: 10_000}
	err := ValidateStructure(block, model.DefaultGhostdagParams, 100)
	if err == nil {
		t.Fatalf("ValidateStructure: expected future-timestamp rejection, got nil")
	}
}

func TestValidateStructureAcceptsGenesis(t *testing.T) {
	block := &primitives.Block{Timestamp: 1}
	if err := ValidateStructure(block, model.DefaultGhostdagParams, 1); err != nil {
		t.Fatalf("ValidateStructure: genesis rejected: %s", err)
	}
}

func TestVerifySignature(t *testing.T) {
	proposer := newSigner(1)
	block := &primitives.Block{Timestamp: 1}
	proposer.signBlock(block)

	addr, err := VerifySignature(block)
	if err != nil {
		t.Fatalf("VerifySignature: %s", err)
	}
	if addr != proposer.addr {
		t.Fatalf("VerifySignature recovered %s, want %s", addr, proposer.addr)
	}

	block.Timestamp = 2 // mutate after signing: digest no longer matches
	if _, err := VerifySignature(block); err == nil {
		t.Fatalf("VerifySignature: expected rejection of tampered header, got nil")
	}
}

func TestCheckBlueScore(t *testing.T) {
	block := &primitives.Block{BlueScore: 5}
	if err := CheckBlueScore(block, &model.BlockGHOSTDAGData{BlueScore: 5}); err != nil {
		t.Fatalf("CheckBlueScore: unexpected rejection: %s", err)
	}
	if err := CheckBlueScore(block, &model.BlockGHOSTDAGData{BlueScore: 6}); err == nil {
		t.Fatalf("CheckBlueScore: expected mismatch rejection, got nil")
	}
}

func TestExecuteAndCheckRoots(t *testing.T) {
	db, err := leveldb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer db.Close()

	alice := newSigner(1)
	bob := newSigner(2)
	proposer := newSigner(3)

	seed := state.New(db)
	if err := seed.AddBalance(alice.addr, uint256.NewInt(1_000_000)); err != nil {
		t.Fatalf("seed balance: %s", err)
	}
	seedTx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %s", err)
	}
	if err := seed.Commit(seedTx); err != nil {
		t.Fatalf("seed Commit: %s", err)
	}
	if err := seedTx.Commit(); err != nil {
		t.Fatalf("seedTx Commit: %s", err)
	}

	tx := alice.signTx(&primitives.Transaction{
		Nonce:    0,
		To:       &bob.addr,
		Value:    uint256.NewInt(10),
		GasLimit: primitives.MinGasLimit,
		GasPrice: uint256.NewInt(1),
	})
	txs := []*primitives.Transaction{tx}

	executor := execution.New(execution.DefaultConfig, nil, nil)
	blockCtx := execution.BlockContext{Height: 1, Proposer: proposer.addr}
	receipts, _, err := executor.ExecuteBlock(seed, blockCtx, txs)
	if err != nil {
		t.Fatalf("seed ExecuteBlock: %s", err)
	}
	stateRoot, err := seed.Root()
	if err != nil {
		t.Fatalf("seed Root: %s", err)
	}

	block := &primitives.Block{
		Height:      1,
		StateRoot:   stateRoot,
		TxRoot:      primitives.TxRoot(txs),
		ReceiptRoot: primitives.ReceiptRoot(receipts),
		Transactions: txs,
	}
	proposer.signBlock(block)

	validator := New(execution.New(execution.DefaultConfig, nil, nil))
	fresh := state.New(db)
	if _, _, err := validator.ExecuteAndCheckRoots(context.Background(), fresh, block, proposer.addr); err != nil {
		t.Fatalf("ExecuteAndCheckRoots: %s", err)
	}

	block.StateRoot = primitives.Keccak256([]byte("wrong"))
	fresh2 := state.New(db)
	if _, _, err := validator.ExecuteAndCheckRoots(context.Background(), fresh2, block, proposer.addr); err == nil {
		t.Fatalf("ExecuteAndCheckRoots: expected state_root mismatch rejection, got nil")
	}
}

// slowInterpreter blocks past any reasonable test budget, simulating a
// contract call that runs long enough to trip the validation timeout.
type slowInterpreter struct{}

func (slowInterpreter) Run(_ execution.CallContext, _, _ []byte, gas uint64) ([]byte, uint64, error) {
	time.Sleep(time.Hour)
	return nil, gas, nil
}

func TestExecuteAndCheckRootsRejectsOnBudgetOverrun(t *testing.T) {
	db, err := leveldb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer db.Close()

	alice := newSigner(1)
	contract := newSigner(2)
	proposer := newSigner(3)

	st := state.New(db)
	if err := st.AddBalance(alice.addr, uint256.NewInt(1_000_000)); err != nil {
		t.Fatalf("seed balance: %s", err)
	}
	if err := st.SetCode(contract.addr, []byte{0x01}); err != nil {
		t.Fatalf("SetCode: %s", err)
	}
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %s", err)
	}
	if err := st.Commit(tx); err != nil {
		t.Fatalf("Commit: %s", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("tx.Commit: %s", err)
	}

	callTx := alice.signTx(&primitives.Transaction{
		Nonce:    0,
		To:       &contract.addr,
		Value:    uint256.NewInt(0),
		GasLimit: primitives.MinGasLimit,
		GasPrice: uint256.NewInt(1),
	})
	block := &primitives.Block{
		Height:       1,
		Transactions: []*primitives.Transaction{callTx},
	}
	proposer.signBlock(block)

	validator := New(execution.New(execution.DefaultConfig, slowInterpreter{}, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err = validator.ExecuteAndCheckRoots(ctx, state.New(db), block, proposer.addr)
	if err == nil {
		t.Fatalf("ExecuteAndCheckRoots: expected validation timeout rejection, got nil")
	}
	blockErr, ok := err.(*errs.BlockInvalidError)
	if !ok {
		t.Fatalf("ExecuteAndCheckRoots: error = %T, want *errs.BlockInvalidError", err)
	}
	if blockErr.Code != errs.BlockInvalidValidationTimeout {
		t.Fatalf("ExecuteAndCheckRoots: code = %s, want %s", blockErr.Code, errs.BlockInvalidValidationTimeout)
	}
}
