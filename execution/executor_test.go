package execution

import (
	"crypto/ed25519"
	"testing"

	"github.com/holiman/uint256"

	"github.com/dagchaind/dagchaind/execution/state"
	"github.com/dagchaind/dagchaind/primitives"
	"github.com/dagchaind/dagchaind/storage/leveldb"
)

type signer struct {
	priv ed25519.PrivateKey
	addr primitives.Address
}

func newSigner(t *testing.T, seed byte) signer {
	t.Helper()
	src := make([]byte, ed25519.SeedSize)
	for i := range src {
		src[i] = seed
	}
	priv := ed25519.NewKeyFromSeed(src)
	var pub [32]byte
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return signer{priv: priv, addr: primitives.DeriveAddress(pub)}
}

func (s signer) sign(tx *primitives.Transaction) *primitives.Transaction {
	tx.From = s.addr
	hash := tx.ComputeHash()
	tx.Sig = primitives.SignEd25519(s.priv, hash)
	tx.Hash = hash
	return tx
}

func TestExecuteBlockSimpleTransfer(t *testing.T) {
	db, err := leveldb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer db.Close()

	alice := newSigner(t, 1)
	bob := newSigner(t, 2)

	st := state.New(db)
	if err := st.AddBalance(alice.addr, uint256.NewInt(1_000_000)); err != nil {
		t.Fatalf("seed balance: %s", err)
	}

	gasPrice := uint256.NewInt(1)
	tx := alice.sign(&primitives.Transaction{
		Nonce:    0,
		To:       &bob.addr,
		Value:    uint256.NewInt(10),
		GasLimit: primitives.MinGasLimit,
		GasPrice: gasPrice,
	})

	ex := New(DefaultConfig, nil, nil)
	block := BlockContext{Height: 1}
	receipts, gasUsed, err := ex.ExecuteBlock(st, block, []*primitives.Transaction{tx})
	if err != nil {
		t.Fatalf("ExecuteBlock: %s", err)
	}
	if len(receipts) != 1 {
		t.Fatalf("len(receipts) = %d, want 1", len(receipts))
	}
	if receipts[0].Status != ReceiptSuccess {
		t.Fatalf("receipt status = %d, want Success", receipts[0].Status)
	}
	if gasUsed != primitives.MinGasLimit {
		t.Fatalf("gasUsed = %d, want %d", gasUsed, primitives.MinGasLimit)
	}

	aliceBalance, err := st.BalanceOf(alice.addr)
	if err != nil {
		t.Fatalf("BalanceOf alice: %s", err)
	}
	wantAlice := uint256.NewInt(1_000_000 - 10 - primitives.MinGasLimit)
	if aliceBalance.Cmp(wantAlice) != 0 {
		t.Fatalf("alice balance = %s, want %s", aliceBalance, wantAlice)
	}

	bobBalance, err := st.BalanceOf(bob.addr)
	if err != nil {
		t.Fatalf("BalanceOf bob: %s", err)
	}
	if bobBalance.Cmp(uint256.NewInt(10)) != 0 {
		t.Fatalf("bob balance = %s, want 10", bobBalance)
	}

	aliceNonce, err := st.NonceOf(alice.addr)
	if err != nil {
		t.Fatalf("NonceOf: %s", err)
	}
	if aliceNonce != 1 {
		t.Fatalf("alice nonce = %d, want 1", aliceNonce)
	}
}

func TestExecuteBlockRejectsWrongNonce(t *testing.T) {
	db, err := leveldb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer db.Close()

	alice := newSigner(t, 1)
	bob := newSigner(t, 2)

	st := state.New(db)
	if err := st.AddBalance(alice.addr, uint256.NewInt(1_000_000)); err != nil {
		t.Fatalf("seed balance: %s", err)
	}

	tx := alice.sign(&primitives.Transaction{
		Nonce:    1, // wrong: account nonce is 0
		To:       &bob.addr,
		Value:    uint256.NewInt(10),
		GasLimit: primitives.MinGasLimit,
		GasPrice: uint256.NewInt(1),
	})

	ex := New(DefaultConfig, nil, nil)
	_, _, err = ex.ExecuteBlock(st, BlockContext{Height: 1}, []*primitives.Transaction{tx})
	if err == nil {
		t.Fatalf("ExecuteBlock: expected nonce-mismatch rejection, got nil")
	}
}

func TestExecuteBlockContractCreationAndRewards(t *testing.T) {
	db, err := leveldb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer db.Close()

	alice := newSigner(t, 1)
	proposer := newSigner(t, 3)
	treasury := newSigner(t, 4)

	st := state.New(db)
	if err := st.AddBalance(alice.addr, uint256.NewInt(1_000_000)); err != nil {
		t.Fatalf("seed balance: %s", err)
	}

	tx := alice.sign(&primitives.Transaction{
		Nonce:    0,
		To:       nil, // contract creation
		Value:    uint256.NewInt(0),
		GasLimit: primitives.MinGasLimit,
		GasPrice: uint256.NewInt(10),
		Data:     []byte{0x60, 0x00},
	})

	cfg := Config{
		TreasuryAddress:     treasury.addr,
		TreasuryFractionPct: 10,
		BlockReward:         uint256.NewInt(1000),
		HalvingInterval:     0,
	}
	ex := New(cfg, nil, nil)
	receipts, _, err := ex.ExecuteBlock(st, BlockContext{Height: 1, Proposer: proposer.addr}, []*primitives.Transaction{tx})
	if err != nil {
		t.Fatalf("ExecuteBlock: %s", err)
	}
	if receipts[0].ContractAddress == nil {
		t.Fatalf("receipt.ContractAddress = nil, want a created contract address")
	}

	account, ok, err := st.GetAccount(*receipts[0].ContractAddress)
	if err != nil {
		t.Fatalf("GetAccount: %s", err)
	}
	if !ok || !account.IsContract() {
		t.Fatalf("created address is not recorded as a contract")
	}

	fee := primitives.MinGasLimit * 10 // gasUsed * gasPrice
	wantTreasury := fee / 10
	treasuryBalance, err := st.BalanceOf(treasury.addr)
	if err != nil {
		t.Fatalf("BalanceOf treasury: %s", err)
	}
	if treasuryBalance.Cmp(uint256.NewInt(uint64(wantTreasury))) != 0 {
		t.Fatalf("treasury balance = %s, want %d", treasuryBalance, wantTreasury)
	}

	wantProposer := (fee - wantTreasury) + 1000
	proposerBalance, err := st.BalanceOf(proposer.addr)
	if err != nil {
		t.Fatalf("BalanceOf proposer: %s", err)
	}
	if proposerBalance.Cmp(uint256.NewInt(uint64(wantProposer))) != 0 {
		t.Fatalf("proposer balance = %s, want %d", proposerBalance, wantProposer)
	}
}
