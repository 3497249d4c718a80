package consensus

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/holiman/uint256"

	"github.com/dagchaind/dagchaind/execution/state"
	"github.com/dagchaind/dagchaind/primitives"
	"github.com/dagchaind/dagchaind/storage"
	"github.com/dagchaind/dagchaind/storage/leveldb"
)

type keypair struct {
	priv ed25519.PrivateKey
	pub  [32]byte
	addr primitives.Address
}

func newKeypair(seed byte) keypair {
	src := make([]byte, ed25519.SeedSize)
	for i := range src {
		src[i] = seed
	}
	priv := ed25519.NewKeyFromSeed(src)
	var pub [32]byte
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return keypair{priv: priv, pub: pub, addr: primitives.DeriveAddress(pub)}
}

func (k keypair) sign(digest primitives.Hash) (primitives.Signature, [32]byte, error) {
	return primitives.SignEd25519(k.priv, digest), k.pub, nil
}

func fundAccount(t *testing.T, db storage.Database, addr primitives.Address, amount uint64) {
	t.Helper()
	st := state.New(db)
	if err := st.AddBalance(addr, uint256.NewInt(amount)); err != nil {
		t.Fatalf("AddBalance: %s", err)
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
}

func TestConsensusSeedsGenesisOnFirstOpen(t *testing.T) {
	db, err := leveldb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer db.Close()

	c, err := New(DefaultConfig, db, nil, nil)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	tip := c.SelectedTip()
	if tip.IsZero() {
		t.Fatalf("SelectedTip is zero after genesis seeding")
	}

	reopened, err := New(DefaultConfig, db, nil, nil)
	if err != nil {
		t.Fatalf("reopen New: %s", err)
	}
	if reopened.SelectedTip() != tip {
		t.Fatalf("reopened SelectedTip = %s, want %s (genesis must not be reseeded)", reopened.SelectedTip(), tip)
	}
}

func TestBuildAndIngestAppendsChain(t *testing.T) {
	db, err := leveldb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer db.Close()

	c, err := New(DefaultConfig, db, nil, nil)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	genesis := c.SelectedTip()

	proposer := newKeypair(1)
	sender := newKeypair(2)
	recipient := newKeypair(3)
	fundAccount(t, db, sender.addr, 1_000_000)

	tx := &primitives.Transaction{
		Nonce:    0,
		To:       &recipient.addr,
		Value:    uint256.NewInt(100),
		GasLimit: primitives.MinGasLimit,
		GasPrice: uint256.NewInt(1),
	}
	tx.From = sender.addr
	digest := tx.ComputeHash()
	tx.Sig = primitives.SignEd25519(sender.priv, digest)
	tx.Hash = digest
	if err := c.Mempool().Add(tx, 1); err != nil {
		t.Fatalf("Mempool().Add: %s", err)
	}

	result, err := c.BuildBlock(10, proposer.pub, [32]byte{}, proposer.sign)
	if err != nil {
		t.Fatalf("BuildBlock: %s", err)
	}
	if result.Block.SelectedParent != genesis {
		t.Fatalf("SelectedParent = %s, want genesis %s", result.Block.SelectedParent, genesis)
	}

	if err := c.IngestBlock(context.Background(), result.Block, 10); err != nil {
		t.Fatalf("IngestBlock: %s", err)
	}

	if c.SelectedTip() != result.Block.Hash() {
		t.Fatalf("SelectedTip = %s, want built block %s", c.SelectedTip(), result.Block.Hash())
	}
	if c.Mempool().Count() != 0 {
		t.Fatalf("Mempool().Count() = %d, want 0 after inclusion", c.Mempool().Count())
	}

	st := state.New(db)
	recipientBalance, err := st.BalanceOf(recipient.addr)
	if err != nil {
		t.Fatalf("BalanceOf: %s", err)
	}
	if recipientBalance.Cmp(uint256.NewInt(100)) != 0 {
		t.Fatalf("recipient balance = %s, want 100", recipientBalance)
	}

	// Ingesting the exact same block again is a harmless no-op.
	if err := c.IngestBlock(context.Background(), result.Block, 10); err != nil {
		t.Fatalf("re-IngestBlock: %s", err)
	}
}

func TestIngestBlockQueuesOrphanUntilParentArrives(t *testing.T) {
	db, err := leveldb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer db.Close()

	c, err := New(DefaultConfig, db, nil, nil)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	genesis := c.SelectedTip()

	proposerA := newKeypair(4)
	resultA, err := c.BuildBlock(10, proposerA.pub, [32]byte{}, proposerA.sign)
	if err != nil {
		t.Fatalf("BuildBlock A: %s", err)
	}

	// Build a second block on top of A's (not-yet-ingested) header by hand,
	// so it arrives before its own parent does.
	proposerB := newKeypair(5)
	blockB := &primitives.Block{
		SelectedParent: resultA.Block.Hash(),
		Timestamp:      20,
		Height:         resultA.Block.Height + 1,
		StateRoot:      resultA.Block.StateRoot,
		TxRoot:         primitives.TxRoot(nil),
		ReceiptRoot:    primitives.ReceiptRoot(nil),
		BlueScore:      resultA.Block.BlueScore + 1,
		GhostdagParams: resultA.Block.GhostdagParams,
	}
	sig, pub, err := proposerB.sign(blockB.SigningDigest())
	if err != nil {
		t.Fatalf("sign: %s", err)
	}
	blockB.ProposerPubKey = pub
	blockB.Signature = sig

	if err := c.IngestBlock(context.Background(), blockB, 20); err != nil {
		t.Fatalf("IngestBlock B (orphan): %s", err)
	}
	if c.SelectedTip() != genesis {
		t.Fatalf("SelectedTip advanced before parent A was ingested: got %s, want genesis %s", c.SelectedTip(), genesis)
	}

	if err := c.IngestBlock(context.Background(), resultA.Block, 10); err != nil {
		t.Fatalf("IngestBlock A: %s", err)
	}
	if c.SelectedTip() != blockB.Hash() {
		t.Fatalf("SelectedTip = %s after A arrives, want promoted orphan B %s", c.SelectedTip(), blockB.Hash())
	}
}
