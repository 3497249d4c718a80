package mempool

import (
	"crypto/ed25519"
	"testing"

	"github.com/holiman/uint256"

	"github.com/dagchaind/dagchaind/logs"
	"github.com/dagchaind/dagchaind/primitives"
)

// fakeState is a minimal StateReader backed by plain maps, standing in for
// execution/state.StateDB read through the selected parent's committed
// state.
type fakeState struct {
	nonces   map[primitives.Address]uint64
	balances map[primitives.Address]*uint256.Int
}

func newFakeState() *fakeState {
	return &fakeState{
		nonces:   make(map[primitives.Address]uint64),
		balances: make(map[primitives.Address]*uint256.Int),
	}
}

func (s *fakeState) NonceOf(addr primitives.Address) (uint64, error) {
	return s.nonces[addr], nil
}

func (s *fakeState) BalanceOf(addr primitives.Address) (*uint256.Int, error) {
	if b, ok := s.balances[addr]; ok {
		return b, nil
	}
	return uint256.NewInt(0), nil
}

// signer bundles an Ed25519 key with the address it derives, so test
// transactions can be signed without exercising the secp256k1 path.
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

func (s signer) sign(tx *primitives.Transaction) {
	tx.From = s.addr
	hash := tx.ComputeHash()
	tx.Sig = primitives.SignEd25519(s.priv, hash)
	tx.Hash = hash
}

func newTx(s signer, nonce uint64, gasPrice uint64) *primitives.Transaction {
	tx := &primitives.Transaction{
		Nonce:    nonce,
		Value:    uint256.NewInt(0),
		GasLimit: primitives.MinGasLimit,
		GasPrice: uint256.NewInt(gasPrice),
	}
	s.sign(tx)
	return tx
}

func newPool(t *testing.T, state *fakeState) *Pool {
	t.Helper()
	return New(DefaultConfig, state, logs.NewBackend(nil).Logger("TEST"))
}

func TestAddAcceptsContiguousNonces(t *testing.T) {
	state := newFakeState()
	alice := newSigner(t, 1)
	state.balances[alice.addr] = uint256.NewInt(1_000_000_000)

	p := newPool(t, state)

	if err := p.Add(newTx(alice, 0, 5), 0); err != nil {
		t.Fatalf("Add nonce 0: %s", err)
	}
	if err := p.Add(newTx(alice, 1, 5), 0); err != nil {
		t.Fatalf("Add nonce 1: %s", err)
	}
	if p.Count() != 2 {
		t.Fatalf("Count = %d, want 2", p.Count())
	}
}

func TestAddRejectsStaleNonce(t *testing.T) {
	state := newFakeState()
	alice := newSigner(t, 1)
	state.balances[alice.addr] = uint256.NewInt(1_000_000_000)
	state.nonces[alice.addr] = 3

	p := newPool(t, state)
	if err := p.Add(newTx(alice, 2, 5), 0); err == nil {
		t.Fatalf("Add: expected stale-nonce rejection, got nil")
	}
}

func TestAddRejectsUnderpriced(t *testing.T) {
	state := newFakeState()
	alice := newSigner(t, 1)
	state.balances[alice.addr] = uint256.NewInt(1_000_000_000)

	cfg := DefaultConfig
	cfg.MinGasPrice = 10
	p := New(cfg, state, logs.NewBackend(nil).Logger("TEST"))

	if err := p.Add(newTx(alice, 0, 1), 0); err == nil {
		t.Fatalf("Add: expected underpriced rejection, got nil")
	}
}

func TestAddRejectsInsufficientBalance(t *testing.T) {
	state := newFakeState()
	alice := newSigner(t, 1)
	state.balances[alice.addr] = uint256.NewInt(1)

	p := newPool(t, state)
	if err := p.Add(newTx(alice, 0, 5), 0); err == nil {
		t.Fatalf("Add: expected insufficient-balance rejection, got nil")
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	state := newFakeState()
	alice := newSigner(t, 1)
	state.balances[alice.addr] = uint256.NewInt(1_000_000_000)

	p := newPool(t, state)
	tx := newTx(alice, 0, 5)
	if err := p.Add(tx, 0); err != nil {
		t.Fatalf("Add first: %s", err)
	}
	if err := p.Add(tx, 0); err == nil {
		t.Fatalf("Add duplicate: expected rejection, got nil")
	}
}

func TestPendingNonceFollowsContiguousPrefix(t *testing.T) {
	state := newFakeState()
	alice := newSigner(t, 1)
	state.balances[alice.addr] = uint256.NewInt(1_000_000_000)

	p := newPool(t, state)
	mustAdd(t, p, newTx(alice, 0, 5))
	mustAdd(t, p, newTx(alice, 1, 5))
	// nonce 2 skipped, nonce 3 queued with a gap
	mustAdd(t, p, newTx(alice, 3, 5))

	next, err := p.PendingNonce(alice.addr)
	if err != nil {
		t.Fatalf("PendingNonce: %s", err)
	}
	if next != 2 {
		t.Fatalf("PendingNonce = %d, want 2 (gap at nonce 2 stops the contiguous run)", next)
	}
}

func TestSelectForBlockOrdersByGasPriceAndRespectsNonceOrder(t *testing.T) {
	state := newFakeState()
	alice := newSigner(t, 1)
	bob := newSigner(t, 2)
	state.balances[alice.addr] = uint256.NewInt(1_000_000_000)
	state.balances[bob.addr] = uint256.NewInt(1_000_000_000)

	p := newPool(t, state)
	mustAdd(t, p, newTx(alice, 0, 3))
	mustAdd(t, p, newTx(alice, 1, 9)) // higher price but blocked until nonce 0 is selected
	mustAdd(t, p, newTx(bob, 0, 7))

	selected, err := p.SelectForBlock(10*primitives.MinGasLimit, 0)
	if err != nil {
		t.Fatalf("SelectForBlock: %s", err)
	}
	if len(selected) != 3 {
		t.Fatalf("len(selected) = %d, want 3", len(selected))
	}
	// bob's nonce-0 tx (price 7) must be selected before alice's nonce-0
	// tx (price 3); alice's nonce-1 tx (price 9) is not eligible until her
	// nonce-0 tx has been selected.
	if selected[0].From != bob.addr {
		t.Fatalf("selected[0].From = %s, want bob (highest eligible price)", selected[0].From)
	}
}

func TestSelectForBlockRespectsGasBound(t *testing.T) {
	state := newFakeState()
	alice := newSigner(t, 1)
	state.balances[alice.addr] = uint256.NewInt(1_000_000_000)

	p := newPool(t, state)
	mustAdd(t, p, newTx(alice, 0, 5))
	mustAdd(t, p, newTx(alice, 1, 5))

	selected, err := p.SelectForBlock(primitives.MinGasLimit, 0)
	if err != nil {
		t.Fatalf("SelectForBlock: %s", err)
	}
	if len(selected) != 1 {
		t.Fatalf("len(selected) = %d, want 1 (gas bound only fits one tx)", len(selected))
	}
}

func TestRemoveIncluded(t *testing.T) {
	state := newFakeState()
	alice := newSigner(t, 1)
	state.balances[alice.addr] = uint256.NewInt(1_000_000_000)

	p := newPool(t, state)
	tx := newTx(alice, 0, 5)
	mustAdd(t, p, tx)

	p.RemoveIncluded([]primitives.Hash{tx.Hash})
	if p.Count() != 0 {
		t.Fatalf("Count = %d, want 0 after RemoveIncluded", p.Count())
	}
}

func TestExpireStaleHonorsScanIntervalAndTTL(t *testing.T) {
	state := newFakeState()
	alice := newSigner(t, 1)
	state.balances[alice.addr] = uint256.NewInt(1_000_000_000)

	cfg := DefaultConfig
	cfg.ExpireScanIntervalSecs = 60
	cfg.TransactionTTLSecs = 10
	p := New(cfg, state, logs.NewBackend(nil).Logger("TEST"))

	mustAdd(t, p, newTx(alice, 0, 5))

	// Past the TTL but before the scan interval elapses: no scan runs.
	p.ExpireStale(50)
	if p.Count() != 1 {
		t.Fatalf("Count = %d after early ExpireStale, want 1 (scan interval not elapsed)", p.Count())
	}

	p.ExpireStale(200)
	if p.Count() != 0 {
		t.Fatalf("Count = %d after ExpireStale past TTL, want 0", p.Count())
	}
}

func mustAdd(t *testing.T, p *Pool, tx *primitives.Transaction) {
	t.Helper()
	if err := p.Add(tx, 0); err != nil {
		t.Fatalf("Add: %s", err)
	}
}
