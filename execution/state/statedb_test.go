package state

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/dagchaind/dagchaind/primitives"
	"github.com/dagchaind/dagchaind/storage/leveldb"
)

func addr(b byte) primitives.Address {
	var a primitives.Address
	a[0] = b
	return a
}

func TestBalanceMutationsCommitAndReload(t *testing.T) {
	db, err := leveldb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer db.Close()

	a := addr(1)
	st := New(db)
	if err := st.AddBalance(a, uint256.NewInt(100)); err != nil {
		t.Fatalf("AddBalance: %s", err)
	}
	if err := st.SetNonce(a, 5); err != nil {
		t.Fatalf("SetNonce: %s", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %s", err)
	}
	if err := st.Commit(tx); err != nil {
		t.Fatalf("commit: %s", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("tx commit: %s", err)
	}

	reloaded := New(db)
	balance, err := reloaded.BalanceOf(a)
	if err != nil {
		t.Fatalf("BalanceOf: %s", err)
	}
	if balance.Cmp(uint256.NewInt(100)) != 0 {
		t.Fatalf("BalanceOf = %s, want 100", balance)
	}
	nonce, err := reloaded.NonceOf(a)
	if err != nil {
		t.Fatalf("NonceOf: %s", err)
	}
	if nonce != 5 {
		t.Fatalf("NonceOf = %d, want 5", nonce)
	}
}

func TestRevertToSnapshotUndoesBalanceAndStorage(t *testing.T) {
	db, err := leveldb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer db.Close()

	a := addr(2)
	st := New(db)
	if err := st.AddBalance(a, uint256.NewInt(50)); err != nil {
		t.Fatalf("AddBalance: %s", err)
	}

	snap := st.Snapshot()

	if err := st.AddBalance(a, uint256.NewInt(1000)); err != nil {
		t.Fatalf("AddBalance 2: %s", err)
	}
	var slot primitives.Hash
	slot[0] = 7
	var value primitives.Hash
	value[0] = 9
	if err := st.SetStorage(a, slot, value); err != nil {
		t.Fatalf("SetStorage: %s", err)
	}

	st.RevertToSnapshot(snap)

	balance, err := st.BalanceOf(a)
	if err != nil {
		t.Fatalf("BalanceOf: %s", err)
	}
	if balance.Cmp(uint256.NewInt(50)) != 0 {
		t.Fatalf("BalanceOf after revert = %s, want 50", balance)
	}
	got, err := st.GetStorage(a, slot)
	if err != nil {
		t.Fatalf("GetStorage: %s", err)
	}
	if !got.IsZero() {
		t.Fatalf("GetStorage after revert = %s, want zero hash", got)
	}
}

func TestRootChangesWithAccountState(t *testing.T) {
	db, err := leveldb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer db.Close()

	st := New(db)
	rootBefore, err := st.Root()
	if err != nil {
		t.Fatalf("Root: %s", err)
	}

	if err := st.AddBalance(addr(3), uint256.NewInt(1)); err != nil {
		t.Fatalf("AddBalance: %s", err)
	}
	rootAfter, err := st.Root()
	if err != nil {
		t.Fatalf("Root: %s", err)
	}

	if rootBefore == rootAfter {
		t.Fatalf("Root did not change after a balance mutation")
	}
}

func TestSetCodeMarksAccountAsContract(t *testing.T) {
	db, err := leveldb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer db.Close()

	a := addr(4)
	st := New(db)
	if err := st.SetCode(a, []byte{0x60, 0x00}); err != nil {
		t.Fatalf("SetCode: %s", err)
	}

	account, ok, err := st.GetAccount(a)
	if err != nil {
		t.Fatalf("GetAccount: %s", err)
	}
	if !ok {
		t.Fatalf("GetAccount: expected account to exist after SetCode")
	}
	if !account.IsContract() {
		t.Fatalf("IsContract = false, want true after SetCode")
	}

	code, err := st.GetCode(a)
	if err != nil {
		t.Fatalf("GetCode: %s", err)
	}
	if string(code) != "\x60\x00" {
		t.Fatalf("GetCode = %x, want 6000", code)
	}
}
