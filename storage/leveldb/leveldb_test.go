package leveldb

import (
	"testing"

	"github.com/dagchaind/dagchaind/storage"
)

func TestPutGetAcrossColumnFamilies(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer db.Close()

	if err := db.Put(storage.CFAccounts, []byte("addr1"), []byte("balance1")); err != nil {
		t.Fatalf("put: %s", err)
	}
	if err := db.Put(storage.CFBlocks, []byte("addr1"), []byte("block1")); err != nil {
		t.Fatalf("put: %s", err)
	}

	v, ok, err := db.Get(storage.CFAccounts, []byte("addr1"))
	if err != nil || !ok || string(v) != "balance1" {
		t.Fatalf("unexpected accounts read: %q %v %v", v, ok, err)
	}
	v, ok, err = db.Get(storage.CFBlocks, []byte("addr1"))
	if err != nil || !ok || string(v) != "block1" {
		t.Fatalf("unexpected blocks read: %q %v %v", v, ok, err)
	}
}

func TestTransactionCommitIsAtomic(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %s", err)
	}
	if err := tx.Put(storage.CFBlocks, []byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("put: %s", err)
	}
	if err := tx.Put(storage.CFMetadata, []byte("k2"), []byte("v2")); err != nil {
		t.Fatalf("put: %s", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %s", err)
	}

	if _, ok, _ := db.Get(storage.CFBlocks, []byte("k1")); !ok {
		t.Fatal("expected k1 to be committed")
	}
	if _, ok, _ := db.Get(storage.CFMetadata, []byte("k2")); !ok {
		t.Fatal("expected k2 to be committed")
	}
}

func TestTransactionRollbackDiscardsWrites(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %s", err)
	}
	if err := tx.Put(storage.CFBlocks, []byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("put: %s", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %s", err)
	}

	if _, ok, _ := db.Get(storage.CFBlocks, []byte("k1")); ok {
		t.Fatal("expected rolled-back write to be absent")
	}
}

func TestCursorPrefixScan(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer db.Close()

	for _, k := range []string{"a/1", "a/2", "b/1"} {
		if err := db.Put(storage.CFStorage, []byte(k), []byte("v")); err != nil {
			t.Fatalf("put: %s", err)
		}
	}

	cur, err := db.Cursor(storage.CFStorage, []byte("a/"))
	if err != nil {
		t.Fatalf("cursor: %s", err)
	}
	defer cur.Close()

	count := 0
	for cur.Next() {
		count++
	}
	if err := cur.Error(); err != nil {
		t.Fatalf("cursor error: %s", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 keys under prefix a/, got %d", count)
	}
}
