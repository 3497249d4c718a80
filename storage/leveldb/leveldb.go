// Package leveldb implements storage.Database on top of goleveldb, the
// same embedded engine the teacher vendors (github.com/btcsuite/goleveldb,
// itself a fork of github.com/syndtr/goleveldb). Column families are
// realised as a single-byte-length-prefixed key namespace rather than
// separate physical tables, so writes spanning several CFs still commit
// atomically through one underlying leveldb.Transaction.
package leveldb

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	glutil "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/dagchaind/dagchaind/errs"
	"github.com/dagchaind/dagchaind/storage"
)

// DB wraps a goleveldb handle as a storage.Database.
type DB struct {
	ldb *leveldb.DB
}

// Open opens (creating if absent) a goleveldb store rooted at dataDir.
func Open(dataDir string) (*DB, error) {
	ldb, err := leveldb.OpenFile(dataDir, nil)
	if err != nil {
		return nil, errs.NewStorageError(errs.StorageCorruption, errors.Wrap(err, "open leveldb"))
	}
	return &DB{ldb: ldb}, nil
}

func namespacedKey(cf storage.ColumnFamily, key []byte) []byte {
	out := make([]byte, 0, len(cf)+1+len(key))
	out = append(out, byte(len(cf)))
	out = append(out, cf...)
	return append(out, key...)
}

// Get implements storage.DataAccessor.
func (db *DB) Get(cf storage.ColumnFamily, key []byte) ([]byte, bool, error) {
	v, err := db.ldb.Get(namespacedKey(cf, key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.NewStorageError(errs.StorageCommit, err)
	}
	return v, true, nil
}

// Put implements storage.DataAccessor.
func (db *DB) Put(cf storage.ColumnFamily, key, value []byte) error {
	if err := db.ldb.Put(namespacedKey(cf, key), value, nil); err != nil {
		return errs.NewStorageError(errs.StorageCommit, err)
	}
	return nil
}

// Has implements storage.DataAccessor.
func (db *DB) Has(cf storage.ColumnFamily, key []byte) (bool, error) {
	ok, err := db.ldb.Has(namespacedKey(cf, key), nil)
	if err != nil {
		return false, errs.NewStorageError(errs.StorageCommit, err)
	}
	return ok, nil
}

// Delete implements storage.DataAccessor.
func (db *DB) Delete(cf storage.ColumnFamily, key []byte) error {
	if err := db.ldb.Delete(namespacedKey(cf, key), nil); err != nil {
		return errs.NewStorageError(errs.StorageCommit, err)
	}
	return nil
}

// Cursor implements storage.DataAccessor.
func (db *DB) Cursor(cf storage.ColumnFamily, prefix []byte) (storage.Cursor, error) {
	fullPrefix := namespacedKey(cf, prefix)
	it := db.ldb.NewIterator(glutil.BytesPrefix(fullPrefix), nil)
	return &cursor{it: it, cf: cf, prefixLen: len(fullPrefix) - len(prefix)}, nil
}

// Begin starts a goleveldb transaction and wraps it as storage.Transaction.
func (db *DB) Begin() (storage.Transaction, error) {
	tx, err := db.ldb.OpenTransaction()
	if err != nil {
		return nil, errs.NewStorageError(errs.StorageCommit, err)
	}
	return &transaction{tx: tx}, nil
}

// Close implements storage.Database.
func (db *DB) Close() error {
	return db.ldb.Close()
}

type transaction struct {
	tx *leveldb.Transaction
}

func (t *transaction) Get(cf storage.ColumnFamily, key []byte) ([]byte, bool, error) {
	v, err := t.tx.Get(namespacedKey(cf, key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.NewStorageError(errs.StorageCommit, err)
	}
	return v, true, nil
}

func (t *transaction) Put(cf storage.ColumnFamily, key, value []byte) error {
	if err := t.tx.Put(namespacedKey(cf, key), value, nil); err != nil {
		return errs.NewStorageError(errs.StorageCommit, err)
	}
	return nil
}

func (t *transaction) Has(cf storage.ColumnFamily, key []byte) (bool, error) {
	ok, err := t.tx.Has(namespacedKey(cf, key), nil)
	if err != nil {
		return false, errs.NewStorageError(errs.StorageCommit, err)
	}
	return ok, nil
}

func (t *transaction) Delete(cf storage.ColumnFamily, key []byte) error {
	if err := t.tx.Delete(namespacedKey(cf, key), nil); err != nil {
		return errs.NewStorageError(errs.StorageCommit, err)
	}
	return nil
}

func (t *transaction) Cursor(cf storage.ColumnFamily, prefix []byte) (storage.Cursor, error) {
	fullPrefix := namespacedKey(cf, prefix)
	it := t.tx.NewIterator(glutil.BytesPrefix(fullPrefix), nil)
	return &cursor{it: it, cf: cf, prefixLen: len(fullPrefix) - len(prefix)}, nil
}

// Commit implements storage.Transaction. A failure here is the
// StorageError::Commit failure mode in §4.1: the whole append did not
// happen and in-memory indexes must not be updated.
func (t *transaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return errs.NewStorageError(errs.StorageCommit, err)
	}
	return nil
}

func (t *transaction) Rollback() error {
	t.tx.Discard()
	return nil
}

type cursor struct {
	it        iterator.Iterator
	cf        storage.ColumnFamily
	prefixLen int
}

func (c *cursor) Next() bool { return c.it.Next() }
func (c *cursor) Error() error {
	if err := c.it.Error(); err != nil {
		return errs.NewStorageError(errs.StorageCommit, err)
	}
	return nil
}
func (c *cursor) Key() []byte {
	k := c.it.Key()
	if len(k) < c.prefixLen {
		return nil
	}
	out := make([]byte, len(k)-c.prefixLen)
	copy(out, k[c.prefixLen:])
	return out
}
func (c *cursor) Value() []byte {
	v := c.it.Value()
	out := make([]byte, len(v))
	copy(out, v)
	return out
}
func (c *cursor) Close() error {
	c.it.Release()
	return nil
}
