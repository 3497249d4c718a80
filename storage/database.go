// Package storage defines the columnar, atomic key-value contract every
// persisted dagchaind record goes through (C2 in the component design).
// The interfaces mirror the teacher's database2 package (Database,
// DataAccessor, Cursor, Transaction) near-verbatim in shape; the shipped
// driver (storage/leveldb) backs them with goleveldb instead of the
// teacher's flat-file hybrid, since this core has no block-body flat
// files to manage -- every record here is a plain KV entry.
package storage

import "github.com/dagchaind/dagchaind/errs"

// ColumnFamily names the logical bucket a key belongs to. Column families
// are realised as key prefixes by the driver, not as separate physical
// tables, so cross-CF atomicity is free.
type ColumnFamily string

// Column families required by the component design §4.1/§6.
const (
	CFBlocks         ColumnFamily = "blocks"
	CFBlockByHeight  ColumnFamily = "block_by_height"
	CFTxByHash       ColumnFamily = "tx_by_hash"
	CFReceipts       ColumnFamily = "receipts"
	CFAccounts       ColumnFamily = "accounts"
	CFStorage        ColumnFamily = "storage"
	CFMetadata       ColumnFamily = "metadata"
	CFBlockRelations ColumnFamily = "block_relations"
	CFGhostdagData   ColumnFamily = "ghostdag_data"
)

// DataAccessor is the read/write surface shared by Database and
// Transaction: get/put/delete/prefix-scan over a column family.
type DataAccessor interface {
	Get(cf ColumnFamily, key []byte) ([]byte, bool, error)
	Put(cf ColumnFamily, key, value []byte) error
	Has(cf ColumnFamily, key []byte) (bool, error)
	Delete(cf ColumnFamily, key []byte) error
	Cursor(cf ColumnFamily, prefix []byte) (Cursor, error)
}

// Write is one queued mutation for an atomic batch commit.
type Write struct {
	CF     ColumnFamily
	Key    []byte
	Value  []byte
	Delete bool
}

// Transaction is a Database handle plus the ability to atomically commit
// or discard the writes staged on it. A commit I/O failure is surfaced as
// errs.StorageError with code StorageCommit; per the component design,
// the caller must treat the whole append as not performed.
type Transaction interface {
	DataAccessor
	Commit() error
	Rollback() error
}

// Database is the top-level handle: open a transaction, scan, or close.
type Database interface {
	DataAccessor
	Begin() (Transaction, error)
	Close() error
}

// Cursor iterates over key/value pairs within one column family and key
// prefix, in ascending key order.
type Cursor interface {
	Next() bool
	Error() error
	Key() []byte
	Value() []byte
	Close() error
}

// PutBatch performs the [(cf, key, value)] atomic batch write described by
// §4.1 in one transaction.
func PutBatch(db Database, writes []Write) error {
	tx, err := db.Begin()
	if err != nil {
		return errs.NewStorageError(errs.StorageCommit, err)
	}
	for _, w := range writes {
		if w.Delete {
			if err := tx.Delete(w.CF, w.Key); err != nil {
				_ = tx.Rollback()
				return errs.NewStorageError(errs.StorageCommit, err)
			}
			continue
		}
		if err := tx.Put(w.CF, w.Key, w.Value); err != nil {
			_ = tx.Rollback()
			return errs.NewStorageError(errs.StorageCommit, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.NewStorageError(errs.StorageCommit, err)
	}
	return nil
}
