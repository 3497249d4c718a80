// Package blockstore persists full blocks by hash and maintains the
// height -> {hash} multimap, grounded on the teacher's
// domain/consensus/datastructures/blockstore staging/cache/commit shape.
package blockstore

import (
	"encoding/binary"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/dagchaind/dagchaind/consensus/model"
	"github.com/dagchaind/dagchaind/primitives"
	"github.com/dagchaind/dagchaind/primitives/rlp"
	"github.com/dagchaind/dagchaind/storage"
)

// Store persists blocks by hash with a height index.
type Store struct {
	staged map[primitives.Hash]*primitives.Block
	cache  *lru.Cache[primitives.Hash, *primitives.Block]
}

// New creates a Store whose read cache holds up to cacheSize blocks.
func New(cacheSize int) *Store {
	cache, _ := lru.New[primitives.Hash, *primitives.Block](cacheSize)
	return &Store{staged: make(map[primitives.Hash]*primitives.Block), cache: cache}
}

// Stage records block for later commit, keyed by its own header hash.
func (s *Store) Stage(block *primitives.Block) {
	s.staged[block.Hash()] = block
}

// IsStaged reports whether there are uncommitted blocks.
func (s *Store) IsStaged() bool { return len(s.staged) != 0 }

// Discard drops all staged blocks.
func (s *Store) Discard() { s.staged = make(map[primitives.Hash]*primitives.Block) }

// Commit persists every staged block and its height-index entry through tx.
func (s *Store) Commit(tx model.DBTransaction) error {
	for hash, block := range s.staged {
		encoded := encodeBlock(block)
		if err := tx.Put(storage.CFBlocks, hash[:], storage.Versioned(encoded)); err != nil {
			return err
		}

		heightKey := heightKey(block.Height)
		existingRaw, ok, err := tx.Get(storage.CFBlockByHeight, heightKey)
		if err != nil {
			return err
		}
		var hashes []primitives.Hash
		if ok {
			hashes = decodeHashList(existingRaw)
		}
		hashes = append(hashes, hash)
		if err := tx.Put(storage.CFBlockByHeight, heightKey, encodeHashList(hashes)); err != nil {
			return err
		}

		s.cache.Add(hash, block)
	}
	s.Discard()
	return nil
}

// Get returns the block stored under hash.
func (s *Store) Get(db model.DBReader, hash primitives.Hash) (*primitives.Block, bool, error) {
	if b, ok := s.staged[hash]; ok {
		return b, true, nil
	}
	if b, ok := s.cache.Get(hash); ok {
		return b, true, nil
	}
	raw, ok, err := db.Get(storage.CFBlocks, hash[:])
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	_, payload, ok := storage.Unversion(raw)
	if !ok {
		return nil, false, errors.New("blockstore: malformed stored block")
	}
	block, err := decodeBlock(payload)
	if err != nil {
		return nil, false, err
	}
	s.cache.Add(hash, block)
	return block, true, nil
}

// GetAtHeight returns every block stored at the given height.
func (s *Store) GetAtHeight(db model.DBReader, height uint64) ([]*primitives.Block, error) {
	raw, ok, err := db.Get(storage.CFBlockByHeight, heightKey(height))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	hashes := decodeHashList(raw)
	blocks := make([]*primitives.Block, 0, len(hashes))
	for _, h := range hashes {
		b, ok, err := s.Get(db, h)
		if err != nil {
			return nil, err
		}
		if ok {
			blocks = append(blocks, b)
		}
	}
	return blocks, nil
}

func heightKey(height uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], height)
	return b[:]
}

func encodeHashList(hashes []primitives.Hash) []byte {
	out := make([]byte, 0, len(hashes)*primitives.HashSize)
	for _, h := range hashes {
		out = append(out, h[:]...)
	}
	return out
}

func decodeHashList(raw []byte) []primitives.Hash {
	n := len(raw) / primitives.HashSize
	out := make([]primitives.Hash, 0, n)
	for i := 0; i < n; i++ {
		h, _ := primitives.HashFromSlice(raw[i*primitives.HashSize : (i+1)*primitives.HashSize])
		out = append(out, h)
	}
	return out
}

func encodeBlock(b *primitives.Block) []byte {
	e := rlp.NewEncoder()
	e.WriteBytes(b.EncodeHeader())
	e.WriteUint64(uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		e.WriteBytes(primitives.EncodeTransaction(tx))
	}
	return e.Bytes()
}

func decodeBlock(payload []byte) (*primitives.Block, error) {
	d := rlp.NewDecoder(payload)
	headerBytes, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	block, err := primitives.DecodeHeader(headerBytes)
	if err != nil {
		return nil, err
	}

	txCount, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	block.Transactions = make([]*primitives.Transaction, 0, txCount)
	for i := uint64(0); i < txCount; i++ {
		raw, err := d.ReadBytes()
		if err != nil {
			return nil, err
		}
		tx, err := primitives.DecodeTransaction(raw)
		if err != nil {
			return nil, err
		}
		block.Transactions = append(block.Transactions, tx)
	}
	return block, nil
}
