// Package ghostdagdatastore persists each block's GhostDAG classification
// result, grounded near-verbatim on the teacher's
// domain/consensus/datastructures/ghostdagdatastore (staging map fronting
// an LRU-cached, committed KV record per block).
package ghostdagdatastore

import (
	"math/big"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/dagchaind/dagchaind/consensus/model"
	"github.com/dagchaind/dagchaind/primitives"
	"github.com/dagchaind/dagchaind/primitives/rlp"
	"github.com/dagchaind/dagchaind/storage"
)

// Store persists model.BlockGHOSTDAGData by block hash.
type Store struct {
	staging map[primitives.Hash]*model.BlockGHOSTDAGData
	cache   *lru.Cache[primitives.Hash, *model.BlockGHOSTDAGData]
}

// New creates a Store whose read cache holds up to cacheSize entries.
func New(cacheSize int) *Store {
	cache, _ := lru.New[primitives.Hash, *model.BlockGHOSTDAGData](cacheSize)
	return &Store{staging: make(map[primitives.Hash]*model.BlockGHOSTDAGData), cache: cache}
}

// Stage records data for blockHash, to be persisted on Commit.
func (s *Store) Stage(blockHash primitives.Hash, data *model.BlockGHOSTDAGData) {
	s.staging[blockHash] = data.Clone()
}

// IsStaged reports whether there are uncommitted entries.
func (s *Store) IsStaged() bool { return len(s.staging) != 0 }

// Discard drops all staged entries.
func (s *Store) Discard() { s.staging = make(map[primitives.Hash]*model.BlockGHOSTDAGData) }

// Commit persists every staged entry through tx.
func (s *Store) Commit(tx model.DBTransaction) error {
	for hash, data := range s.staging {
		encoded := encode(data)
		if err := tx.Put(storage.CFGhostdagData, hash[:], encoded); err != nil {
			return err
		}
		s.cache.Add(hash, data)
	}
	s.Discard()
	return nil
}

// Get returns the classification result stored for blockHash.
func (s *Store) Get(db model.DBReader, blockHash primitives.Hash) (*model.BlockGHOSTDAGData, error) {
	if data, ok := s.staging[blockHash]; ok {
		return data.Clone(), nil
	}
	if data, ok := s.cache.Get(blockHash); ok {
		return data.Clone(), nil
	}
	raw, ok, err := db.Get(storage.CFGhostdagData, blockHash[:])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Errorf("ghostdagdatastore: no data stored for %s", blockHash)
	}
	data, err := decode(raw)
	if err != nil {
		return nil, err
	}
	s.cache.Add(blockHash, data)
	return data.Clone(), nil
}

func encode(d *model.BlockGHOSTDAGData) []byte {
	e := rlp.NewEncoder()
	e.WriteBytes(d.SelectedParent[:])
	e.WriteUint64(uint64(len(d.MergeSetBlues)))
	for _, h := range d.MergeSetBlues {
		e.WriteBytes(h[:])
	}
	e.WriteUint64(uint64(len(d.MergeSetReds)))
	for _, h := range d.MergeSetReds {
		e.WriteBytes(h[:])
	}
	e.WriteUint64(d.BlueScore)
	blueWork := d.BlueWork
	if blueWork == nil {
		blueWork = new(big.Int)
	}
	e.WriteBytes(blueWork.Bytes())
	e.WriteUint64(uint64(len(d.BluesAnticoneSizes)))
	for h, size := range d.BluesAnticoneSizes {
		e.WriteBytes(h[:])
		e.WriteUint64(uint64(size))
	}
	return e.Bytes()
}

func decode(raw []byte) (*model.BlockGHOSTDAGData, error) {
	d := rlp.NewDecoder(raw)
	out := &model.BlockGHOSTDAGData{BluesAnticoneSizes: make(map[primitives.Hash]uint32)}

	spBytes, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	out.SelectedParent, _ = primitives.HashFromSlice(spBytes)

	blueCount, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < blueCount; i++ {
		b, err := d.ReadBytes()
		if err != nil {
			return nil, err
		}
		h, _ := primitives.HashFromSlice(b)
		out.MergeSetBlues = append(out.MergeSetBlues, h)
	}

	redCount, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < redCount; i++ {
		b, err := d.ReadBytes()
		if err != nil {
			return nil, err
		}
		h, _ := primitives.HashFromSlice(b)
		out.MergeSetReds = append(out.MergeSetReds, h)
	}

	if out.BlueScore, err = d.ReadUint64(); err != nil {
		return nil, err
	}

	blueWorkBytes, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	out.BlueWork = new(big.Int).SetBytes(blueWorkBytes)

	anticoneCount, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < anticoneCount; i++ {
		hb, err := d.ReadBytes()
		if err != nil {
			return nil, err
		}
		h, _ := primitives.HashFromSlice(hb)
		size, err := d.ReadUint64()
		if err != nil {
			return nil, err
		}
		out.BluesAnticoneSizes[h] = uint32(size)
	}

	return out, nil
}
