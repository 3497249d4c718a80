// Package blockrelationstore persists each block's parent set and
// maintains the derived children index and tip set, grounded on the
// staging/cache/commit pattern of the teacher's
// domain/consensus/datastructures/ghostdagdatastore.
package blockrelationstore

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/dagchaind/dagchaind/consensus/model"
	"github.com/dagchaind/dagchaind/primitives"
	"github.com/dagchaind/dagchaind/storage"
)

var parentsBucket = []byte("parents/")
var childrenBucket = []byte("children/")
var tipKey = []byte("tips")

// Store persists block parent/child relations and the tip set.
type Store struct {
	stagedParents  map[primitives.Hash][]primitives.Hash
	stagedChildren map[primitives.Hash][]primitives.Hash
	stagedTips     *primitives.HashSet

	parentsCache *lru.Cache[primitives.Hash, []primitives.Hash]
	childCache   *lru.Cache[primitives.Hash, []primitives.Hash]
}

// New creates a Store whose read caches hold up to cacheSize entries each.
func New(cacheSize int) *Store {
	parentsCache, _ := lru.New[primitives.Hash, []primitives.Hash](cacheSize)
	childCache, _ := lru.New[primitives.Hash, []primitives.Hash](cacheSize)
	return &Store{
		stagedParents:  make(map[primitives.Hash][]primitives.Hash),
		stagedChildren: make(map[primitives.Hash][]primitives.Hash),
		parentsCache:   parentsCache,
		childCache:     childCache,
	}
}

// StageBlock records hash's parents and appends hash as a child of each of
// them. Callers must call Commit to persist; staged data is visible to
// Parents, Children and Tips within the same store instance before commit so construction of one
// block can immediately query its own just-staged relations.
func (s *Store) StageBlock(db model.DBReader, hash primitives.Hash, parents []primitives.Hash) error {
	s.stagedParents[hash] = append([]primitives.Hash(nil), parents...)

	tips, err := s.Tips(db)
	if err != nil {
		return err
	}
	tips.Add(hash)
	for _, p := range parents {
		delete(tips, p)
		children, err := s.Children(db, p)
		if err != nil {
			return err
		}
		s.stagedChildren[p] = append(children, hash)
	}
	s.stagedTips = &tips

	return nil
}

// IsStaged reports whether there are uncommitted writes.
func (s *Store) IsStaged() bool {
	return len(s.stagedParents) != 0 || s.stagedTips != nil
}

// Discard drops all staged writes without persisting them.
func (s *Store) Discard() {
	s.stagedParents = make(map[primitives.Hash][]primitives.Hash)
	s.stagedChildren = make(map[primitives.Hash][]primitives.Hash)
	s.stagedTips = nil
}

// Commit persists every staged relation and the tip set through tx.
func (s *Store) Commit(tx model.DBTransaction) error {
	for hash, parents := range s.stagedParents {
		if err := tx.Put(storage.CFBlockRelations, parentsKey(hash), encodeHashes(parents)); err != nil {
			return err
		}
		s.parentsCache.Add(hash, parents)
	}
	for hash, children := range s.stagedChildren {
		if err := tx.Put(storage.CFBlockRelations, childrenKey(hash), encodeHashes(children)); err != nil {
			return err
		}
		s.childCache.Add(hash, children)
	}
	if s.stagedTips != nil {
		if err := tx.Put(storage.CFBlockRelations, tipKey, encodeHashes(s.stagedTips.Slice())); err != nil {
			return err
		}
	}
	s.Discard()
	return nil
}

// Parents returns the stored parent set of hash.
func (s *Store) Parents(db model.DBReader, hash primitives.Hash) ([]primitives.Hash, error) {
	if p, ok := s.stagedParents[hash]; ok {
		return p, nil
	}
	if p, ok := s.parentsCache.Get(hash); ok {
		return p, nil
	}
	raw, ok, err := db.Get(storage.CFBlockRelations, parentsKey(hash))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Errorf("blockrelationstore: no parents stored for %s", hash)
	}
	parents := decodeHashes(raw)
	s.parentsCache.Add(hash, parents)
	return parents, nil
}

// Children returns the stored child set of hash (empty if hash is a tip).
func (s *Store) Children(db model.DBReader, hash primitives.Hash) ([]primitives.Hash, error) {
	if c, ok := s.stagedChildren[hash]; ok {
		return c, nil
	}
	if c, ok := s.childCache.Get(hash); ok {
		return c, nil
	}
	raw, ok, err := db.Get(storage.CFBlockRelations, childrenKey(hash))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	children := decodeHashes(raw)
	s.childCache.Add(hash, children)
	return children, nil
}

// Tips returns the current tip set.
func (s *Store) Tips(db model.DBReader) (primitives.HashSet, error) {
	if s.stagedTips != nil {
		return cloneSet(*s.stagedTips), nil
	}
	raw, ok, err := db.Get(storage.CFBlockRelations, tipKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return primitives.NewHashSet(), nil
	}
	return primitives.NewHashSet(decodeHashes(raw)...), nil
}

func cloneSet(s primitives.HashSet) primitives.HashSet {
	out := make(primitives.HashSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func parentsKey(hash primitives.Hash) []byte {
	return append(append([]byte{}, parentsBucket...), hash[:]...)
}

func childrenKey(hash primitives.Hash) []byte {
	return append(append([]byte{}, childrenBucket...), hash[:]...)
}

func encodeHashes(hashes []primitives.Hash) []byte {
	out := make([]byte, 0, len(hashes)*primitives.HashSize)
	for _, h := range hashes {
		out = append(out, h[:]...)
	}
	return out
}

func decodeHashes(raw []byte) []primitives.Hash {
	n := len(raw) / primitives.HashSize
	out := make([]primitives.Hash, 0, n)
	for i := 0; i < n; i++ {
		h, _ := primitives.HashFromSlice(raw[i*primitives.HashSize : (i+1)*primitives.HashSize])
		out = append(out, h)
	}
	return out
}
