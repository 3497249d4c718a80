// Package model defines the shared types dagchaind's consensus
// datastructures and processes pass between each other: GhostDAG data per
// block, the config parameters classification runs under, and the tiny
// DB abstraction (DBReader/DBTransaction) the datastructures stage writes
// through. It plays the same role as the teacher's
// domain/consensus/model package.
package model

import (
	"math/big"

	"github.com/dagchaind/dagchaind/primitives"
	"github.com/dagchaind/dagchaind/storage"
)

// GhostdagParams are the tunables GhostDAG classification runs under.
type GhostdagParams struct {
	K          uint32
	MaxParents uint32
}

// DefaultGhostdagParams match the configuration surface's documented
// defaults (k=18, max_parents=10).
var DefaultGhostdagParams = GhostdagParams{K: 18, MaxParents: 10}

// BlockGHOSTDAGData is the per-block classification result: the blue set
// partitioned from the rest of the mergeset, the cumulative blue score,
// and enough bookkeeping (BluesAnticoneSizes) to extend the classification
// incrementally when a child arrives, mirroring the teacher's
// model.BlockGHOSTDAGData.
type BlockGHOSTDAGData struct {
	SelectedParent     primitives.Hash
	MergeSetBlues      []primitives.Hash // selected parent first
	MergeSetReds       []primitives.Hash
	BlueScore          uint64
	BlueWork           *big.Int
	BluesAnticoneSizes map[primitives.Hash]uint32
}

// Clone returns a deep copy, since stores hand out owned copies to callers
// per the staging pattern (never alias internal state).
func (d *BlockGHOSTDAGData) Clone() *BlockGHOSTDAGData {
	if d == nil {
		return nil
	}
	clone := &BlockGHOSTDAGData{
		SelectedParent:     d.SelectedParent,
		MergeSetBlues:      append([]primitives.Hash(nil), d.MergeSetBlues...),
		MergeSetReds:       append([]primitives.Hash(nil), d.MergeSetReds...),
		BlueScore:          d.BlueScore,
		BlueWork:           new(big.Int),
		BluesAnticoneSizes: make(map[primitives.Hash]uint32, len(d.BluesAnticoneSizes)),
	}
	if d.BlueWork != nil {
		clone.BlueWork.Set(d.BlueWork)
	}
	for k, v := range d.BluesAnticoneSizes {
		clone.BluesAnticoneSizes[k] = v
	}
	return clone
}

// MergeSet returns the full mergeset in blues-then-reds order, which is
// the authoritative per-block transaction/merge execution order from
// §4.3 step 5 once siblings within each partition are sorted by the
// manager's comparator.
func (d *BlockGHOSTDAGData) MergeSet() []primitives.Hash {
	out := make([]primitives.Hash, 0, len(d.MergeSetBlues)+len(d.MergeSetReds))
	out = append(out, d.MergeSetBlues...)
	out = append(out, d.MergeSetReds...)
	return out
}

// IsBlue reports whether hash is in this block's blue set (including the
// selected parent, which is always blue).
func (d *BlockGHOSTDAGData) IsBlue(hash primitives.Hash) bool {
	for _, h := range d.MergeSetBlues {
		if h == hash {
			return true
		}
	}
	return false
}

// DBReader is the read side of a storage handle, satisfied by both
// storage.Database and storage.Transaction.
type DBReader = storage.DataAccessor

// DBTransaction is the write side datastructure Commit methods write
// through; satisfied by storage.Transaction.
type DBTransaction = storage.Transaction

// TipSet is the current set of blocks with no observed children.
type TipSet = primitives.HashSet
