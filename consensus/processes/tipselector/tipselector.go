// Package tipselector chooses the selected parent and merge parents for a
// new locally-proposed block, grounded on
// domain/consensus/processes/ghostdagmanager's blue-work comparator
// (ChooseSelectedParent/Less) together with the DAG-traversal/topology
// helpers that answer ancestry. Externally received blocks carry their
// own parents and never go through this package; it exists purely for
// the block builder's own proposal path (spec §4.4).
package tipselector

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/dagchaind/dagchaind/consensus/model"
	"github.com/dagchaind/dagchaind/consensus/processes/dagtopologymanager"
	"github.com/dagchaind/dagchaind/consensus/processes/ghostdagmanager"
	"github.com/dagchaind/dagchaind/primitives"
)

// Selector picks selected and merge parents from the current tip set.
type Selector struct {
	dagTopology *dagtopologymanager.Manager
	ghostdag    *ghostdagmanager.Manager
}

// New builds a Selector.
func New(dagTopology *dagtopologymanager.Manager, ghostdag *ghostdagmanager.Manager) *Selector {
	return &Selector{dagTopology: dagTopology, ghostdag: ghostdag}
}

// Selection is the parent set chosen for a new block proposal.
type Selection struct {
	SelectedParent primitives.Hash
	MergeParents   []primitives.Hash
}

// Select returns the selected parent (highest blue work, lowest hash
// tiebreak, via ghostdagmanager.ChooseSelectedParent) and up to maxParents-1 merge parents from the current tip
// set, excluding tips that are already ancestors of the selected parent.
func (s *Selector) Select(maxParents uint32) (*Selection, error) {
	tips, err := s.dagTopology.Tips()
	if err != nil {
		return nil, err
	}
	tipList := tips.Slice()
	if len(tipList) == 0 {
		return nil, errors.New("tipselector: no tips to select parents from")
	}

	selectedParent, err := s.ghostdag.ChooseSelectedParent(tipList...)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		hash primitives.Hash
		data *model.BlockGHOSTDAGData
	}
	var candidates []candidate
	for _, tip := range tipList {
		if tip == selectedParent {
			continue
		}
		isAncestor, err := s.dagTopology.IsAncestorOf(tip, selectedParent)
		if err != nil {
			return nil, err
		}
		if isAncestor {
			continue
		}
		data, err := s.ghostdag.GHOSTDAGData(tip)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate{hash: tip, data: data})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.data.BlueScore != b.data.BlueScore {
			return a.data.BlueScore > b.data.BlueScore
		}
		return a.hash.Less(b.hash)
	})

	budget := int(maxParents) - 1
	if budget < 0 {
		budget = 0
	}
	if len(candidates) > budget {
		candidates = candidates[:budget]
	}

	mergeParents := make([]primitives.Hash, 0, len(candidates))
	for _, c := range candidates {
		mergeParents = append(mergeParents, c.hash)
	}

	return &Selection{SelectedParent: selectedParent, MergeParents: mergeParents}, nil
}
