// Package ghostdagmanager implements the GhostDAG classification
// algorithm: selected-parent choice, mergeset computation, and the
// k-cluster blue/red partition. It is grounded on the teacher's
// domain/consensus/processes/ghostdagmanager (mergeset.go, compare.go for
// the mergeset and the BlueWork-then-hash selected-parent comparator) and
// the older blockdag/ghostdag.go (for the k-cluster candidate-walk
// algorithm itself, which the newer package had not yet carried over).
package ghostdagmanager

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/dagchaind/dagchaind/consensus/datastructures/ghostdagdatastore"
	"github.com/dagchaind/dagchaind/consensus/model"
	"github.com/dagchaind/dagchaind/consensus/processes/dagtopologymanager"
	"github.com/dagchaind/dagchaind/primitives"
)

// Manager computes and persists GHOSTDAG classification data for blocks.
type Manager struct {
	k uint32

	db            model.DBReader
	dagTopology   *dagtopologymanager.Manager
	ghostdagStore *ghostdagdatastore.Store
}

// New builds a Manager running classification at the given k.
func New(k uint32, db model.DBReader, dagTopology *dagtopologymanager.Manager, ghostdagStore *ghostdagdatastore.Store) *Manager {
	return &Manager{k: k, db: db, dagTopology: dagTopology, ghostdagStore: ghostdagStore}
}

// GHOSTDAGData returns the classification result for hash.
func (m *Manager) GHOSTDAGData(hash primitives.Hash) (*model.BlockGHOSTDAGData, error) {
	return m.ghostdagStore.Get(m.db, hash)
}

// ChooseSelectedParent returns the bluest of the given candidates: highest
// blue work, ties broken in favour of the byte-wise smaller hash.
func (m *Manager) ChooseSelectedParent(candidates ...primitives.Hash) (primitives.Hash, error) {
	selected := candidates[0]
	selectedData, err := m.ghostdagStore.Get(m.db, selected)
	if err != nil {
		return primitives.Hash{}, err
	}
	for _, candidate := range candidates[1:] {
		data, err := m.ghostdagStore.Get(m.db, candidate)
		if err != nil {
			return primitives.Hash{}, err
		}
		switch data.BlueWork.Cmp(selectedData.BlueWork) {
		case 1:
			selected, selectedData = candidate, data
		case 0:
			if candidate.Less(selected) {
				selected, selectedData = candidate, data
			}
		}
	}
	return selected, nil
}

// less reports whether (hashA, dataA) sorts before (hashB, dataB): lower
// blue work first, ties broken by the byte-wise hash order.
func less(hashA primitives.Hash, dataA *model.BlockGHOSTDAGData, hashB primitives.Hash, dataB *model.BlockGHOSTDAGData) bool {
	switch dataA.BlueWork.Cmp(dataB.BlueWork) {
	case -1:
		return true
	case 1:
		return false
	default:
		return hashA.Less(hashB)
	}
}

// GenesisData is the classification record for a block with no parents:
// zero selected parent, empty mergeset, blue score and blue work zero.
func GenesisData() *model.BlockGHOSTDAGData {
	return &model.BlockGHOSTDAGData{
		BlueWork:           new(big.Int),
		BluesAnticoneSizes: map[primitives.Hash]uint32{},
	}
}

// chainLink is one step of a selected-parent chain walk: either the block
// currently being classified (data still live, not yet committed) or an
// already-committed ancestor fetched from the store.
type chainLink struct {
	hash           primitives.Hash
	blues          []primitives.Hash
	selectedParent primitives.Hash
	isGenesis      bool
}

// Classify runs GHOSTDAG classification for a block with the given
// parents and returns its BlockGHOSTDAGData. It does not stage or commit
// the result; callers do that through ghostdagStore once the block has
// otherwise passed validation.
func (m *Manager) Classify(parents []primitives.Hash) (*model.BlockGHOSTDAGData, error) {
	if len(parents) == 0 {
		return GenesisData(), nil
	}

	selectedParent, err := m.ChooseSelectedParent(parents...)
	if err != nil {
		return nil, err
	}
	selectedParentData, err := m.ghostdagStore.Get(m.db, selectedParent)
	if err != nil {
		return nil, err
	}

	data := &model.BlockGHOSTDAGData{
		SelectedParent:     selectedParent,
		BluesAnticoneSizes: make(map[primitives.Hash]uint32),
	}
	data.MergeSetBlues = append(data.MergeSetBlues, selectedParent)
	data.BluesAnticoneSizes[selectedParent] = 0

	candidates, err := m.selectedParentAnticone(selectedParent, parents)
	if err != nil {
		return nil, err
	}
	candidates, err = m.sortByIntroductionOrder(candidates)
	if err != nil {
		return nil, err
	}

	var reds []primitives.Hash
	reachedCap := false
	for _, candidate := range candidates {
		if reachedCap {
			reds = append(reds, candidate)
			continue
		}

		possiblyBlue := true
		candidateAnticoneSizes := make(map[primitives.Hash]uint32)
		var candidateAnticoneSize uint32

		// newNode itself (the block being classified) is always the first
		// link in its own selected-parent chain; its blues grow live as
		// earlier candidates in this same pass are accepted.
		link := chainLink{blues: data.MergeSetBlues, selectedParent: selectedParent}
		first := true

		for possiblyBlue {
			if !first {
				isAncestor, err := m.dagTopology.IsAncestorOf(link.hash, candidate)
				if err != nil {
					return nil, err
				}
				if isAncestor {
					break
				}
			}

			for _, blue := range link.blues {
				if blue != link.hash {
					isAncestor, err := m.dagTopology.IsAncestorOf(blue, candidate)
					if err != nil {
						return nil, err
					}
					if isAncestor {
						continue
					}
				}

				size, err := m.blueAnticoneSize(blue, data, selectedParentData)
				if err != nil {
					return nil, err
				}
				candidateAnticoneSizes[blue] = size
				candidateAnticoneSize++
				if candidateAnticoneSize > m.k || size == m.k {
					possiblyBlue = false
					break
				}
				if size > m.k {
					return nil, errors.Errorf("ghostdagmanager: blue anticone size of %s exceeds k", blue)
				}
			}

			if !possiblyBlue {
				break
			}
			if link.isGenesis || link.selectedParent.IsZero() {
				break
			}

			nextHash := link.selectedParent
			var next *model.BlockGHOSTDAGData
			if nextHash == selectedParent {
				next = selectedParentData
			} else {
				next, err = m.ghostdagStore.Get(m.db, nextHash)
				if err != nil {
					return nil, err
				}
			}
			link = chainLink{hash: nextHash, blues: next.MergeSetBlues, selectedParent: next.SelectedParent, isGenesis: next.SelectedParent.IsZero() && len(next.MergeSetBlues) == 0}
			first = false
		}

		if possiblyBlue {
			data.MergeSetBlues = append(data.MergeSetBlues, candidate)
			data.BluesAnticoneSizes[candidate] = candidateAnticoneSize
			for blue, size := range candidateAnticoneSizes {
				data.BluesAnticoneSizes[blue] = size + 1
			}
			if uint32(len(data.MergeSetBlues)) == m.k+1 {
				reachedCap = true
			}
		} else {
			reds = append(reds, candidate)
		}
	}
	data.MergeSetReds = reds

	data.BlueScore = selectedParentData.BlueScore + uint64(len(data.MergeSetBlues))
	data.BlueWork = new(big.Int).Add(selectedParentData.BlueWork, big.NewInt(int64(len(data.MergeSetBlues))))

	return data, nil
}

// blueAnticoneSize returns the blue anticone size blue had from the
// worldview of context, walking context's selected-parent chain until a
// record of blue is found (blue is expected to be in context's blue set).
func (m *Manager) blueAnticoneSize(blue primitives.Hash, context, contextSelectedParentData *model.BlockGHOSTDAGData) (uint32, error) {
	current := context
	for {
		if size, ok := current.BluesAnticoneSizes[blue]; ok {
			return size, nil
		}
		if current == context {
			current = contextSelectedParentData
			continue
		}
		if current.SelectedParent.IsZero() && len(current.MergeSetBlues) == 0 {
			return 0, errors.Errorf("ghostdagmanager: %s is not in the blue set of the classified block", blue)
		}
		next, err := m.ghostdagStore.Get(m.db, current.SelectedParent)
		if err != nil {
			return 0, err
		}
		current = next
	}
}

// sortByIntroductionOrder sorts candidates in ascending blue work (the
// block that first introduced each candidate to the DAG), ties broken
// byte-wise on hash, per spec.md §4.3 step 3. The k-cluster candidate
// walk is order-dependent, so every node must process candidates in this
// same deterministic order to agree on the blue/red partition.
func (m *Manager) sortByIntroductionOrder(candidates []primitives.Hash) ([]primitives.Hash, error) {
	type entry struct {
		hash primitives.Hash
		data *model.BlockGHOSTDAGData
	}
	entries := make([]entry, len(candidates))
	for i, c := range candidates {
		data, err := m.ghostdagStore.Get(m.db, c)
		if err != nil {
			return nil, err
		}
		entries[i] = entry{hash: c, data: data}
	}
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && less(entries[j].hash, entries[j].data, entries[j-1].hash, entries[j-1].data); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	out := make([]primitives.Hash, len(entries))
	for i, e := range entries {
		out[i] = e.hash
	}
	return out, nil
}

// selectedParentAnticone computes the anticone of the selected parent
// among the new block's other parents and their ancestors, stopping
// descent once a block is discovered to already be in the selected
// parent's own past (mirrors mergeset.go's BFS).
func (m *Manager) selectedParentAnticone(selectedParent primitives.Hash, parents []primitives.Hash) ([]primitives.Hash, error) {
	seen := primitives.NewHashSet()
	selectedParentPast := primitives.NewHashSet()
	var out []primitives.Hash
	var queue []primitives.Hash

	for _, p := range parents {
		if p == selectedParent {
			continue
		}
		seen.Add(p)
		out = append(out, p)
		queue = append(queue, p)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		currentParents, err := m.dagTopology.Parents(current)
		if err != nil {
			return nil, err
		}
		for _, p := range currentParents {
			if seen.Contains(p) || selectedParentPast.Contains(p) {
				continue
			}
			isAncestor, err := m.dagTopology.IsAncestorOf(p, selectedParent)
			if err != nil {
				return nil, err
			}
			if isAncestor {
				selectedParentPast.Add(p)
				continue
			}
			seen.Add(p)
			out = append(out, p)
			queue = append(queue, p)
		}
	}

	return out, nil
}
