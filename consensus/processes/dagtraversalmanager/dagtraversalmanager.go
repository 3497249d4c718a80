// Package dagtraversalmanager walks the DAG: selected-parent chain
// iteration, the deepest selected-parent-chain block below a given blue
// score (finality's core query), and a block's anticone relative to the
// current tip set. Grounded on the teacher's
// domain/consensus/processes/dagtraversalmanager (dagtraversalmanager.go,
// anticone.go); the teacher's own SelectedParentIterator and
// HighestChainBlockBelowBlueScore were left as stubs returning (nil, nil),
// so both are implemented here directly against ghostdagdatastore.
package dagtraversalmanager

import (
	"github.com/dagchaind/dagchaind/consensus/datastructures/ghostdagdatastore"
	"github.com/dagchaind/dagchaind/consensus/model"
	"github.com/dagchaind/dagchaind/consensus/processes/dagtopologymanager"
	"github.com/dagchaind/dagchaind/primitives"
)

// Manager walks the DAG relative to the classification and topology data
// already recorded by the other consensus processes.
type Manager struct {
	db            model.DBReader
	dagTopology   *dagtopologymanager.Manager
	ghostdagStore *ghostdagdatastore.Store
}

// New builds a Manager.
func New(db model.DBReader, dagTopology *dagtopologymanager.Manager, ghostdagStore *ghostdagdatastore.Store) *Manager {
	return &Manager{db: db, dagTopology: dagTopology, ghostdagStore: ghostdagStore}
}

// SelectedParentChain returns highHash and every block on its
// selected-parent chain, ordered from highHash down to genesis.
func (m *Manager) SelectedParentChain(highHash primitives.Hash) ([]primitives.Hash, error) {
	var chain []primitives.Hash
	current := highHash
	for {
		chain = append(chain, current)
		data, err := m.ghostdagStore.Get(m.db, current)
		if err != nil {
			return nil, err
		}
		if data.SelectedParent.IsZero() {
			return chain, nil
		}
		current = data.SelectedParent
	}
}

// HighestChainBlockBelowBlueScore returns the hash of the highest block on
// highHash's selected-parent chain whose blue score is strictly lower
// than blueScore. Returns the zero hash if no such block exists (every
// chain block has blue score >= blueScore, including genesis).
func (m *Manager) HighestChainBlockBelowBlueScore(highHash primitives.Hash, blueScore uint64) (primitives.Hash, error) {
	current := highHash
	for {
		data, err := m.ghostdagStore.Get(m.db, current)
		if err != nil {
			return primitives.Hash{}, err
		}
		if data.BlueScore < blueScore {
			return current, nil
		}
		if data.SelectedParent.IsZero() {
			return primitives.Hash{}, nil
		}
		current = data.SelectedParent
	}
}

// Anticone returns every block reachable from the current tip set that is
// in neither the past nor the future of blockHash.
func (m *Manager) Anticone(blockHash primitives.Hash) ([]primitives.Hash, error) {
	tips, err := m.dagTopology.Tips()
	if err != nil {
		return nil, err
	}

	var anticone []primitives.Hash
	visited := primitives.NewHashSet()
	queue := tips.Slice()

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited.Contains(current) {
			continue
		}
		visited.Add(current)

		currentIsAncestor, err := m.dagTopology.IsAncestorOf(current, blockHash)
		if err != nil {
			return nil, err
		}
		if currentIsAncestor || current == blockHash {
			continue
		}

		blockIsAncestor, err := m.dagTopology.IsAncestorOf(blockHash, current)
		if err != nil {
			return nil, err
		}
		if !blockIsAncestor {
			anticone = append(anticone, current)
		}

		parents, err := m.dagTopology.Parents(current)
		if err != nil {
			return nil, err
		}
		queue = append(queue, parents...)
	}

	return anticone, nil
}
