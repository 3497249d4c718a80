// Package dagtopologymanager answers relationship queries over the DAG
// (parents, children, ancestry, selected-parent-chain membership),
// grounded on the teacher's
// domain/consensus/processes/dagtopologymanager. The teacher answers
// ancestry through a dedicated reachability-tree index; dagchaind has no
// such index, so IsAncestorOf walks the block-relation DAG directly and
// IsInSelectedParentChainOf walks the selected-parent chain recorded by
// ghostdagdatastore. Both are O(depth) rather than O(log n), acceptable
// for a core that does not yet need sub-millisecond reachability queries.
package dagtopologymanager

import (
	"github.com/dagchaind/dagchaind/consensus/datastructures/blockrelationstore"
	"github.com/dagchaind/dagchaind/consensus/datastructures/ghostdagdatastore"
	"github.com/dagchaind/dagchaind/consensus/model"
	"github.com/dagchaind/dagchaind/primitives"
)

// Manager answers DAG topology queries over the block-relation store.
type Manager struct {
	db            model.DBReader
	relationStore *blockrelationstore.Store
	ghostdagStore *ghostdagdatastore.Store
}

// New builds a Manager reading through db.
func New(db model.DBReader, relationStore *blockrelationstore.Store, ghostdagStore *ghostdagdatastore.Store) *Manager {
	return &Manager{db: db, relationStore: relationStore, ghostdagStore: ghostdagStore}
}

// Parents returns the DAG parents of blockHash.
func (m *Manager) Parents(blockHash primitives.Hash) ([]primitives.Hash, error) {
	return m.relationStore.Parents(m.db, blockHash)
}

// Children returns the DAG children of blockHash.
func (m *Manager) Children(blockHash primitives.Hash) ([]primitives.Hash, error) {
	return m.relationStore.Children(m.db, blockHash)
}

// IsParentOf reports whether a is a direct parent of b.
func (m *Manager) IsParentOf(a, b primitives.Hash) (bool, error) {
	parents, err := m.relationStore.Parents(m.db, b)
	if err != nil {
		return false, err
	}
	return containsHash(parents, a), nil
}

// IsChildOf reports whether a is a direct child of b.
func (m *Manager) IsChildOf(a, b primitives.Hash) (bool, error) {
	children, err := m.relationStore.Children(m.db, b)
	if err != nil {
		return false, err
	}
	return containsHash(children, a), nil
}

// IsAncestorOf reports whether a is a DAG ancestor of b (a != b), walking
// b's parent edges breadth-first.
func (m *Manager) IsAncestorOf(a, b primitives.Hash) (bool, error) {
	if a == b {
		return false, nil
	}
	visited := primitives.NewHashSet()
	queue := []primitives.Hash{b}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		parents, err := m.relationStore.Parents(m.db, cur)
		if err != nil {
			return false, err
		}
		for _, p := range parents {
			if p == a {
				return true, nil
			}
			if visited.Contains(p) {
				continue
			}
			visited.Add(p)
			queue = append(queue, p)
		}
	}
	return false, nil
}

// IsDescendantOf reports whether a is a DAG descendant of b.
func (m *Manager) IsDescendantOf(a, b primitives.Hash) (bool, error) {
	return m.IsAncestorOf(b, a)
}

// IsAncestorOfAny reports whether blockHash is an ancestor of at least one
// of potentialDescendants.
func (m *Manager) IsAncestorOfAny(blockHash primitives.Hash, potentialDescendants []primitives.Hash) (bool, error) {
	for _, d := range potentialDescendants {
		ok, err := m.IsAncestorOf(blockHash, d)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// IsInSelectedParentChainOf reports whether a lies on b's selected parent
// chain, walking selected-parent links recorded in ghostdagStore.
func (m *Manager) IsInSelectedParentChainOf(a, b primitives.Hash) (bool, error) {
	cur := b
	for {
		if cur == a {
			return true, nil
		}
		data, err := m.ghostdagStore.Get(m.db, cur)
		if err != nil {
			// cur has no recorded GHOSTDAG data (an as-yet unclassified
			// block): chain ends here. Genesis itself is recognised below
			// by its zero selected parent.
			return false, nil
		}
		if data.SelectedParent.IsZero() {
			return false, nil
		}
		if data.SelectedParent == a {
			return true, nil
		}
		cur = data.SelectedParent
	}
}

// Tips returns the current tip set.
func (m *Manager) Tips() (primitives.HashSet, error) {
	return m.relationStore.Tips(m.db)
}

func containsHash(hashes []primitives.Hash, target primitives.Hash) bool {
	for _, h := range hashes {
		if h == target {
			return true
		}
	}
	return false
}
