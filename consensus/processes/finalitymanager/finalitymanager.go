// Package finalitymanager tracks the finalized tip and rejects
// finality-violating reorgs, grounded on the teacher's
// domain/consensus/processes/consensusstatemanager/finality.go
// (virtualFinalityPoint/isViolatingFinality/checkFinalityViolation). The
// teacher's IsInSelectedParentChainOf was an unimplemented stub at the
// time of writing, so the violation check here is derived directly: a
// candidate violates finality when the currently finalized tip is not on
// the candidate's own selected-parent chain.
package finalitymanager

import (
	"github.com/dagchaind/dagchaind/consensus/model"
	"github.com/dagchaind/dagchaind/consensus/processes/dagtopologymanager"
	"github.com/dagchaind/dagchaind/consensus/processes/dagtraversalmanager"
	"github.com/dagchaind/dagchaind/consensus/processes/ghostdagmanager"
	"github.com/dagchaind/dagchaind/primitives"
	"github.com/dagchaind/dagchaind/storage"
)

var finalizedTipKey = []byte("finalized_tip")

// Manager maintains the finalized_tip pointer described by spec §4.5.
type Manager struct {
	finalityDepth uint64

	db          model.DBReader
	dagTopology *dagtopologymanager.Manager
	dagTraverse *dagtraversalmanager.Manager
	ghostdag    *ghostdagmanager.Manager
}

// New builds a Manager enforcing the given finality depth.
func New(finalityDepth uint64, db model.DBReader, dagTopology *dagtopologymanager.Manager, dagTraverse *dagtraversalmanager.Manager, ghostdag *ghostdagmanager.Manager) *Manager {
	return &Manager{finalityDepth: finalityDepth, db: db, dagTopology: dagTopology, dagTraverse: dagTraverse, ghostdag: ghostdag}
}

// FinalizedTip returns the currently finalized tip, or the zero hash if
// finality has never advanced (genesis is implicitly finalized).
func (m *Manager) FinalizedTip() (primitives.Hash, error) {
	raw, ok, err := m.db.Get(storage.CFMetadata, finalizedTipKey)
	if err != nil {
		return primitives.Hash{}, err
	}
	if !ok {
		return primitives.Hash{}, nil
	}
	h, _ := primitives.HashFromSlice(raw)
	return h, nil
}

// FinalityPoint returns the highest selected-parent-chain ancestor of tip
// whose blue score is at most tip's blue score minus finality_depth (zero
// hash if tip's blue score has not yet reached finality_depth).
func (m *Manager) FinalityPoint(tip primitives.Hash) (primitives.Hash, error) {
	tipData, err := m.ghostdag.GHOSTDAGData(tip)
	if err != nil {
		return primitives.Hash{}, err
	}
	if tipData.BlueScore < m.finalityDepth {
		return primitives.Hash{}, nil
	}
	targetScore := tipData.BlueScore - m.finalityDepth
	return m.dagTraverse.HighestChainBlockBelowBlueScore(tip, targetScore+1)
}

// AdvanceFinality recomputes tip's finality point and, if it is further
// along than the currently stored finalized tip, persists it through tx.
// Returns whether the finalized tip advanced.
func (m *Manager) AdvanceFinality(tx model.DBTransaction, tip primitives.Hash) (bool, error) {
	candidate, err := m.FinalityPoint(tip)
	if err != nil {
		return false, err
	}
	if candidate.IsZero() {
		return false, nil
	}

	current, err := m.FinalizedTip()
	if err != nil {
		return false, err
	}
	if current == candidate {
		return false, nil
	}
	if !current.IsZero() {
		candidateData, err := m.ghostdag.GHOSTDAGData(candidate)
		if err != nil {
			return false, err
		}
		currentData, err := m.ghostdag.GHOSTDAGData(current)
		if err != nil {
			return false, err
		}
		if candidateData.BlueScore <= currentData.BlueScore {
			return false, nil
		}
	}

	if err := tx.Put(storage.CFMetadata, finalizedTipKey, candidate[:]); err != nil {
		return false, err
	}
	return true, nil
}

// IsViolatingFinality reports whether candidate's selected-parent chain
// fails to include the currently finalized tip, i.e. accepting candidate
// would reorg past a block already considered immutable.
func (m *Manager) IsViolatingFinality(candidate primitives.Hash) (bool, error) {
	finalizedTip, err := m.FinalizedTip()
	if err != nil {
		return false, err
	}
	if finalizedTip.IsZero() {
		return false, nil
	}
	if finalizedTip == candidate {
		return false, nil
	}
	onChain, err := m.dagTopology.IsInSelectedParentChainOf(finalizedTip, candidate)
	if err != nil {
		return false, err
	}
	return !onChain, nil
}
