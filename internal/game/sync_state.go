// internal/game/sync_state.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/turnsync/internal/protocol"
)

// SyncState returns the full sequencing snapshot sent to (re)connecting clients.
func (m *Match) SyncState() protocol.SyncState {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.syncState()
}

// syncState assumes lock is held.
func (m *Match) syncState() protocol.SyncState {
	st := protocol.SyncState{
		MatchID:    m.ID,
		Started:    m.Started,
		Over:       m.Over,
		Round:      m.roundNumber,
		TurnOrder:  append([]uuid.UUID{}, m.turnOrder...),
		ServerTime: m.sequencer.Now().UnixMilli(),
	}
	if player, ok := m.CurrentPlayer(); ok {
		st.CurrentPlayer = player
	}

	if cur := m.CurrentPhase(); cur != nil {
		snap := protocol.SnapshotOf(cur)
		if m.sequencer.Pending() {
			// the sequencer's item has not executed yet: clients know it only as pending
			st.Pending = &snap
			st.Current = m.lastEntered
		} else {
			st.Current = &snap
		}
	}

	for _, p := range m.Players {
		st.Players = append(st.Players, protocol.PlayerState{ID: p.ID, Connected: p.Connected})
	}
	return st
}

// sendSyncState assumes lock is held.
func (m *Match) sendSyncState(playerID uuid.UUID) {
	m.fireMessageToPlayer(playerID, protocol.NewSyncState(m.syncState()))
}
