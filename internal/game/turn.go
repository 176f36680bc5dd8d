// internal/game/turn.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/turnsync/internal/phase"
	"github.com/jason-s-yu/turnsync/internal/protocol"
)

// The methods below implement phase.TurnedGame. Phases call them while the match lock is held.

var _ phase.TurnedGame = (*Match)(nil)

func (m *Match) CurrentPhase() *phase.Phase {
	p, _ := m.sequencer.Current().(*phase.Phase)
	return p
}

// EndCurrentTurnPhase hands next to the sequencer. It executes on the next advance.
func (m *Match) EndCurrentTurnPhase(next *phase.Phase) {
	if m.Over {
		return
	}
	m.sequencer.SetCurrent(next)
}

// NextPlayersTurn moves cyclically to the next seat of the turn order and reports whether it wrapped
// past the last seat.
func (m *Match) NextPlayersTurn() bool {
	if len(m.turnOrder) == 0 {
		m.currentPlayerIndex = -1
		return true
	}
	next := m.currentPlayerIndex + 1
	wrapped := next >= len(m.turnOrder)
	m.currentPlayerIndex = next % len(m.turnOrder)
	return wrapped
}

// FirstTurnPhase seats the first player of the round.
func (m *Match) FirstTurnPhase() *phase.Phase {
	if len(m.turnOrder) == 0 {
		m.log.Warn("FirstTurnPhase: empty turn order, match stalls.")
		return nil
	}
	m.currentPlayerIndex = 0
	return m.NewPhase(phase.BeginTurn)
}

func (m *Match) PhaseAfterTurn(wrapped bool) *phase.Phase {
	if wrapped {
		return m.NewPhase(phase.RoundEnd)
	}
	return m.NewPhase(phase.BeginTurn)
}

// NewPhase builds a phase owned by this match. Phases built during a player's turn carry that
// player's response timer modifier.
func (m *Match) NewPhase(id phase.ID) *phase.Phase {
	var mod time.Duration
	if player, ok := m.CurrentPlayer(); ok && id.TurnScoped() {
		mod = m.timerMods[player]
	}
	p := phase.New(id, phase.Owner{MatchID: m.ID, Games: m.registry}, m.Rules.Timeout(id), mod, m.log)
	p.Gate = m.Rules.InputGate
	return p
}

func (m *Match) StartNextRound() int {
	m.roundNumber++
	m.logAction(uuid.Nil, "round_start", map[string]interface{}{"round": m.roundNumber})
	return m.roundNumber
}

func (m *Match) RoundNumber() int {
	return m.roundNumber
}

func (m *Match) CurrentPlayer() (uuid.UUID, bool) {
	if m.currentPlayerIndex < 0 || m.currentPlayerIndex >= len(m.turnOrder) {
		return uuid.Nil, false
	}
	return m.turnOrder[m.currentPlayerIndex], true
}

func (m *Match) IsParticipant(playerID uuid.UUID) bool {
	return m.getPlayerByID(playerID) != nil
}

func (m *Match) OnBeforeNextRound(p *phase.Phase) {
	m.announceDelayed(p)
}

func (m *Match) OnNextRoundBegan(p *phase.Phase) {
	m.log.WithField("round", p.Round).Debug("Round began.")
}

func (m *Match) OnBeforeRoundEnd(p *phase.Phase) {
	m.announceDelayed(p)
}

func (m *Match) OnRoundEnded(p *phase.Phase) {
	m.log.WithField("round", p.Round).Info("Round ended.")
	m.logAction(uuid.Nil, "round_end", map[string]interface{}{"round": p.Round})
	if m.OnRoundEnd != nil {
		m.OnRoundEnd(m.ID, p.Round)
	}
}

func (m *Match) OnBeforeNextTurnPhase(p *phase.Phase) {
	m.announceDelayed(p)
}

// OnNextTurnPhase announces a phase that just executed.
func (m *Match) OnNextTurnPhase(p *phase.Phase) {
	m.logAction(p.Player, "phase_entered", map[string]interface{}{
		"phase": int(p.ID),
		"name":  p.Name,
		"round": p.Round,
	})
	snap := protocol.SnapshotOf(p)
	m.lastEntered = &snap
	m.fireMessage(protocol.NewPhaseUpdate(protocol.Entered, p))
}

// announceDelayed tells clients a phase became current and when it will execute. Immediate phases
// are only announced once they executed.
func (m *Match) announceDelayed(p *phase.Phase) {
	if !p.Timing().Delayed() {
		return
	}
	m.fireMessage(protocol.NewPhaseUpdate(protocol.EnteredWithDelay, p))
}
