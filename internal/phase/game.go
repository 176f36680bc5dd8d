// internal/phase/game.go
package phase

import "github.com/google/uuid"

// TurnedGame is what a phase needs from the game that owns it. Implementations are called with the
// game's lock held.
type TurnedGame interface {
	// CurrentPhase is the phase the game's sequencer currently holds.
	CurrentPhase() *Phase
	// EndCurrentTurnPhase makes next the current phase.
	EndCurrentTurnPhase(next *Phase)
	// NextPlayersTurn advances the current seat cyclically and reports whether it wrapped past the last seat.
	NextPlayersTurn() (wrapped bool)
	// FirstTurnPhase seats the first player of a round and returns the phase that opens their turn.
	FirstTurnPhase() *Phase
	// PhaseAfterTurn picks what follows an ended turn: another turn or the end of the round.
	PhaseAfterTurn(wrapped bool) *Phase
	// NewPhase builds a fresh phase of kind id owned by the game.
	NewPhase(id ID) *Phase
	// StartNextRound increments the round counter and returns the new round number.
	StartNextRound() int
	RoundNumber() int
	CurrentPlayer() (uuid.UUID, bool)
	IsParticipant(playerID uuid.UUID) bool

	OnBeforeNextRound(p *Phase)
	OnNextRoundBegan(p *Phase)
	OnBeforeRoundEnd(p *Phase)
	OnRoundEnded(p *Phase)
	OnBeforeNextTurnPhase(p *Phase)
	OnNextTurnPhase(p *Phase)
}

// Registry resolves a match id to its live game.
type Registry interface {
	Lookup(matchID uuid.UUID) (TurnedGame, bool)
}

// Owner is a non-owning handle to the game a phase belongs to.
type Owner struct {
	MatchID uuid.UUID
	Games   Registry
}

func (o Owner) resolve() (TurnedGame, bool) {
	if o.Games == nil || o.MatchID == uuid.Nil {
		return nil, false
	}
	return o.Games.Lookup(o.MatchID)
}
