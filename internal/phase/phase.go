// internal/phase/phase.go
package phase

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/turnsync/internal/sequence"
	"github.com/sirupsen/logrus"
)

// Phase is one step of a match's turn structure. It belongs to exactly one game, referenced through
// its Owner; once the game is gone every lifecycle step reports Detached instead of acting.
type Phase struct {
	sequence.Base

	ID   ID
	Name string
	// Next overrides the successor chosen by the transition table when set.
	Next *Phase
	// AllowInputFrom lists the players whose commands are accepted. Recomputed when the phase becomes current.
	AllowInputFrom []uuid.UUID
	// Active is true from execution until the phase ends.
	Active bool
	Gate   InputGate

	// Round and Player describe where in the match the phase sits.
	Round  int
	Player uuid.UUID

	owner Owner
	ended bool
	log   *logrus.Entry
	// wrapped records whether ending this phase moved the turn past the last seat.
	wrapped bool
}

// New builds a phase of kind id. The timeout and modifier set its response window.
func New(id ID, owner Owner, timeout, mod time.Duration, log *logrus.Entry) *Phase {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Phase{
		Base:  sequence.NewBase(timeout, mod),
		ID:    id,
		Name:  id.String(),
		owner: owner,
		log:   log.WithField("phase", id.String()),
	}
}

func (p *Phase) String() string {
	if p.Player != uuid.Nil {
		return fmt.Sprintf("%s(round %d, player %s)", p.Name, p.Round, p.Player)
	}
	return fmt.Sprintf("%s(round %d)", p.Name, p.Round)
}

// MatchID returns the id of the owning match, or uuid.Nil once detached.
func (p *Phase) MatchID() uuid.UUID {
	return p.owner.MatchID
}

// Attached reports whether the owning game still resolves.
func (p *Phase) Attached() bool {
	_, ok := p.owner.resolve()
	return ok
}

// Detach severs the phase from its game.
func (p *Phase) Detach() {
	p.owner = Owner{}
}

// Ended reports whether EndPhase already ran.
func (p *Phase) Ended() bool {
	return p.ended
}

// OnBecameCurrent arms the response window, snapshots the turn position and recomputes who may act.
func (p *Phase) OnBecameCurrent(now time.Time) {
	p.Base.OnBecameCurrent(now)

	g, ok := p.owner.resolve()
	if !ok {
		p.log.Warn("Phase became current while not owned by any game")
		return
	}
	p.Round = g.RoundNumber()
	p.Player = uuid.Nil
	p.AllowInputFrom = nil
	if player, inTurn := g.CurrentPlayer(); inTurn && p.ID.TurnScoped() {
		p.Player = player
		p.AllowInputFrom = []uuid.UUID{player}
	}
	if enter := kinds[p.ID].enter; enter != nil {
		enter(g, p)
	}
}

// TryExecuteEffect runs the phase's effect and announces it to the game.
func (p *Phase) TryExecuteEffect(now time.Time) sequence.Result {
	g, ok := p.owner.resolve()
	if !ok {
		return sequence.Detached(fmt.Sprintf("%s is not owned by any game", p.Name))
	}
	if !p.BeginExecution() {
		return sequence.Stale(fmt.Sprintf("%s already executed", p.Name))
	}
	p.Active = true
	if execute := kinds[p.ID].execute; execute != nil {
		execute(g, p)
	}
	g.OnNextTurnPhase(p)
	return sequence.Done
}

// EndsAfterExecution reports whether the phase ends as soon as its effect ran.
func (p *Phase) EndsAfterExecution() bool {
	return kinds[p.ID].autoEnd
}

// End is called by the Sequencer for phases that end on their own. Detachment is reported to the caller.
func (p *Phase) End() sequence.Result {
	return p.endPhase()
}

// EndPhase deactivates the phase and hands the successor to the game. A second call is a no-op;
// a call after the game is gone is logged and otherwise ignored.
func (p *Phase) EndPhase() sequence.Result {
	res := p.endPhase()
	if res.Status == sequence.StatusDetached {
		p.log.Warnf("EndPhase: %s", res.Message)
	}
	return res
}

func (p *Phase) endPhase() sequence.Result {
	if p.ended {
		return sequence.Stale(fmt.Sprintf("%s already ended", p.Name))
	}
	g, ok := p.owner.resolve()
	if !ok {
		p.Active = false
		return sequence.Detached(fmt.Sprintf("%s ended while not owned by any game", p.Name))
	}
	if g.CurrentPhase() != p {
		return sequence.Stale(fmt.Sprintf("%s is no longer current", p.Name))
	}

	p.Active = false
	p.ended = true
	k := kinds[p.ID]
	if k.exit != nil {
		k.exit(g, p)
	}
	next := p.Next
	if next == nil {
		next = k.next(g, p)
	}
	if next == nil {
		p.log.Debug("EndPhase: game declined to continue")
		return sequence.Done
	}
	g.EndCurrentTurnPhase(next)
	return sequence.Done
}

// CanPlayerSubmitCommand reports whether playerID may act during this phase.
func (p *Phase) CanPlayerSubmitCommand(playerID uuid.UUID) bool {
	g, ok := p.owner.resolve()
	if !ok || !g.IsParticipant(playerID) {
		return false
	}
	if p.Gate == GateParticipants {
		return true
	}
	return slices.Contains(p.AllowInputFrom, playerID)
}

// PlayerDone signals that a player finished acting. Only phases that linger for input react to it.
// Authorization is the caller's job.
func (p *Phase) PlayerDone(playerID uuid.UUID) sequence.Result {
	if !kinds[p.ID].endsOnPlayerDone {
		return sequence.Stale(fmt.Sprintf("%s does not wait for players", p.Name))
	}
	if !p.Active {
		return sequence.Stale(fmt.Sprintf("%s is not active", p.Name))
	}
	p.log.WithField("player", playerID).Debug("PlayerDone: ending phase")
	return p.EndPhase()
}
