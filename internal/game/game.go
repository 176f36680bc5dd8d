// internal/game/game.go
package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/turnsync/internal/cache"
	"github.com/jason-s-yu/turnsync/internal/models"
	"github.com/jason-s-yu/turnsync/internal/phase"
	"github.com/jason-s-yu/turnsync/internal/protocol"
	"github.com/jason-s-yu/turnsync/internal/sequence"
	"github.com/sirupsen/logrus"
)

// Match is the authoritative turn coordinator of one running match. It owns the turn order, the
// current seat and the round counter, and drives its phases through a Sequencer.
//
// Every exported method takes Mu. Unexported methods and the phase.TurnedGame callbacks assume it is held.
type Match struct {
	ID      uuid.UUID
	Rules   HouseRules
	Players []*models.Player

	Started bool
	Over    bool
	Mu      sync.Mutex

	// BroadcastFn sends a message to every connected player. If nil, no broadcast is done.
	// It is called with Mu held and must not block on the match.
	BroadcastFn func(msg protocol.Message)

	// BroadcastToPlayerFn sends a message to a single player.
	BroadcastToPlayerFn func(playerID uuid.UUID, msg protocol.Message)

	// OnRoundEnd is invoked after every completed round.
	OnRoundEnd func(matchID uuid.UUID, round int)

	// PublishFn receives every history event. When nil, events go to the Redis historian queue.
	PublishFn func(ev models.MatchEvent)

	turnOrder          []uuid.UUID
	currentPlayerIndex int // -1 before the first turn and after the match ended
	roundNumber        int
	timerMods          map[uuid.UUID]time.Duration
	lastSeen           map[uuid.UUID]time.Time
	eventIndex         int
	// lastEntered is the most recently executed phase, still shown as current while its successor waits.
	lastEntered *protocol.PhaseSnapshot

	sequencer *sequence.Sequencer
	registry  phase.Registry
	log       *logrus.Entry
}

// NewMatch builds an idle match. Phases reach the match through registry, so the match must be
// added to it before Start.
func NewMatch(registry phase.Registry, rules HouseRules, clock sequence.Clock, logger *logrus.Logger) *Match {
	id, _ := uuid.NewRandom()
	return NewMatchWithID(id, registry, rules, clock, logger)
}

// NewMatchWithID is NewMatch for a match whose id was assigned elsewhere, e.g. a stored roster.
func NewMatchWithID(id uuid.UUID, registry phase.Registry, rules HouseRules, clock sequence.Clock, logger *logrus.Logger) *Match {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logger.WithField("match", id)
	return &Match{
		ID:                 id,
		Rules:              rules,
		currentPlayerIndex: -1,
		timerMods:          make(map[uuid.UUID]time.Duration),
		lastSeen:           make(map[uuid.UUID]time.Time),
		sequencer:          sequence.NewSequencer(clock, entry),
		registry:           registry,
		log:                entry,
	}
}

// AddPlayer seats p after the existing players. Players can only join before the match starts.
func (m *Match) AddPlayer(p *models.Player) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.Started {
		return fmt.Errorf("add player %s: match already started", p.ID)
	}
	if m.getPlayerByID(p.ID) != nil {
		return nil
	}
	p.Seat = len(m.Players)
	m.Players = append(m.Players, p)
	return nil
}

// Start seeds the first round. The turn order is the seating order.
func (m *Match) Start() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.Over {
		return ErrMatchOver
	}
	if m.Started {
		return nil
	}
	if len(m.Players) == 0 {
		return fmt.Errorf("start match %s: no players: %w", m.ID, ErrInvalidTurnOrder)
	}
	if m.registry == nil {
		return ErrMatchNotRegistered
	}
	if _, ok := m.registry.Lookup(m.ID); !ok {
		return ErrMatchNotRegistered
	}

	m.turnOrder = make([]uuid.UUID, len(m.Players))
	for i, p := range m.Players {
		m.turnOrder[i] = p.ID
	}
	m.Started = true
	m.log.Infof("Match started with %d players.", len(m.turnOrder))
	m.logAction(uuid.Nil, "match_start", map[string]interface{}{"turnOrder": m.turnOrder})

	m.fireMessage(protocol.NewTurnOrderUpdate(m.turnOrder))
	m.sequencer.SetCurrent(m.NewPhase(phase.RoundStartup))
	m.advance()
	return nil
}

// Tick lets the current phase execute once its response window elapsed.
func (m *Match) Tick() {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if !m.Started || m.Over {
		return
	}
	m.advance()
}

// advance settles the sequencer. Assumes lock is held.
func (m *Match) advance() {
	if res := m.sequencer.Advance(); !res.IsOK() {
		m.log.Debugf("Sequencer stopped: %s", res)
	}
}

// HandlePlayerDone processes a player's "done" command. Unauthorized commands leave the match untouched.
func (m *Match) HandlePlayerDone(playerID uuid.UUID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.Over {
		return ErrMatchOver
	}
	if !m.Started {
		return ErrMatchNotStarted
	}
	cur := m.CurrentPhase()
	if cur == nil {
		return ErrNoCurrentPhase
	}
	if !cur.CanPlayerSubmitCommand(playerID) {
		return fmt.Errorf("player %s during %s: %w", playerID, cur.Name, ErrNotAuthorized)
	}

	res := cur.PlayerDone(playerID)
	if !res.IsOK() {
		m.log.WithField("player", playerID).Debugf("PlayerDone ignored: %s", res)
		return nil
	}
	m.logAction(playerID, "player_done", map[string]interface{}{"phase": int(cur.ID), "round": cur.Round})
	m.advance()
	return nil
}

// SetTurnOrder replaces the turn order. The new order must be a non-empty list of distinct participants
// and, during a turn, must still contain the current player, who keeps the turn.
func (m *Match) SetTurnOrder(order []uuid.UUID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.Over {
		return ErrMatchOver
	}
	if len(order) == 0 {
		return fmt.Errorf("empty order: %w", ErrInvalidTurnOrder)
	}
	if dup, ok := firstDuplicate(order); ok {
		return fmt.Errorf("player %s listed twice: %w", dup, ErrInvalidTurnOrder)
	}
	for _, id := range order {
		if m.getPlayerByID(id) == nil {
			return fmt.Errorf("player %s: %w", id, ErrPlayerNotFound)
		}
	}

	newIndex := -1
	if current, inTurn := m.CurrentPlayer(); inTurn {
		newIndex = indexOf(order, current)
		if newIndex < 0 {
			return fmt.Errorf("current player %s missing: %w", current, ErrInvalidTurnOrder)
		}
	}

	m.turnOrder = append([]uuid.UUID{}, order...)
	m.currentPlayerIndex = newIndex
	m.logAction(uuid.Nil, "turn_order_update", map[string]interface{}{"turnOrder": m.turnOrder})
	m.fireMessage(protocol.NewTurnOrderUpdate(m.turnOrder))
	return nil
}

// SetResponseTimerMod shifts the response window of every phase built during playerID's turns.
func (m *Match) SetResponseTimerMod(playerID uuid.UUID, mod time.Duration) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.getPlayerByID(playerID) == nil {
		return fmt.Errorf("player %s: %w", playerID, ErrPlayerNotFound)
	}
	if mod == 0 {
		delete(m.timerMods, playerID)
		return nil
	}
	m.timerMods[playerID] = mod
	return nil
}

// TurnOrder returns a copy of the current turn order.
func (m *Match) TurnOrder() []uuid.UUID {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return append([]uuid.UUID{}, m.turnOrder...)
}

// Round returns the current round number.
func (m *Match) Round() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.roundNumber
}

// HasPlayer reports whether playerID is seated in the match.
func (m *Match) HasPlayer(playerID uuid.UUID) bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.getPlayerByID(playerID) != nil
}

// HandleDisconnect marks a player as disconnected. The turn order is not affected.
func (m *Match) HandleDisconnect(playerID uuid.UUID) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	p := m.getPlayerByID(playerID)
	if p == nil {
		m.log.Warnf("Disconnected player %s not found in match.", playerID)
		return
	}
	if !p.Connected {
		return
	}
	p.Connected = false
	m.lastSeen[playerID] = m.sequencer.Now()
	m.log.Infof("Player %s disconnected.", playerID)
	m.logAction(playerID, "player_disconnect", nil)
}

// HandleReconnect marks a player as connected and sends them the full sequencing state.
func (m *Match) HandleReconnect(playerID uuid.UUID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	p := m.getPlayerByID(playerID)
	if p == nil {
		return fmt.Errorf("player %s: %w", playerID, ErrPlayerNotFound)
	}
	p.Connected = true
	m.lastSeen[playerID] = m.sequencer.Now()
	m.log.Infof("Player %s connected.", playerID)
	m.logAction(playerID, "player_reconnect", nil)
	m.sendSyncState(playerID)
	return nil
}

// IsOver reports whether End has run.
func (m *Match) IsOver() bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Over
}

// End stops sequencing. The current phase is detached so late callbacks become no-ops.
func (m *Match) End() {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.Over {
		return
	}
	m.Over = true
	if cur := m.CurrentPhase(); cur != nil {
		cur.Detach()
	}
	m.sequencer.Clear()
	m.currentPlayerIndex = -1
	m.lastEntered = nil
	m.log.Infof("Match ended after %d rounds.", m.roundNumber)
	m.logAction(uuid.Nil, "match_end", map[string]interface{}{"rounds": m.roundNumber})
}

// fireMessage broadcasts msg to all connected players. Assumes lock is held.
func (m *Match) fireMessage(msg protocol.Message) {
	if m.BroadcastFn == nil {
		m.log.Debugf("BroadcastFn is nil, dropping %s.", msg.Type)
		return
	}
	m.BroadcastFn(msg)
}

// fireMessageToPlayer sends msg to one connected player. Assumes lock is held.
func (m *Match) fireMessageToPlayer(playerID uuid.UUID, msg protocol.Message) {
	if m.BroadcastToPlayerFn == nil {
		m.log.Debugf("BroadcastToPlayerFn is nil, dropping %s for %s.", msg.Type, playerID)
		return
	}
	if p := m.getPlayerByID(playerID); p != nil && p.Connected {
		m.BroadcastToPlayerFn(playerID, msg)
	}
}

// getPlayerByID assumes lock is held.
func (m *Match) getPlayerByID(playerID uuid.UUID) *models.Player {
	for _, p := range m.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// logAction records a history event for the historian. Assumes lock is held.
func (m *Match) logAction(actorID uuid.UUID, eventType string, payload map[string]interface{}) {
	m.eventIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	ev := models.MatchEvent{
		MatchID:   m.ID,
		Index:     m.eventIndex,
		ActorID:   actorID,
		Type:      eventType,
		Payload:   payload,
		Timestamp: m.sequencer.Now().UnixMilli(),
	}
	if m.PublishFn != nil {
		m.PublishFn(ev)
		return
	}
	if cache.Rdb == nil {
		return
	}
	go func(ev models.MatchEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishMatchEvent(ctx, ev); err != nil {
			m.log.Warnf("Error publishing event %d (%s): %v", ev.Index, ev.Type, err)
		}
	}(ev)
}
