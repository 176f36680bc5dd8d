// internal/handlers/game_server.go
package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/turnsync/internal/config"
	"github.com/jason-s-yu/turnsync/internal/database"
	"github.com/jason-s-yu/turnsync/internal/game"
	"github.com/jason-s-yu/turnsync/internal/models"
	"github.com/jason-s-yu/turnsync/internal/protocol"
	"github.com/jason-s-yu/turnsync/internal/sequence"
	"github.com/sirupsen/logrus"
)

// GameServer holds the live matches, their connection hubs, and drives every match's clock.
type GameServer struct {
	GameStore *game.GameStore
	Config    *config.Config
	Clock     sequence.Clock

	logger *logrus.Logger

	mu   sync.Mutex
	hubs map[uuid.UUID]*hub
}

func NewGameServer(cfg *config.Config, logger *logrus.Logger) *GameServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &GameServer{
		GameStore: game.NewGameStore(),
		Config:    cfg,
		Clock:     sequence.SystemClock{},
		logger:    logger,
		hubs:      make(map[uuid.UUID]*hub),
	}
}

// Run ticks every registered match at the configured interval until ctx is done.
func (gs *GameServer) Run(ctx context.Context) {
	interval := gs.Config.Match.TickInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, m := range gs.GameStore.List() {
				if m.IsOver() {
					gs.EndMatch(m.ID)
					continue
				}
				m.Tick()
			}
		}
	}
}

// NewMatch seats roster in order, wires the match to a connection hub, registers and starts it.
// A nil id assigns a fresh one.
func (gs *GameServer) NewMatch(id uuid.UUID, roster []*models.Player, rules game.HouseRules) (*game.Match, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}
	if _, exists := gs.GameStore.GetMatch(id); exists {
		return nil, fmt.Errorf("match %s already running", id)
	}

	m := game.NewMatchWithID(id, gs.GameStore, rules, gs.Clock, gs.logger)
	for _, p := range roster {
		if err := m.AddPlayer(&models.Player{ID: p.ID, Username: p.Username}); err != nil {
			return nil, err
		}
	}

	h := newHub(gs.logger.WithField("match", id))
	m.BroadcastFn = h.broadcast
	m.BroadcastToPlayerFn = h.sendTo
	m.OnRoundEnd = func(matchID uuid.UUID, round int) {
		gs.logger.WithField("match", matchID).Debugf("Round %d complete.", round)
	}

	gs.mu.Lock()
	gs.hubs[id] = h
	gs.mu.Unlock()
	gs.GameStore.AddMatch(m)

	if err := m.Start(); err != nil {
		gs.removeMatch(id)
		return nil, err
	}
	return m, nil
}

// NewMatchFromDB starts a match for a stored roster.
func (gs *GameServer) NewMatchFromDB(ctx context.Context, matchID uuid.UUID, rules game.HouseRules) (*game.Match, error) {
	roster, err := database.FetchMatchRoster(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if len(roster) == 0 {
		return nil, fmt.Errorf("match %s has no stored participants", matchID)
	}
	return gs.NewMatch(matchID, roster, rules)
}

// EndMatch stops a match, unregisters it and closes its connections.
func (gs *GameServer) EndMatch(id uuid.UUID) bool {
	ok := gs.GameStore.EndMatch(id)
	if h := gs.removeHub(id); h != nil {
		h.closeAll()
	}
	return ok
}

func (gs *GameServer) removeMatch(id uuid.UUID) {
	gs.GameStore.DeleteMatch(id)
	gs.removeHub(id)
}

func (gs *GameServer) hub(id uuid.UUID) *hub {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.hubs[id]
}

func (gs *GameServer) removeHub(id uuid.UUID) *hub {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	h := gs.hubs[id]
	delete(gs.hubs, id)
	return h
}

// MatchSummary is the listing entry returned by ListMatchesHandler.
type MatchSummary struct {
	ID        uuid.UUID              `json:"id"`
	Started   bool                   `json:"started"`
	Over      bool                   `json:"over"`
	Round     int                    `json:"round"`
	Rules     game.HouseRules        `json:"houseRules"`
	TurnOrder []uuid.UUID            `json:"turnOrder"`
	Players   []protocol.PlayerState `json:"players"`
}

func summarize(m *game.Match) MatchSummary {
	state := m.SyncState()
	m.Mu.Lock()
	rules := m.Rules
	m.Mu.Unlock()
	return MatchSummary{
		ID:        m.ID,
		Started:   state.Started,
		Over:      state.Over,
		Round:     state.Round,
		Rules:     rules,
		TurnOrder: state.TurnOrder,
		Players:   state.Players,
	}
}
