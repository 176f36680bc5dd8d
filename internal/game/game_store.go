package game

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/turnsync/internal/phase"
)

// GameStore is the registry of live matches. Phases resolve their owning match through it, so a
// match removed from the store is detached from its phases.
type GameStore struct {
	mu      sync.Mutex
	matches map[uuid.UUID]*Match
}

var _ phase.Registry = (*GameStore)(nil)

func NewGameStore() *GameStore {
	return &GameStore{
		matches: make(map[uuid.UUID]*Match),
	}
}

func (s *GameStore) AddMatch(m *Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = m
}

func (s *GameStore) GetMatch(id uuid.UUID) (*Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, exists := s.matches[id]
	return m, exists
}

// Lookup implements phase.Registry.
func (s *GameStore) Lookup(id uuid.UUID) (phase.TurnedGame, bool) {
	m, ok := s.GetMatch(id)
	if !ok {
		return nil, false
	}
	return m, true
}

func (s *GameStore) DeleteMatch(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.matches, id)
}

// EndMatch unregisters a match and then ends it.
func (s *GameStore) EndMatch(id uuid.UUID) bool {
	s.mu.Lock()
	m, ok := s.matches[id]
	delete(s.matches, id)
	s.mu.Unlock()
	if ok {
		m.End()
	}
	return ok
}

// List returns a snapshot of every registered match. The store lock is released before returning,
// so callers may lock the matches.
func (s *GameStore) List() []*Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Match, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, m)
	}
	return out
}
