// internal/mirror/mirror.go
package mirror

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/turnsync/internal/phase"
	"github.com/jason-s-yu/turnsync/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Mirror is a client's read-only shadow of a match's sequencing state. It changes only through
// replication messages and never decides anything on its own.
//
// The server's responseTime is trusted as sent; the mirror does not compensate for clock skew.
type Mirror struct {
	mu        sync.RWMutex
	current   *protocol.PhaseSnapshot
	pending   *protocol.PhaseSnapshot
	round     int
	turnOrder []uuid.UUID

	listeners []func(protocol.PhaseSnapshot)
	log       *logrus.Entry
}

func New(log *logrus.Entry) *Mirror {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Mirror{log: log}
}

// OnPhaseEntered registers fn to run, outside the mirror's lock, every time a phase becomes active.
func (m *Mirror) OnPhaseEntered(fn func(protocol.PhaseSnapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// HandleRaw decodes and applies one frame. Malformed frames are logged and ignored.
func (m *Mirror) HandleRaw(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		m.log.Warnf("Mirror: ignoring malformed frame: %v", err)
		return
	}
	if err := m.Apply(msg); err != nil {
		m.log.Warnf("Mirror: ignoring %s: %v", msg.Type, err)
	}
}

// Apply updates the mirror from a decoded message. Non-replication messages are ignored.
func (m *Mirror) Apply(msg protocol.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	var entered *protocol.PhaseSnapshot
	m.mu.Lock()
	switch msg.Type {
	case protocol.TypePhaseUpdate:
		snap := msg.PhaseUpdate.Phase
		switch msg.PhaseUpdate.Kind {
		case protocol.EnteredWithDelay:
			m.pending = &snap
		case protocol.Entered:
			m.current = &snap
			m.pending = &snap
			if snap.ID == phase.RoundStartup {
				m.round++
			}
			entered = &snap
		}
	case protocol.TypeTurnOrderUpdate:
		m.turnOrder = append([]uuid.UUID{}, msg.TurnOrder.Players...)
	case protocol.TypeSyncState:
		st := msg.State
		m.current = st.Current
		m.pending = st.Pending
		if m.pending == nil {
			m.pending = m.current
		}
		m.round = st.Round
		m.turnOrder = append([]uuid.UUID{}, st.TurnOrder...)
	}
	listeners := m.listeners
	m.mu.Unlock()

	if entered != nil {
		for _, fn := range listeners {
			fn(*entered)
		}
	}
	return nil
}

// CurrentPhase returns the last phase that executed on the server.
func (m *Mirror) CurrentPhase() (protocol.PhaseSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return protocol.PhaseSnapshot{}, false
	}
	return *m.current, true
}

// PendingPhase returns the phase awaiting activation, which equals CurrentPhase when nothing is outstanding.
func (m *Mirror) PendingPhase() (protocol.PhaseSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pending == nil {
		return protocol.PhaseSnapshot{}, false
	}
	return *m.pending, true
}

// Outstanding reports whether a delayed phase was announced but has not executed yet.
func (m *Mirror) Outstanding() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending != nil && m.pending != m.current
}

func (m *Mirror) RoundNumber() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.round
}

func (m *Mirror) TurnOrder() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]uuid.UUID{}, m.turnOrder...)
}

// CurrentPlayer is the player whose turn the current phase belongs to.
func (m *Mirror) CurrentPlayer() (uuid.UUID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil || m.current.Player == uuid.Nil {
		return uuid.Nil, false
	}
	return m.current.Player, true
}

// Countdown is the time left until the outstanding phase activates, zero when none is outstanding.
func (m *Mirror) Countdown(now time.Time) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pending == nil || m.pending == m.current {
		return 0
	}
	at := m.pending.ResponseAt()
	if at.IsZero() || !now.Before(at) {
		return 0
	}
	return at.Sub(now)
}
