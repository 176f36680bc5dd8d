// internal/protocol/messages.go
package protocol

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/turnsync/internal/phase"
)

// MessageType tags every frame exchanged over the match websocket.
type MessageType string

const (
	TypePhaseUpdate     MessageType = "phase_update"
	TypeTurnOrderUpdate MessageType = "turn_order_update"
	TypePlayerDone      MessageType = "player_done"
	TypeSyncState       MessageType = "sync_state"
	TypePing            MessageType = "ping"
	TypePong            MessageType = "pong"
	TypeError           MessageType = "error"
)

// UpdateKind says what a PhaseUpdate announces.
type UpdateKind string

const (
	// EnteredWithDelay: the phase became current and executes at its responseTime.
	EnteredWithDelay UpdateKind = "entered_with_delay"
	// Entered: the phase executed and is now the active phase.
	Entered UpdateKind = "entered"
)

func (k UpdateKind) valid() bool {
	return k == EnteredWithDelay || k == Entered
}

// PhaseSnapshot is the replicated view of a phase.
type PhaseSnapshot struct {
	ID   phase.ID `json:"id"`
	Name string   `json:"name"`
	// ResponseTime is the server's activation instant in unix milliseconds, 0 when the phase is immediate.
	ResponseTime   int64       `json:"responseTime"`
	Round          int         `json:"round"`
	Player         uuid.UUID   `json:"player"`
	AllowInputFrom []uuid.UUID `json:"allowInputFrom"`
}

// SnapshotOf captures the replicated fields of p.
func SnapshotOf(p *phase.Phase) PhaseSnapshot {
	s := PhaseSnapshot{
		ID:             p.ID,
		Name:           p.Name,
		Round:          p.Round,
		Player:         p.Player,
		AllowInputFrom: append([]uuid.UUID{}, p.AllowInputFrom...),
	}
	if t := p.Timing().ResponseTime; !t.IsZero() {
		s.ResponseTime = t.UnixMilli()
	}
	return s
}

// ResponseAt converts ResponseTime back to a time. The zero time means immediate.
func (s PhaseSnapshot) ResponseAt() time.Time {
	if s.ResponseTime == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.ResponseTime)
}

// PhaseUpdate announces a phase transition.
type PhaseUpdate struct {
	Kind  UpdateKind    `json:"kind"`
	Phase PhaseSnapshot `json:"phase"`
}

// TurnOrderUpdate replaces the turn order wholesale.
type TurnOrderUpdate struct {
	Players []uuid.UUID `json:"players"`
}

// PlayerState is one seat of a SyncState.
type PlayerState struct {
	ID        uuid.UUID `json:"id"`
	Connected bool      `json:"connected"`
}

// SyncState is the full snapshot a client receives on (re)connect.
type SyncState struct {
	MatchID       uuid.UUID      `json:"matchId"`
	Started       bool           `json:"started"`
	Over          bool           `json:"over"`
	Round         int            `json:"round"`
	Current       *PhaseSnapshot `json:"current,omitempty"`
	Pending       *PhaseSnapshot `json:"pending,omitempty"`
	TurnOrder     []uuid.UUID    `json:"turnOrder"`
	CurrentPlayer uuid.UUID      `json:"currentPlayer"`
	Players       []PlayerState  `json:"players"`
	ServerTime    int64          `json:"serverTime"`
}

// Message is the envelope of every frame. Exactly one payload field is set, matching Type.
type Message struct {
	Type        MessageType      `json:"type"`
	PhaseUpdate *PhaseUpdate     `json:"phaseUpdate,omitempty"`
	TurnOrder   *TurnOrderUpdate `json:"turnOrder,omitempty"`
	State       *SyncState       `json:"state,omitempty"`
	Error       string           `json:"message,omitempty"`
}

func NewPhaseUpdate(kind UpdateKind, p *phase.Phase) Message {
	return Message{
		Type:        TypePhaseUpdate,
		PhaseUpdate: &PhaseUpdate{Kind: kind, Phase: SnapshotOf(p)},
	}
}

func NewTurnOrderUpdate(players []uuid.UUID) Message {
	return Message{
		Type:      TypeTurnOrderUpdate,
		TurnOrder: &TurnOrderUpdate{Players: append([]uuid.UUID{}, players...)},
	}
}

func NewSyncState(state SyncState) Message {
	return Message{Type: TypeSyncState, State: &state}
}

func NewError(msg string) Message {
	return Message{Type: TypeError, Error: msg}
}

// PlayerDone is the command a client sends when it finished its Main phase.
func PlayerDone() Message {
	return Message{Type: TypePlayerDone}
}

func Ping() Message { return Message{Type: TypePing} }
func Pong() Message { return Message{Type: TypePong} }
