// internal/phase/id.go
package phase

import "fmt"

// ID identifies a phase kind. Values are stable on the wire.
type ID int

const (
	RoundStartup ID = iota
	BeginTurn
	Main
	EndTurn
	RoundEnd

	numIDs
)

// All lists every phase kind in graph order.
var All = []ID{RoundStartup, BeginTurn, Main, EndTurn, RoundEnd}

// Valid reports whether id names a known phase kind.
func (id ID) Valid() bool {
	return id >= RoundStartup && id < numIDs
}

// String returns the display label of the phase kind.
func (id ID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("Phase(%d)", int(id))
	}
	return kinds[id].name
}

// TurnScoped reports whether the phase belongs to a single player's turn.
func (id ID) TurnScoped() bool {
	return id.Valid() && kinds[id].turnScoped
}

// InputGate selects which check authorizes player commands.
type InputGate int

const (
	// GateAllowList accepts commands only from players in the phase's AllowInputFrom list.
	GateAllowList InputGate = iota
	// GateParticipants accepts commands from any participant of the match.
	GateParticipants
)

func (g InputGate) String() string {
	switch g {
	case GateAllowList:
		return "allow_list"
	case GateParticipants:
		return "participants"
	}
	return fmt.Sprintf("InputGate(%d)", int(g))
}

// ParseInputGate converts a config value into an InputGate.
func ParseInputGate(s string) (InputGate, error) {
	switch s {
	case "", "allow_list":
		return GateAllowList, nil
	case "participants":
		return GateParticipants, nil
	}
	return GateAllowList, fmt.Errorf("unknown input gate %q", s)
}

func (g InputGate) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *InputGate) UnmarshalText(b []byte) error {
	gate, err := ParseInputGate(string(b))
	if err != nil {
		return err
	}
	*g = gate
	return nil
}
