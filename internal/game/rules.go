// internal/game/rules.go
package game

import (
	"fmt"
	"time"

	"github.com/jason-s-yu/turnsync/internal/phase"
)

// HouseRules configure the pacing and input policy of a match.
type HouseRules struct {
	RoundStartupDelayMs int `json:"roundStartupDelayMs"` // response window before a round starts
	BeginTurnDelayMs    int `json:"beginTurnDelayMs"`    // window players get to react before a turn opens
	MainDelayMs         int `json:"mainDelayMs"`         // window before the current player may act
	EndTurnDelayMs      int `json:"endTurnDelayMs"`      // window after a player finished acting
	RoundEndDelayMs     int `json:"roundEndDelayMs"`     // window before the round closes

	// InputGate selects who may submit commands; see phase.InputGate.
	InputGate phase.InputGate `json:"inputGate"`
}

// DefaultHouseRules gives every player a short warning before a turn opens and before a round closes.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		BeginTurnDelayMs: 1000,
		RoundEndDelayMs:  2000,
		InputGate:        phase.GateAllowList,
	}
}

// Timeout returns the response window configured for a phase kind.
func (rules HouseRules) Timeout(id phase.ID) time.Duration {
	var ms int
	switch id {
	case phase.RoundStartup:
		ms = rules.RoundStartupDelayMs
	case phase.BeginTurn:
		ms = rules.BeginTurnDelayMs
	case phase.Main:
		ms = rules.MainDelayMs
	case phase.EndTurn:
		ms = rules.EndTurnDelayMs
	case phase.RoundEnd:
		ms = rules.RoundEndDelayMs
	}
	return time.Duration(ms) * time.Millisecond
}

// Update applies the rules present in newRules. Absent or null keys keep their old value.
func (rules *HouseRules) Update(newRules map[string]interface{}) error {
	assignInt := func(field *int, key string) error {
		val, exists := newRules[key]
		if !exists || val == nil {
			return nil
		}
		switch v := val.(type) {
		case float64:
			*field = int(v)
		case int:
			*field = v
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		if *field < 0 {
			return fmt.Errorf("%s must be non-negative", key)
		}
		return nil
	}

	for key, field := range map[string]*int{
		"roundStartupDelayMs": &rules.RoundStartupDelayMs,
		"beginTurnDelayMs":    &rules.BeginTurnDelayMs,
		"mainDelayMs":         &rules.MainDelayMs,
		"endTurnDelayMs":      &rules.EndTurnDelayMs,
		"roundEndDelayMs":     &rules.RoundEndDelayMs,
	} {
		if err := assignInt(field, key); err != nil {
			return err
		}
	}

	if val, exists := newRules["inputGate"]; exists && val != nil {
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("invalid type for inputGate")
		}
		gate, err := phase.ParseInputGate(s)
		if err != nil {
			return err
		}
		rules.InputGate = gate
	}
	return nil
}

// ParseRules applies rules on top of current and returns the result. current is left untouched.
func ParseRules(rules map[string]interface{}, current HouseRules) (HouseRules, error) {
	houseRules := current
	err := houseRules.Update(rules)
	return houseRules, err
}
