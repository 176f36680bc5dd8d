// internal/protocol/codec.go
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownType    = errors.New("unknown message type")
	ErrUnknownPhase   = errors.New("unknown phase id")
	ErrUnknownKind    = errors.New("unknown phase update kind")
	ErrMissingPayload = errors.New("message payload missing")
)

// Encode serializes msg as a JSON text frame.
func Encode(msg Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// Decode parses a JSON text frame and validates it.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Validate checks that the payload matching Type is present and well formed.
func (m Message) Validate() error {
	switch m.Type {
	case TypePhaseUpdate:
		if m.PhaseUpdate == nil {
			return fmt.Errorf("%s: %w", m.Type, ErrMissingPayload)
		}
		if !m.PhaseUpdate.Kind.valid() {
			return fmt.Errorf("%s %q: %w", m.Type, m.PhaseUpdate.Kind, ErrUnknownKind)
		}
		return m.PhaseUpdate.Phase.validate()
	case TypeTurnOrderUpdate:
		if m.TurnOrder == nil {
			return fmt.Errorf("%s: %w", m.Type, ErrMissingPayload)
		}
	case TypeSyncState:
		if m.State == nil {
			return fmt.Errorf("%s: %w", m.Type, ErrMissingPayload)
		}
		for _, s := range []*PhaseSnapshot{m.State.Current, m.State.Pending} {
			if s == nil {
				continue
			}
			if err := s.validate(); err != nil {
				return err
			}
		}
	case TypePlayerDone, TypePing, TypePong, TypeError:
	default:
		return fmt.Errorf("%q: %w", m.Type, ErrUnknownType)
	}
	return nil
}

func (s PhaseSnapshot) validate() error {
	if !s.ID.Valid() {
		return fmt.Errorf("phase %d: %w", int(s.ID), ErrUnknownPhase)
	}
	return nil
}
