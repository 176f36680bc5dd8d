package models

import (
	"github.com/google/uuid"
)

// Player is one seat of a match.
type Player struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username,omitempty"`
	Seat      int       `json:"seat"`
	Connected bool      `json:"connected"`
}
