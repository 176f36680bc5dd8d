package models

import "github.com/google/uuid"

// MatchEvent is one entry of a match's history, published for the historian.
type MatchEvent struct {
	MatchID   uuid.UUID              `json:"match_id"`
	Index     int                    `json:"event_index"`
	ActorID   uuid.UUID              `json:"actor_id"`
	Type      string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp int64                  `json:"timestamp"`
}
