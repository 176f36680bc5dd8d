package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/turnsync/internal/models"
)

// HistoryStore persists match history for the historian.
type HistoryStore struct{}

// InsertMatchEvents writes a batch of events in a single transaction.
func (HistoryStore) InsertMatchEvents(ctx context.Context, events []models.MatchEvent) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, ev := range events {
			if err := insertMatchEventTx(ctx, tx, ev); err != nil {
				return fmt.Errorf("insert event %d of %s: %w", ev.Index, ev.MatchID, err)
			}
		}
		return nil
	})
}

// MarkMatchAbandoned flags a match that is still in progress as abandoned.
func (HistoryStore) MarkMatchAbandoned(ctx context.Context, matchID uuid.UUID) error {
	q := `
		UPDATE matches
		SET status = 'abandoned', end_time = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`
	_, err := DB.Exec(ctx, q, matchID)
	return err
}

// insertMatchEventTx inserts one event, upserting the match row. Round and match ends are
// additionally recorded in match_rounds and matches.
func insertMatchEventTx(ctx context.Context, tx pgx.Tx, ev models.MatchEvent) error {
	at := time.UnixMilli(ev.Timestamp)

	upsertMatchQ := `
		INSERT INTO matches (id, status, start_time)
		VALUES ($1, 'in_progress', $2)
		ON CONFLICT (id)
		DO UPDATE SET status = 'in_progress'
		WHERE matches.status = 'pending'
	`
	if _, err := tx.Exec(ctx, upsertMatchQ, ev.MatchID, at); err != nil {
		return err
	}

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	var actor *uuid.UUID
	if ev.ActorID != uuid.Nil {
		actor = &ev.ActorID
	}
	eventQ := `
		INSERT INTO match_events (match_id, event_index, actor_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (match_id, event_index) DO NOTHING
	`
	if _, err := tx.Exec(ctx, eventQ, ev.MatchID, ev.Index, actor, ev.Type, payload, at); err != nil {
		return err
	}

	switch ev.Type {
	case "round_end":
		round, ok := ev.Payload["round"].(float64)
		if !ok {
			if r, isInt := ev.Payload["round"].(int); isInt {
				round, ok = float64(r), true
			}
		}
		if !ok {
			return fmt.Errorf("round_end event without round")
		}
		roundQ := `
			INSERT INTO match_rounds (match_id, round, ended_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (match_id, round) DO NOTHING
		`
		if _, err := tx.Exec(ctx, roundQ, ev.MatchID, int(round), at); err != nil {
			return err
		}
	case "match_end":
		finalizeQ := `
			UPDATE matches
			SET status = 'completed', end_time = $2
			WHERE id = $1 AND status = 'in_progress'
		`
		if _, err := tx.Exec(ctx, finalizeQ, ev.MatchID, at); err != nil {
			return err
		}
	}
	return nil
}
