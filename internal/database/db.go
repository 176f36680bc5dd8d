package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var DB *pgxpool.Pool

// ConnectDB opens the global pool and checks the database answers.
func ConnectDB(ctx context.Context, dsn string) error {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("unable to parse pgx config: %w", err)
	}

	DB, err = pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := DB.Ping(pingCtx); err != nil {
		return fmt.Errorf("db ping error: %w", err)
	}
	return nil
}

// Schema creates the tables used by the server and the historian.
const Schema = `
CREATE TABLE IF NOT EXISTS players (
	id       UUID PRIMARY KEY,
	username TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS matches (
	id         UUID PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'pending',
	start_time TIMESTAMPTZ,
	end_time   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS match_participants (
	match_id      UUID NOT NULL REFERENCES matches (id),
	player_id     UUID NOT NULL REFERENCES players (id),
	seat_position INT  NOT NULL,
	PRIMARY KEY (match_id, player_id)
);

CREATE TABLE IF NOT EXISTS match_events (
	match_id    UUID   NOT NULL,
	event_index INT    NOT NULL,
	actor_id    UUID,
	event_type  TEXT   NOT NULL,
	payload     JSONB  NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (match_id, event_index)
);

CREATE TABLE IF NOT EXISTS match_rounds (
	match_id UUID        NOT NULL,
	round    INT         NOT NULL,
	ended_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (match_id, round)
);
`

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context) error {
	if _, err := DB.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
