package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/turnsync/internal/models"
)

// FetchMatchRoster returns the stored participants of a match in seat order.
func FetchMatchRoster(ctx context.Context, matchID uuid.UUID) ([]*models.Player, error) {
	q := `
		SELECT mp.player_id, mp.seat_position, p.username
		FROM match_participants mp
		JOIN players p ON mp.player_id = p.id
		WHERE mp.match_id = $1
		ORDER BY mp.seat_position
	`
	rows, err := DB.Query(ctx, q, matchID)
	if err != nil {
		return nil, fmt.Errorf("query roster for %s: %w", matchID, err)
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		p := &models.Player{}
		if err := rows.Scan(&p.ID, &p.Seat, &p.Username); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}
