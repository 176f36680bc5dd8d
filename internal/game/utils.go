// internal/game/utils.go
package game

import "github.com/google/uuid"

// indexOf returns the position of id in order, or -1.
func indexOf(order []uuid.UUID, id uuid.UUID) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

// firstDuplicate returns the first id that appears twice in order.
func firstDuplicate(order []uuid.UUID) (uuid.UUID, bool) {
	seen := make(map[uuid.UUID]struct{}, len(order))
	for _, id := range order {
		if _, ok := seen[id]; ok {
			return id, true
		}
		seen[id] = struct{}{}
	}
	return uuid.Nil, false
}
