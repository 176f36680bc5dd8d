// internal/handlers/hub.go
package handlers

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/turnsync/internal/protocol"
	"github.com/sirupsen/logrus"
)

// outboundBuffer is the number of frames a connection may have queued before it is dropped.
const outboundBuffer = 64

// connection is one player's websocket. Frames queued on out are written in order by writePump.
type connection struct {
	playerID uuid.UUID
	conn     *websocket.Conn
	out      chan []byte
	cancel   context.CancelFunc
}

// hub holds the live connections of a match. It has its own lock so the match can broadcast while
// holding Mu.
type hub struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*connection
	log   *logrus.Entry
}

func newHub(log *logrus.Entry) *hub {
	return &hub{
		conns: make(map[uuid.UUID]*connection),
		log:   log,
	}
}

// add registers c, replacing and cancelling any older connection of the same player.
func (h *hub) add(c *connection) {
	h.mu.Lock()
	old := h.conns[c.playerID]
	h.conns[c.playerID] = c
	h.mu.Unlock()

	if old != nil {
		h.log.Infof("Player %s reconnected, closing previous connection.", c.playerID)
		old.cancel()
	}
}

// remove unregisters c if it is still the player's current connection.
func (h *hub) remove(c *connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[c.playerID] != c {
		return false
	}
	delete(h.conns, c.playerID)
	return true
}

// closeAll cancels every connection, e.g. when the match ends.
func (h *hub) closeAll() {
	h.mu.Lock()
	conns := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.cancel()
	}
}

// broadcast queues msg for every connection. It never blocks.
func (h *hub) broadcast(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		h.log.Errorf("Failed to encode broadcast %s: %v", msg.Type, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.conns {
		h.enqueue(c, data)
	}
}

// sendTo queues msg for one player, if connected.
func (h *hub) sendTo(playerID uuid.UUID, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		h.log.Errorf("Failed to encode %s for player %s: %v", msg.Type, playerID, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.conns[playerID]; ok {
		h.enqueue(c, data)
	}
}

// enqueue assumes h.mu is held.
func (h *hub) enqueue(c *connection, data []byte) {
	select {
	case c.out <- data:
	default:
		h.log.Warnf("Outbound queue full for player %s, dropping connection.", c.playerID)
		c.cancel()
	}
}
