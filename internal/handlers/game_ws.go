// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/turnsync/internal/auth"
	"github.com/jason-s-yu/turnsync/internal/game"
	"github.com/jason-s-yu/turnsync/internal/middleware"
	"github.com/jason-s-yu/turnsync/internal/protocol"
	"github.com/sirupsen/logrus"
)

const (
	wsPathPrefix = "/match/ws/"
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// GameWSHandler upgrades the HTTP connection to a websocket for one match. It authenticates the
// player, checks they are seated, sends them the current state and then routes their commands.
func GameWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID, ok := matchIDFromPath(r.URL.Path, wsPathPrefix)
		if !ok {
			http.Error(w, "Invalid match_id in path (/match/ws/{match_id})", http.StatusBadRequest)
			return
		}
		m, ok := gs.GameStore.GetMatch(matchID)
		if !ok {
			http.Error(w, "Match not found", http.StatusNotFound)
			return
		}
		h := gs.hub(matchID)
		if h == nil {
			http.Error(w, "Match has already ended", http.StatusGone)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for match %s: %v", matchID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "game" {
			logger.Warnf("Client for match %s connected with invalid subprotocol: %q", matchID, c.Subprotocol())
			c.Close(BadSubprotocolError, "Client must use the 'game' subprotocol.")
			return
		}

		playerID, err := auth.AuthenticateRequest(r)
		if err != nil {
			logger.Warnf("Authentication failed for match %s: %v", matchID, err)
			c.Close(InvalidAuthTokenError, "Authentication failed.")
			return
		}
		if !m.HasPlayer(playerID) {
			logger.Warnf("Player %s is not seated in match %s.", playerID, matchID)
			c.Close(NotParticipantError, "You are not a player in this match.")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		conn := &connection{
			playerID: playerID,
			conn:     c,
			out:      make(chan []byte, outboundBuffer),
			cancel:   cancel,
		}
		h.add(conn)
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		go writePump(ctx, conn, logger)

		if err := m.HandleReconnect(playerID); err != nil {
			logger.Warnf("Reconnect of %s to match %s failed: %v", playerID, matchID, err)
		}

		readErr := readGameMessages(ctx, conn, m, logger)

		if h.remove(conn) {
			m.HandleDisconnect(playerID)
		}
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readGameMessages reads frames until the connection closes or ctx is done, routing each command to
// the match. Malformed frames are answered with an error frame.
func readGameMessages(ctx context.Context, conn *connection, m *game.Match, logger *logrus.Logger) error {
	for {
		msgType, data, err := conn.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			logger.Warnf("Ignoring non-text frame from player %s in match %s.", conn.playerID, m.ID)
			continue
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			logger.Warnf("Malformed frame from player %s in match %s: %v", conn.playerID, m.ID, err)
			send(conn, protocol.NewError(fmt.Sprintf("malformed message: %v", err)), logger)
			continue
		}

		switch msg.Type {
		case protocol.TypePlayerDone:
			if err := m.HandlePlayerDone(conn.playerID); err != nil {
				if errors.Is(err, game.ErrNotAuthorized) {
					logger.Debugf("Dropped player_done from %s in match %s: %v", conn.playerID, m.ID, err)
					continue
				}
				send(conn, protocol.NewError(err.Error()), logger)
			}
		case protocol.TypePing:
			send(conn, protocol.Pong(), logger)
		default:
			send(conn, protocol.NewError(fmt.Sprintf("unsupported message type: %s", msg.Type)), logger)
		}
	}
}

// send queues msg on the connection without blocking.
func send(conn *connection, msg protocol.Message, logger *logrus.Logger) {
	data, err := protocol.Encode(msg)
	if err != nil {
		logger.Errorf("Failed to encode %s for player %s: %v", msg.Type, conn.playerID, err)
		return
	}
	select {
	case conn.out <- data:
	default:
		logger.Warnf("Outbound queue full for player %s, dropping connection.", conn.playerID)
		conn.cancel()
	}
}

// writePump drains the connection's outbound queue in order and pings the client periodically.
func writePump(ctx context.Context, conn *connection, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-conn.out:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("Failed to write to websocket for player %s: %v", conn.playerID, err)
				conn.cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := conn.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Failed to ping player %s: %v. Assuming disconnect.", conn.playerID, err)
				conn.cancel()
				return
			}
		}
	}
}
