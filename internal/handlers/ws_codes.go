// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the match handler.
const (
	BadSubprotocolError   websocket.StatusCode = 3000 // Client connected without the "game" subprotocol.
	InvalidAuthTokenError websocket.StatusCode = 3001 // Missing, invalid or expired player token.
	NotParticipantError   websocket.StatusCode = 3002 // Authenticated player is not seated in the match.
)
