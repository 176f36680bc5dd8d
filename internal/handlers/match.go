// internal/handlers/match.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/turnsync/internal/auth"
	"github.com/jason-s-yu/turnsync/internal/game"
	"github.com/jason-s-yu/turnsync/internal/models"
)

type createMatchRequest struct {
	// MatchID selects a stored roster when Players is empty. With Players set it only fixes the id.
	MatchID    uuid.UUID              `json:"matchId"`
	Players    []*models.Player       `json:"players"`
	HouseRules map[string]interface{} `json:"houseRules"`
}

// CreateMatchHandler starts a match from a JSON roster, or from the stored roster of matchId.
// With neither, the caller plays alone.
func CreateMatchHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		callerID, err := auth.AuthenticateRequest(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		var req createMatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad match request payload", http.StatusBadRequest)
			return
		}

		rules := gs.Config.Match.Rules
		if req.HouseRules != nil {
			rules, err = game.ParseRules(req.HouseRules, rules)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		var m *game.Match
		switch {
		case len(req.Players) > 0:
			for _, p := range req.Players {
				if p == nil || p.ID == uuid.Nil {
					http.Error(w, "every player needs an id", http.StatusBadRequest)
					return
				}
			}
			m, err = gs.NewMatch(req.MatchID, req.Players, rules)
		case req.MatchID != uuid.Nil:
			if !gs.Config.Postgres.Enabled {
				http.Error(w, "stored rosters are unavailable", http.StatusServiceUnavailable)
				return
			}
			m, err = gs.NewMatchFromDB(r.Context(), req.MatchID, rules)
		default:
			m, err = gs.NewMatch(uuid.Nil, []*models.Player{{ID: callerID}}, rules)
		}
		if err != nil {
			gs.logger.Warnf("create match for %s failed: %v", callerID, err)
			if errors.Is(err, game.ErrInvalidTurnOrder) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		gs.logger.Infof("Player %s created match %s.", callerID, m.ID)
		writeJSON(w, http.StatusOK, summarize(m))
	}
}

// ListMatchesHandler returns every live match.
func ListMatchesHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := auth.AuthenticateRequest(r); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		out := []MatchSummary{}
		for _, m := range gs.GameStore.List() {
			out = append(out, summarize(m))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

const settingsPathPrefix = "/match/settings/"

type matchSettingsRequest struct {
	// TurnOrder reseats the match. The current player keeps the turn.
	TurnOrder []uuid.UUID `json:"turnOrder"`
	// ResponseTimerModsMs adds per-player milliseconds to response windows. 0 clears a modifier.
	ResponseTimerModsMs map[uuid.UUID]int64 `json:"responseTimerModsMs"`
}

// MatchSettingsHandler lets a participant reorder turns or adjust response windows of a running match.
func MatchSettingsHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		callerID, err := auth.AuthenticateRequest(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		matchID, ok := matchIDFromPath(r.URL.Path, settingsPathPrefix)
		if !ok {
			http.Error(w, "invalid match id", http.StatusBadRequest)
			return
		}
		m, ok := gs.GameStore.GetMatch(matchID)
		if !ok {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}
		if !m.HasPlayer(callerID) {
			http.Error(w, "not a participant", http.StatusForbidden)
			return
		}

		var req matchSettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad settings payload", http.StatusBadRequest)
			return
		}

		for playerID, ms := range req.ResponseTimerModsMs {
			if err := m.SetResponseTimerMod(playerID, time.Duration(ms)*time.Millisecond); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		if req.TurnOrder != nil {
			if err := m.SetTurnOrder(req.TurnOrder); err != nil {
				status := http.StatusBadRequest
				if errors.Is(err, game.ErrMatchOver) {
					status = http.StatusConflict
				}
				http.Error(w, err.Error(), status)
				return
			}
		}

		gs.logger.Infof("Player %s updated settings of match %s.", callerID, matchID)
		writeJSON(w, http.StatusOK, summarize(m))
	}
}

type tokenRequest struct {
	PlayerID uuid.UUID `json:"playerId"`
}

type tokenResponse struct {
	PlayerID uuid.UUID `json:"playerId"`
	Token    string    `json:"token"`
}

// TokenHandler issues a player token, for a fresh id unless playerId is given. It is only mounted when
// dev tokens are enabled.
func TokenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "bad token request payload", http.StatusBadRequest)
		return
	}
	if req.PlayerID == uuid.Nil {
		req.PlayerID = uuid.New()
	}

	tok, err := auth.CreateToken(req.PlayerID)
	if err != nil {
		http.Error(w, "failed to create token", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    tok,
		HttpOnly: true,
		Path:     "/",
	})
	writeJSON(w, http.StatusOK, tokenResponse{PlayerID: req.PlayerID, Token: tok})
}
