package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/turnsync/internal/auth"
	"github.com/jason-s-yu/turnsync/internal/config"
	"github.com/jason-s-yu/turnsync/internal/game"
	"github.com/jason-s-yu/turnsync/internal/models"
	"github.com/jason-s-yu/turnsync/internal/phase"
	"github.com/jason-s-yu/turnsync/internal/protocol"
	"github.com/jason-s-yu/turnsync/internal/sequence"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instantRules has no response windows, so a started match waits in Main for the first player.
func instantRules() game.HouseRules {
	return game.HouseRules{InputGate: phase.GateAllowList}
}

func newTestServer(t *testing.T) (*GameServer, *httptest.Server) {
	t.Helper()
	require.NoError(t, auth.Init(time.Hour))

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	cfg := &config.Config{Match: config.MatchConfig{TickInterval: 10 * time.Millisecond, Rules: instantRules()}}
	gs := NewGameServer(cfg, logger)
	gs.Clock = sequence.NewManualClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))

	mux := http.NewServeMux()
	mux.HandleFunc("/match/create", CreateMatchHandler(gs))
	mux.HandleFunc("/match/list", ListMatchesHandler(gs))
	mux.HandleFunc(settingsPathPrefix, MatchSettingsHandler(gs))
	mux.HandleFunc("/auth/token", TokenHandler)
	mux.HandleFunc(wsPathPrefix, GameWSHandler(logger, gs))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return gs, srv
}

func tokenFor(t *testing.T, playerID uuid.UUID) string {
	t.Helper()
	tok, err := auth.CreateToken(playerID)
	require.NoError(t, err)
	return tok
}

func dial(t *testing.T, srv *httptest.Server, matchID uuid.UUID, token string, subprotocols ...string) *websocket.Conn {
	t.Helper()
	if subprotocols == nil {
		subprotocols = []string{"game"}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + wsPathPrefix + matchID.String()
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: subprotocols,
		HTTPHeader:   http.Header{"Authorization": {"Bearer " + token}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func readMessage(t *testing.T, c *websocket.Conn) protocol.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	msg, err := protocol.Decode(data)
	require.NoError(t, err)
	return msg
}

func writeMessage(t *testing.T, c *websocket.Conn, msg protocol.Message) {
	t.Helper()
	data, err := protocol.Encode(msg)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

func startMatch(t *testing.T, gs *GameServer, players ...uuid.UUID) *game.Match {
	t.Helper()
	roster := make([]*models.Player, len(players))
	for i, id := range players {
		roster[i] = &models.Player{ID: id}
	}
	m, err := gs.NewMatch(uuid.Nil, roster, instantRules())
	require.NoError(t, err)
	return m
}

func TestCreateMatchHandler(t *testing.T) {
	_, srv := newTestServer(t)
	caller, other := uuid.New(), uuid.New()

	body, _ := json.Marshal(map[string]interface{}{
		"players":    []map[string]string{{"id": caller.String()}, {"id": other.String()}},
		"houseRules": map[string]interface{}{"mainDelayMs": 250},
	})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/match/create", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, caller))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary MatchSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.NotEqual(t, uuid.Nil, summary.ID)
	assert.True(t, summary.Started)
	assert.Equal(t, 1, summary.Round)
	assert.Equal(t, []uuid.UUID{caller, other}, summary.TurnOrder)
	assert.Equal(t, 250*time.Millisecond, summary.Rules.Timeout(phase.Main))
}

func TestCreateMatchHandlerErrors(t *testing.T) {
	_, srv := newTestServer(t)
	caller := uuid.New()

	tests := []struct {
		name   string
		token  string
		body   string
		status int
	}{
		{"no token", "", `{}`, http.StatusUnauthorized},
		{"bad json", tokenFor(t, caller), `{"players":`, http.StatusBadRequest},
		{"bad rules", tokenFor(t, caller), `{"houseRules":{"inputGate":"anyone"}}`, http.StatusBadRequest},
		{"player without id", tokenFor(t, caller), `{"players":[{"username":"x"}]}`, http.StatusBadRequest},
		{"stored roster without postgres", tokenFor(t, caller), `{"matchId":"` + uuid.NewString() + `"}`, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, srv.URL+"/match/create", strings.NewReader(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestListMatchesHandler(t *testing.T) {
	gs, srv := newTestServer(t)
	caller := uuid.New()
	m := startMatch(t, gs, caller)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/match/list", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: tokenFor(t, caller)})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var list []MatchSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, m.ID, list[0].ID)
}

func TestTokenHandler(t *testing.T) {
	_, srv := newTestServer(t)
	playerID := uuid.New()

	resp, err := http.Post(srv.URL+"/auth/token", "application/json", strings.NewReader(`{"playerId":"`+playerID.String()+`"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out tokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, playerID, out.PlayerID)
	got, err := auth.Authenticate(out.Token)
	require.NoError(t, err)
	assert.Equal(t, playerID, got)
	assert.NotEmpty(t, resp.Cookies())
}

func TestGameWSTurnFlow(t *testing.T) {
	gs, srv := newTestServer(t)
	alice, bob := uuid.New(), uuid.New()
	m := startMatch(t, gs, alice, bob)

	ca := dial(t, srv, m.ID, tokenFor(t, alice))
	state := readMessage(t, ca)
	require.Equal(t, protocol.TypeSyncState, state.Type)
	require.NotNil(t, state.State.Current)
	assert.Equal(t, phase.Main, state.State.Current.ID)
	assert.Equal(t, alice, state.State.CurrentPlayer)
	assert.Equal(t, []uuid.UUID{alice, bob}, state.State.TurnOrder)

	writeMessage(t, ca, protocol.PlayerDone())

	var entered []string
	for {
		msg := readMessage(t, ca)
		require.Equal(t, protocol.TypePhaseUpdate, msg.Type)
		assert.Equal(t, protocol.Entered, msg.PhaseUpdate.Kind)
		entered = append(entered, msg.PhaseUpdate.Phase.ID.String())
		if msg.PhaseUpdate.Phase.ID == phase.Main {
			assert.Equal(t, bob, msg.PhaseUpdate.Phase.Player)
			assert.Equal(t, []uuid.UUID{bob}, msg.PhaseUpdate.Phase.AllowInputFrom)
			break
		}
	}
	assert.Equal(t, []string{phase.EndTurn.String(), phase.BeginTurn.String(), phase.Main.String()}, entered)
}

func TestGameWSDropsUnauthorizedPlayerDone(t *testing.T) {
	gs, srv := newTestServer(t)
	alice, bob := uuid.New(), uuid.New()
	m := startMatch(t, gs, alice, bob)

	cb := dial(t, srv, m.ID, tokenFor(t, bob))
	require.Equal(t, protocol.TypeSyncState, readMessage(t, cb).Type)

	writeMessage(t, cb, protocol.PlayerDone())
	writeMessage(t, cb, protocol.Ping())

	assert.Equal(t, protocol.TypePong, readMessage(t, cb).Type, "rejected command produces no frames")
	state := m.SyncState()
	require.NotNil(t, state.Current)
	assert.Equal(t, phase.Main, state.Current.ID)
	assert.Equal(t, alice, state.CurrentPlayer)
}

func TestGameWSMalformedFrame(t *testing.T) {
	gs, srv := newTestServer(t)
	alice := uuid.New()
	m := startMatch(t, gs, alice)

	c := dial(t, srv, m.ID, tokenFor(t, alice))
	require.Equal(t, protocol.TypeSyncState, readMessage(t, c).Type)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`{"type":"shuffle"}`)))
	msg := readMessage(t, c)
	assert.Equal(t, protocol.TypeError, msg.Type)
	assert.Contains(t, msg.Error, "malformed")
}

func TestGameWSRejections(t *testing.T) {
	gs, srv := newTestServer(t)
	alice := uuid.New()
	m := startMatch(t, gs, alice)

	tests := []struct {
		name         string
		token        string
		subprotocols []string
		status       websocket.StatusCode
	}{
		{"stranger", tokenFor(t, uuid.New()), nil, NotParticipantError},
		{"bad token", "garbage", nil, InvalidAuthTokenError},
		{"no subprotocol", tokenFor(t, alice), []string{}, BadSubprotocolError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := dial(t, srv, m.ID, tt.token, tt.subprotocols...)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, _, err := c.Read(ctx)
			require.Error(t, err)
			assert.Equal(t, tt.status, websocket.CloseStatus(err))
		})
	}

	resp, err := http.Get(srv.URL + wsPathPrefix + uuid.NewString())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGameWSDisconnectAndEnd(t *testing.T) {
	gs, srv := newTestServer(t)
	alice := uuid.New()
	m := startMatch(t, gs, alice)

	c := dial(t, srv, m.ID, tokenFor(t, alice))
	require.Equal(t, protocol.TypeSyncState, readMessage(t, c).Type)
	assert.True(t, m.SyncState().Players[0].Connected)

	require.True(t, gs.EndMatch(m.ID))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	assert.Error(t, err, "ending the match closes its connections")

	assert.Eventually(t, func() bool { return !m.SyncState().Players[0].Connected }, time.Second, 10*time.Millisecond)
	assert.True(t, m.SyncState().Over)
	_, ok := gs.GameStore.GetMatch(m.ID)
	assert.False(t, ok)
}

func TestRunTicksMatches(t *testing.T) {
	gs, _ := newTestServer(t)
	clock := gs.Clock.(*sequence.ManualClock)
	alice := uuid.New()
	rules := instantRules()
	rules.MainDelayMs = 500
	m, err := gs.NewMatch(uuid.Nil, []*models.Player{{ID: alice}}, rules)
	require.NoError(t, err)
	require.NotNil(t, m.SyncState().Pending, "Main is waiting out its window")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gs.Run(ctx)

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool {
		s := m.SyncState()
		return s.Pending == nil && s.Current != nil && s.Current.ID == phase.Main
	}, time.Second, 10*time.Millisecond)
}

func TestRunRemovesEndedMatches(t *testing.T) {
	gs, _ := newTestServer(t)
	m, err := gs.NewMatch(uuid.Nil, []*models.Player{{ID: uuid.New()}}, instantRules())
	require.NoError(t, err)
	require.NotNil(t, gs.hub(m.ID))

	m.End()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gs.Run(ctx)

	assert.Eventually(t, func() bool {
		_, ok := gs.GameStore.GetMatch(m.ID)
		return !ok && gs.hub(m.ID) == nil
	}, time.Second, 10*time.Millisecond)
}

func postSettings(t *testing.T, srv *httptest.Server, matchID uuid.UUID, token string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+settingsPathPrefix+matchID.String(), bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestMatchSettingsHandler(t *testing.T) {
	gs, srv := newTestServer(t)
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	m := startMatch(t, gs, a, b, c)

	resp := postSettings(t, srv, m.ID, tokenFor(t, b), map[string]interface{}{
		"turnOrder":           []uuid.UUID{c, a, b},
		"responseTimerModsMs": map[string]int64{b.String(): 1500},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary MatchSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, []uuid.UUID{c, a, b}, summary.TurnOrder)
	assert.Equal(t, []uuid.UUID{c, a, b}, m.TurnOrder())
	assert.Equal(t, a, m.SyncState().CurrentPlayer, "the player in turn keeps it")
}

func TestMatchSettingsHandlerRejections(t *testing.T) {
	gs, srv := newTestServer(t)
	a, b := uuid.New(), uuid.New()
	m := startMatch(t, gs, a, b)

	resp := postSettings(t, srv, m.ID, tokenFor(t, uuid.New()), map[string]interface{}{"turnOrder": []uuid.UUID{b, a}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = postSettings(t, srv, uuid.New(), tokenFor(t, a), map[string]interface{}{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postSettings(t, srv, m.ID, tokenFor(t, a), map[string]interface{}{"turnOrder": []uuid.UUID{a, a}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postSettings(t, srv, m.ID, tokenFor(t, a), map[string]interface{}{
		"responseTimerModsMs": map[string]int64{uuid.New().String(): 100},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, []uuid.UUID{a, b}, m.TurnOrder())
}
