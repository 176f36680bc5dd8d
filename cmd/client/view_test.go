package main

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/turnsync/internal/auth"
	"github.com/jason-s-yu/turnsync/internal/mirror"
	"github.com/jason-s-yu/turnsync/internal/phase"
	"github.com/jason-s-yu/turnsync/internal/protocol"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func update(kind protocol.UpdateKind, snap protocol.PhaseSnapshot) protocol.Message {
	return protocol.Message{
		Type:        protocol.TypePhaseUpdate,
		PhaseUpdate: &protocol.PhaseUpdate{Kind: kind, Phase: snap},
	}
}

func TestPhasePanel(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	self, other := uuid.New(), uuid.New()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m := mirror.New(nil)

	assert.Contains(t, phasePanel(m, self, now), "waiting for the match to start")

	require.NoError(t, m.Apply(update(protocol.Entered, protocol.PhaseSnapshot{
		ID: phase.Main, Name: phase.Main.String(), Round: 1, Player: self, AllowInputFrom: []uuid.UUID{self},
	})))
	assert.Contains(t, phasePanel(m, self, now), "Your turn")
	assert.Contains(t, phasePanel(m, other, now), "Turn of "+shortID(self))

	require.NoError(t, m.Apply(update(protocol.EnteredWithDelay, protocol.PhaseSnapshot{
		ID: phase.BeginTurn, Name: phase.BeginTurn.String(), ResponseTime: now.Add(1500 * time.Millisecond).UnixMilli(), Round: 1,
	})))
	out := phasePanel(m, self, now)
	assert.Contains(t, out, "Next: "+phase.BeginTurn.String())
	assert.Contains(t, out, "1.5s")
}

func TestTurnOrderPanel(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	a, b := uuid.New(), uuid.New()
	m := mirror.New(nil)
	assert.Contains(t, turnOrderPanel(m, a), "no turn order yet")

	require.NoError(t, m.Apply(protocol.NewTurnOrderUpdate([]uuid.UUID{a, b})))
	require.NoError(t, m.Apply(update(protocol.Entered, protocol.PhaseSnapshot{
		ID: phase.Main, Name: phase.Main.String(), Round: 1, Player: b,
	})))
	out := turnOrderPanel(m, a)
	assert.Contains(t, out, "1. "+shortID(a)+" (you)")
	assert.Contains(t, out, "> 2. "+shortID(b))
}

func TestSubjectOf(t *testing.T) {
	require.NoError(t, auth.Init(time.Hour))
	id := uuid.New()
	tok, err := auth.CreateToken(id)
	require.NoError(t, err)

	got, err := subjectOf(tok)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = subjectOf("nope")
	assert.Error(t, err)
}
