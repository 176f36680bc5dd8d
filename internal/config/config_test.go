package config

import (
	"testing"
	"time"

	"github.com/jason-s-yu/turnsync/internal/phase"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 50*time.Millisecond, cfg.Match.TickInterval)
	assert.Equal(t, time.Second, cfg.Match.Rules.Timeout(phase.BeginTurn))
	assert.Equal(t, phase.GateAllowList, cfg.Match.Rules.InputGate)
	assert.Equal(t, 72*time.Hour, cfg.Auth.TokenExpiry)
	assert.False(t, cfg.Auth.DevTokens)
	assert.Equal(t, 20, cfg.Historian.BatchSize)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("TICK_INTERVAL_MS", "20")
	t.Setenv("MAIN_DELAY_MS", "750")
	t.Setenv("INPUT_GATE", "participants")
	t.Setenv("TOKEN_EXPIRE_TIME", "never")
	t.Setenv("DEV_TOKENS", "true")
	t.Setenv("PG_DATABASE", "matches")
	t.Setenv("REDIS_DB", "not a number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, 20*time.Millisecond, cfg.Match.TickInterval)
	assert.Equal(t, 750*time.Millisecond, cfg.Match.Rules.Timeout(phase.Main))
	assert.Equal(t, phase.GateParticipants, cfg.Match.Rules.InputGate)
	assert.Zero(t, cfg.Auth.TokenExpiry)
	assert.True(t, cfg.Auth.DevTokens)
	assert.Equal(t, 0, cfg.Redis.DB, "unparsable values fall back to the default")
	assert.Contains(t, cfg.Postgres.DSN(), "/matches")
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("INPUT_GATE", "everyone")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("INPUT_GATE", "")
	t.Setenv("TOKEN_EXPIRE_TIME", "tomorrow")
	_, err = Load()
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger := LoggingConfig{Level: "debug", Format: "json"}.NewLogger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger = LoggingConfig{Level: "loud"}.NewLogger()
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
