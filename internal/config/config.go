// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jason-s-yu/turnsync/internal/game"
	"github.com/jason-s-yu/turnsync/internal/phase"
	"github.com/sirupsen/logrus"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Match     MatchConfig
	Logging   LoggingConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	Auth      AuthConfig
	Historian HistorianConfig
}

type ServerConfig struct {
	Port string
	Host string
}

// MatchConfig holds the defaults every new match starts from.
type MatchConfig struct {
	TickInterval time.Duration
	Rules        game.HouseRules
}

type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

type RedisConfig struct {
	Addr    string
	DB      int
	Queue   string
	Enabled bool
}

type PostgresConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Database string
	Enabled  bool
}

type AuthConfig struct {
	// TokenExpiry of zero issues tokens without an exp claim.
	TokenExpiry time.Duration
	// DevTokens enables POST /auth/token, which hands out a player token to anyone.
	DevTokens bool
}

type HistorianConfig struct {
	BatchSize  int
	FlushDelay time.Duration
	Inactivity time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	gate, err := phase.ParseInputGate(getEnv("INPUT_GATE", "allow_list"))
	if err != nil {
		return nil, fmt.Errorf("INPUT_GATE: %w", err)
	}
	expiry, err := parseExpiry(getEnv("TOKEN_EXPIRE_TIME", "72h"))
	if err != nil {
		return nil, fmt.Errorf("TOKEN_EXPIRE_TIME: %w", err)
	}
	defaults := game.DefaultHouseRules()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", ""),
		},
		Match: MatchConfig{
			TickInterval: time.Duration(getEnvInt("TICK_INTERVAL_MS", 50)) * time.Millisecond,
			Rules: game.HouseRules{
				RoundStartupDelayMs: getEnvInt("ROUND_STARTUP_DELAY_MS", defaults.RoundStartupDelayMs),
				BeginTurnDelayMs:    getEnvInt("BEGIN_TURN_DELAY_MS", defaults.BeginTurnDelayMs),
				MainDelayMs:         getEnvInt("MAIN_DELAY_MS", defaults.MainDelayMs),
				EndTurnDelayMs:      getEnvInt("END_TURN_DELAY_MS", defaults.EndTurnDelayMs),
				RoundEndDelayMs:     getEnvInt("ROUND_END_DELAY_MS", defaults.RoundEndDelayMs),
				InputGate:           gate,
			},
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Redis: RedisConfig{
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			DB:      getEnvInt("REDIS_DB", 0),
			Queue:   getEnv("HISTORIAN_QUEUE_NAME", "turnsync_events"),
			Enabled: getEnvBool("REDIS_ENABLED", false),
		},
		Postgres: PostgresConfig{
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Database: getEnv("PG_DATABASE", "turnsync"),
			Enabled:  getEnvBool("POSTGRES_ENABLED", false),
		},
		Auth: AuthConfig{
			TokenExpiry: expiry,
			DevTokens:   getEnvBool("DEV_TOKENS", false),
		},
		Historian: HistorianConfig{
			BatchSize:  getEnvInt("HISTORIAN_BATCH_SIZE", 20),
			FlushDelay: time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
			Inactivity: time.Duration(getEnvInt("MATCH_INACTIVITY_TIMEOUT_SEC", 600)) * time.Second,
		},
	}, nil
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// DSN returns the Postgres connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

// NewLogger builds the process logger from the logging config.
func (c LoggingConfig) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		logger.Warnf("Unknown LOG_LEVEL %q, using info.", c.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if c.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// parseExpiry accepts a Go duration, or "never"/"0" for tokens that do not expire.
func parseExpiry(s string) (time.Duration, error) {
	if s == "never" || s == "0" || s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
