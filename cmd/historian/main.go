// cmd/historian drains match events from Redis and persists them to Postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/jason-s-yu/turnsync/internal/cache"
	"github.com/jason-s-yu/turnsync/internal/config"
	"github.com/jason-s-yu/turnsync/internal/database"
	"github.com/jason-s-yu/turnsync/internal/historian"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := cfg.Logging.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.ConnectDB(ctx, cfg.Postgres.DSN()); err != nil {
		logger.Fatalf("postgres: %v", err)
	}
	defer database.DB.Close()
	if err := database.EnsureSchema(ctx); err != nil {
		logger.Fatalf("postgres: %v", err)
	}

	if err := cache.ConnectRedis(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Queue); err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer cache.Rdb.Close()

	svc := historian.New(
		historian.RedisQueue{Client: cache.Rdb, Name: cache.QueueName},
		database.HistoryStore{},
		historian.Options{
			BatchSize:  cfg.Historian.BatchSize,
			FlushDelay: cfg.Historian.FlushDelay,
			Inactivity: cfg.Historian.Inactivity,
		},
		logger,
	)
	svc.Run(ctx)
}
