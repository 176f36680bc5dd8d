// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/turnsync/internal/auth"
	"github.com/jason-s-yu/turnsync/internal/cache"
	"github.com/jason-s-yu/turnsync/internal/config"
	"github.com/jason-s-yu/turnsync/internal/database"
	"github.com/jason-s-yu/turnsync/internal/handlers"
	"github.com/jason-s-yu/turnsync/internal/middleware"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := cfg.Logging.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := auth.Init(cfg.Auth.TokenExpiry); err != nil {
		logger.Fatalf("auth: %v", err)
	}

	if cfg.Redis.Enabled {
		if err := cache.ConnectRedis(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Queue); err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer cache.Rdb.Close()
		logger.Infof("Publishing match history to %s on %s", cache.QueueName, cfg.Redis.Addr)
	}
	if cfg.Postgres.Enabled {
		if err := database.ConnectDB(ctx, cfg.Postgres.DSN()); err != nil {
			logger.Fatalf("postgres: %v", err)
		}
		defer database.DB.Close()
	}

	srv := handlers.NewGameServer(cfg, logger)
	logged := middleware.LogMiddleware(logger)

	mux := http.NewServeMux()
	mux.Handle("/match/create", logged(handlers.CreateMatchHandler(srv)))
	mux.Handle("/match/list", logged(handlers.ListMatchesHandler(srv)))
	mux.Handle("/match/settings/", logged(handlers.MatchSettingsHandler(srv)))
	mux.Handle("/match/ws/", logged(handlers.GameWSHandler(logger, srv)))
	if cfg.Auth.DevTokens {
		logger.Warn("DEV_TOKENS enabled: /auth/token issues tokens to anyone")
		mux.Handle("/auth/token", logged(http.HandlerFunc(handlers.TokenHandler)))
	}

	go srv.Run(ctx)

	httpServer := &http.Server{Addr: cfg.Addr(), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, m := range srv.GameStore.List() {
			srv.EndMatch(m.ID)
		}
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Infof("Running on %s", cfg.Addr())
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
}
