package main

import (
	"log/slog"
	"os"

	"github.com/screenbeam/screenbeam/internal/logging"
	"github.com/screenbeam/screenbeam/internal/server"
)

func main() {
	logging.Init()

	cfg := server.LoadConfig()
	relay := server.NewAdminClient(cfg.RelayAdminURL)

	var store server.Store
	if cfg.RedisAddr != "" {
		redisStore, err := server.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RoomTTL)
		if err != nil {
			slog.Error("redis connection failed", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		store = redisStore
		slog.Info("using redis room store", "addr", cfg.RedisAddr)
	} else {
		memStore := server.NewMemoryStore(cfg.RoomTTL, server.ExpireRelayRoom(relay))
		defer memStore.Close()
		store = memStore
		slog.Info("using in-memory room store")
	}

	router := server.NewRouter(server.NewHandlers(store, relay), cfg.Environment)

	slog.Info("registry listening", "port", cfg.Port, "relay", cfg.RelayAdminURL)
	if err := router.Run(":" + cfg.Port); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
