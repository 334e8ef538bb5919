// cmd/historian/main.go drains the room action log from Redis into Postgres and abandons games
// that stopped producing events.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/tictactoe/internal/cache"
	"github.com/jason-s-yu/tictactoe/internal/config"
	"github.com/jason-s-yu/tictactoe/internal/database"
	"github.com/jason-s-yu/tictactoe/internal/historian"
	"github.com/jason-s-yu/tictactoe/internal/logging"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logger := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectDB(ctx, cfg.Database)
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	store := database.NewStore(pool)
	defer store.Close()

	rdb, err := cache.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	log := cache.NewActionLog(rdb, cfg.Redis.QueueName)
	logger.WithFields(logrus.Fields{
		"queue":      log.Queue(),
		"batch_size": cfg.Historian.BatchSize,
		"inactivity": cfg.Historian.Inactivity,
	}).Info("historian configured")

	historian.New(log, store, cfg.Historian, logger).Run(ctx)
}
