// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jason-s-yu/tictactoe/internal/auth"
	"github.com/jason-s-yu/tictactoe/internal/cache"
	"github.com/jason-s-yu/tictactoe/internal/config"
	"github.com/jason-s-yu/tictactoe/internal/database"
	"github.com/jason-s-yu/tictactoe/internal/database/migrations"
	"github.com/jason-s-yu/tictactoe/internal/handlers"
	"github.com/jason-s-yu/tictactoe/internal/logging"
	"github.com/jason-s-yu/tictactoe/internal/registry"
	"github.com/jason-s-yu/tictactoe/internal/room"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logger := logging.New(cfg.Log)

	ttl, err := cfg.Auth.TokenTTL()
	if err != nil {
		logger.Fatalf("invalid token ttl: %v", err)
	}
	tokens, err := auth.NewTokenIssuer(ttl)
	if err != nil {
		logger.Fatalf("failed to create token issuer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Migrate {
		runMigrations(cfg.Database.DSN(), logger)
	}

	pool, err := database.ConnectDB(ctx, cfg.Database)
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	store := database.NewStore(pool)
	defer store.Close()
	logger.Info("connected to database")

	opts := room.Options{GracePeriod: cfg.Room.GracePeriod}
	if cfg.Redis.Enabled {
		rdb, err := cache.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("action log disabled: redis unavailable")
		} else {
			defer rdb.Close()
			opts.Events = cache.NewActionLog(rdb, cfg.Redis.QueueName)
			logger.WithField("queue", cfg.Redis.QueueName).Info("publishing room events to redis")
		}
	}

	reg := registry.New(logger)
	coord := room.NewCoordinator(store, reg, logger, opts)

	sessions := handlers.NewSessionGateway(coord, reg, tokens, handlers.WSOptions{
		PingInterval:   cfg.Server.PingInterval,
		WriteTimeout:   cfg.Server.WriteTimeout,
		OutboxSize:     cfg.Server.OutboxSize,
		OriginPatterns: originPatterns(cfg.Server.CORSOrigins),
	}, logger)

	router := handlers.NewRouter(handlers.RouterDeps{
		Sessions:    sessions,
		Stats:       handlers.NewStatsHandlers(store, coord, logger, cfg.Development()),
		Rooms:       coord,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown did not complete")
	}
	// Hijacked websocket connections are not tracked by the http server.
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("websocket sessions did not finish")
	}
	coord.Shutdown()
	logger.Info("server stopped")
}

func runMigrations(dsn string, logger *logrus.Logger) {
	m, err := migrations.New(dsn, logger)
	if err != nil {
		logger.Fatalf("failed to open migrations: %v", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil {
		logger.Fatalf("failed to apply migrations: %v", err)
	}
}

// originPatterns converts CORS origins to the host patterns websocket.Accept expects.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		host := strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		patterns = append(patterns, host)
	}
	return patterns
}
