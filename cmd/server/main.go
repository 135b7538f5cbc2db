package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/api"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/channel"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/config"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/directory"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/handlers"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/rooms"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Pick the storage backend: postgres, then sqlite, then in-memory
	var (
		roomStore store.RoomStore
		err       error
	)
	switch {
	case cfg.DatabaseURL != "":
		roomStore, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		logger.Info().Msg("connected to PostgreSQL")
	case cfg.SQLitePath != "":
		roomStore, err = store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite database")
	default:
		roomStore = store.NewMemoryStore()
		logger.Warn().Msg("no storage configured, using in-memory store")
	}
	defer roomStore.Close()

	// Redis is optional: without it fan-out stays instance-local and send
	// rate limiting is disabled
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Platform directory
	var dir directory.Directory
	if cfg.DirectoryURL != "" {
		dir = directory.NewHTTPDirectory(cfg.DirectoryURL)
		logger.Info().Str("url", cfg.DirectoryURL).Msg("using platform directory")
	} else {
		dir = directory.NewStaticDirectory()
		logger.Warn().Msg("no directory configured, all rooms will be ad hoc")
	}

	// Push channel hub
	hub := channel.NewHub(logger, redisStore)
	go hub.Run(ctx)
	go hub.BridgeRedis(ctx)

	// Room engine and HTTP surface
	svc := rooms.NewService(roomStore, dir, hub, logger)
	h := handlers.NewHandler(svc, roomStore, redisStore, dir, hub)
	router := api.NewRouter(cfg, logger, h, redisStore)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting Connectify rooms server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
