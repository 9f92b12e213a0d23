package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"weaponwatch-server-go/internal/api"
	"weaponwatch-server-go/internal/config"
	"weaponwatch-server-go/internal/logging"
	"weaponwatch-server-go/internal/services"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg := config.Load()

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Optionally tee logs into the embedded Logdy UI
	if cfg.LogdyEnabled {
		logdyWriter, url, err := logging.StartLogdy(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Logdy unavailable, console only")
		} else {
			console := zerolog.ConsoleWriter{Out: os.Stderr}
			log.Logger = log.Output(io.MultiWriter(console, logdyWriter))
			log.Info().Str("url", url).Msg("Log viewer started")
		}
	}

	log.Info().
		Str("server_id", cfg.ServerID).
		Int("port", cfg.Port).
		Dur("confirm_window", cfg.ConfirmWindow).
		Msg("Starting WeaponWatch server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire services: store, messaging, escalation, watcher, verification, feed
	container, err := services.NewServiceContainer(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}

	// Create and start API server
	server := api.NewServer(cfg, container)
	if err := server.Setup(); err != nil {
		log.Fatal().Err(err).Msg("Failed to setup API server")
	}

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	// Graceful shutdown: stop accepting requests, then drain services
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := container.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Service shutdown error")
	} else {
		log.Info().Msg("Server shutdown complete")
	}
}
