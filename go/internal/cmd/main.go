package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	defer services.Close()

	gatewayDone := make(chan struct{})
	go func() {
		defer close(gatewayDone)
		if err := services.Gateway.Start(ctx); err != nil {
			log.Error().Err(err).Msg("view gateway failed")
		}
	}()

	if err := services.App.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start engine")
	}
	if services.Subscriber != nil {
		if err := services.Subscriber.Start(ctx); err != nil {
			log.Error().Err(err).Msg("failed to subscribe to peer invalidations")
		}
	}

	server := setupServer(cfg.Server.Port, services)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("ledger_mode", cfg.Ledger.Mode).
			Dur("sync_interval", cfg.Sync.Interval).
			Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if services.Subscriber != nil {
		if err := services.Subscriber.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop invalidation subscriber")
		}
	}
	if err := services.App.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop engine")
	}

	cancel()
	<-gatewayDone

	log.Info().Msg("velobid shutdown complete")
}
