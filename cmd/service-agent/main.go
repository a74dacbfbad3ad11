package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ibhelm/service-agent/internal/api"
	"github.com/ibhelm/service-agent/internal/auth"
	"github.com/ibhelm/service-agent/internal/config"
	"github.com/ibhelm/service-agent/internal/docker"
	"github.com/ibhelm/service-agent/internal/logging"
	"github.com/ibhelm/service-agent/internal/supabase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	cli, err := docker.Connect()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to docker engine")
	}
	defer cli.Close()

	manager := docker.NewManager(cli, cfg, logger)
	store := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, logger)
	verifier := auth.NewVerifier(cfg.SupabaseJWTSecret)

	srv := api.NewServer(logger, manager, store, verifier, cfg)

	httpServer := &http.Server{
		Addr:        cfg.HTTPListenAddr,
		Handler:     srv,
		ReadTimeout: 15 * time.Second,
		// An update runs git pull plus an image build in the request;
		// the write timeout has to outlast the slowest build.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting service agent")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}
