package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/dalle-mcp-server/internal/httpapi"
	"github.com/fpang/dalle-mcp-server/internal/metrics"
	"github.com/fpang/dalle-mcp-server/internal/retention"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	started := time.Now()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = portFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := initGenerator(ctx, cfg)
	sweeper := retention.NewSweeper()
	sched := startSweeps(ctx, cfg, sweeper)
	defer sched.StopAll()

	if !cfg.AuthEnabled() {
		log.Warn().Msg("AUTH_TOKEN is not set - HTTP API is unauthenticated")
	}

	opts := httpapi.Options{
		Sweeper:            sweeper,
		OutputDir:          cfg.OutputDir,
		Policy:             defaultPolicy(cfg),
		AuthToken:          cfg.AuthToken,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimitBurst:     cfg.RateLimitBurst,
		Version:            version,
		Metrics:            metrics.Default,
	}
	if client != nil {
		opts.Generator = client
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpapi.NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Generation plus download can take as long as both timeouts.
		WriteTimeout: cfg.RequestTimeout + cfg.DownloadTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	startupLogger(cfg, "http", client, started).
		Feature("auth", cfg.AuthEnabled()).
		Config("port", fmt.Sprintf("%d", cfg.Port)).
		Log()
	log.Info().Int("port", cfg.Port).Msg("Starting HTTP server")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
