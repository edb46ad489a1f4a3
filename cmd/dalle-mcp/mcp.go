package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/dalle-mcp-server/internal/mcpserver"
	"github.com/fpang/dalle-mcp-server/internal/retention"
)

func runMCP(cmd *cobra.Command, args []string) error {
	started := time.Now()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := initGenerator(ctx, cfg)
	sweeper := retention.NewSweeper()
	sched := startSweeps(ctx, cfg, sweeper)
	defer sched.StopAll()

	deps := mcpserver.Deps{
		Sweeper:   sweeper,
		OutputDir: cfg.OutputDir,
		Policy:    defaultPolicy(cfg),
	}
	if client != nil {
		deps.Generator = client
	}
	srv := mcpserver.New(serverName, version, deps)

	startupLogger(cfg, "mcp-stdio", client, started).Log()

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("MCP session ended")
	return nil
}
