package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/dalle-mcp-server/internal/cli"
	"github.com/fpang/dalle-mcp-server/internal/config"
	"github.com/fpang/dalle-mcp-server/internal/imagegen"
	"github.com/fpang/dalle-mcp-server/internal/logging"
	"github.com/fpang/dalle-mcp-server/internal/metrics"
	"github.com/fpang/dalle-mcp-server/internal/retention"
	"github.com/fpang/dalle-mcp-server/internal/s3util"
)

const serverName = "dalle-mcp-server"

// Set via -ldflags at build time.
var (
	version    = "dev"
	commitHash = "unknown"
	buildTime  = "unknown"
)

// CLI flags
var (
	envFileFlag string
	portFlag    int
)

var rootCmd = &cobra.Command{
	Use:   "dalle-mcp",
	Short: "DALL-E image generation over MCP and HTTP",
	Long: `dalle-mcp exposes OpenAI DALL-E image generation to MCP clients over stdio
and, optionally, as an HTTP API. Requests are validated against each model's
capabilities before any API call, and saved images are swept on a schedule.

Examples:
  dalle-mcp                      # stdio MCP server
  dalle-mcp serve --port 3000
  dalle-mcp cleanup --dry-run
  dalle-mcp stats --json`,
	SilenceUsage: true,
	RunE:         runMCP,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP tools over stdin/stdout",
	RunE:  runMCP,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit %s, built %s)\n", serverName, version, commitHash, buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "dotenv file to load before reading the environment")
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (default from PORT, then 3000)")

	rootCmd.AddCommand(mcpCmd, serveCmd, cleanupCmd, statsCmd, modelsCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration and sets up logging and metrics output.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFileFlag)
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.LogLevel, cfg.LogJSON)
	if cfg.MetricsEMF {
		metrics.SetEMFOutput(os.Stderr)
	}
	return cfg, nil
}

func defaultPolicy(cfg *config.Config) retention.Policy {
	return retention.Policy{
		Retention: cfg.CleanupRetention,
		MaxFiles:  cfg.CleanupMaxFiles,
		DryRun:    cfg.CleanupDryRun,
	}
}

// initGenerator builds the image client. A nil client means generation is
// unavailable; the servers still start and report that per request.
func initGenerator(ctx context.Context, cfg *config.Config) *imagegen.Client {
	var archiver imagegen.Archiver
	if cfg.ArchiveEnabled() {
		a, err := s3util.NewFromEnvironment(ctx, cfg.ArchiveBucket, cfg.ArchivePrefix)
		if err != nil {
			log.Warn().Err(err).Str("bucket", cfg.ArchiveBucket).Msg("S3 archive disabled: failed to load AWS config")
		} else {
			archiver = a
		}
	}

	client, err := cli.InitImageClient(ctx, cfg, archiver)
	if err != nil {
		log.Warn().Err(err).Msg(cli.ValidationHint(err) + " - image generation disabled")
		return nil
	}
	return client
}

// startSweeps schedules the retention sweep for the output directory when
// enabled. The returned scheduler is always usable for StopAll.
func startSweeps(ctx context.Context, cfg *config.Config, sweeper *retention.Sweeper) *retention.Scheduler {
	sched := retention.NewScheduler(sweeper, nil)
	if !cfg.CleanupEnabled {
		log.Info().Msg("Scheduled image cleanup disabled")
		return sched
	}
	if _, err := sched.Start(ctx, cfg.OutputDir, defaultPolicy(cfg), cfg.CleanupInterval); err != nil {
		log.Error().Err(err).Str("dir", cfg.OutputDir).Msg("Failed to start scheduled image cleanup")
	}
	return sched
}

func startupLogger(cfg *config.Config, mode string, gen *imagegen.Client, started time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(serverName, mode).
		Version(version).
		CommitHash(commitHash).
		BuildTime(buildTime).
		LogLevel(cfg.LogLevel).
		Directory("output", cfg.OutputDir).
		S3Bucket("archive", cfg.ArchiveBucket).
		SSMParam("api_key", cfg.SSMAPIKeyParam).
		Feature("generation", gen != nil).
		Feature("scheduled_cleanup", cfg.CleanupEnabled).
		Feature("metrics_emf", cfg.MetricsEMF).
		Config("retention", cfg.CleanupRetention.String()).
		Config("cleanup_interval", cfg.CleanupInterval.String()).
		Config("max_files", fmt.Sprintf("%d", cfg.CleanupMaxFiles)).
		InitDuration(time.Since(started))
}
