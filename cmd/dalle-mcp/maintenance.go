package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fpang/dalle-mcp-server/internal/cli"
	"github.com/fpang/dalle-mcp-server/internal/params"
	"github.com/fpang/dalle-mcp-server/internal/retention"
)

var (
	dirFlag           string
	retentionDaysFlag float64
	maxFilesFlag      int
	dryRunFlag        bool
	jsonFlag          bool
	yesFlag           bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete saved images past the retention policy",
	Long: `Cleanup applies the retention policy to the image directory once.
Flags override the configured policy for this run only.

Examples:
  dalle-mcp cleanup --dry-run
  dalle-mcp cleanup --retention-days 3 --max-files 200 --yes
  dalle-mcp cleanup --dir ./images --json`,
	RunE: runCleanup,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show image directory statistics",
	RunE:  runStats,
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List supported models and their parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonFlag {
			return cli.PrintJSON(cmd.OutOrStdout(), map[string]any{"models": params.Models()})
		}
		return cli.RenderModels(cmd.OutOrStdout(), params.Models())
	},
}

func init() {
	for _, c := range []*cobra.Command{cleanupCmd, statsCmd} {
		c.Flags().StringVarP(&dirFlag, "dir", "d", "", "Image directory (default from DALLE_OUTPUT_DIR)")
	}
	for _, c := range []*cobra.Command{cleanupCmd, statsCmd, modelsCmd} {
		c.Flags().BoolVar(&jsonFlag, "json", false, "Print JSON instead of text")
	}
	cleanupCmd.Flags().Float64Var(&retentionDaysFlag, "retention-days", 0, "Delete images older than this many days")
	cleanupCmd.Flags().IntVar(&maxFilesFlag, "max-files", 0, "Keep at most this many images (0 = unlimited)")
	cleanupCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Report what would be deleted without deleting")
	cleanupCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Do not ask for confirmation")
}

func resolveDir(fallback string) (string, error) {
	dir := dirFlag
	if dir == "" {
		dir = fallback
	}
	return cli.ResolveDirectory(dir)
}

// cleanupOverrides maps only the flags the user set onto the configured policy.
func cleanupOverrides(cmd *cobra.Command) retention.Overrides {
	var o retention.Overrides
	flags := cmd.Flags()
	if flags.Changed("retention-days") {
		o.RetentionDays = &retentionDaysFlag
	}
	if flags.Changed("max-files") {
		o.MaxFiles = &maxFilesFlag
	}
	if flags.Changed("dry-run") {
		o.DryRun = &dryRunFlag
	}
	return o
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir, err := resolveDir(cfg.OutputDir)
	if err != nil {
		return err
	}
	policy, err := cleanupOverrides(cmd).Apply(defaultPolicy(cfg))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sweeper := retention.NewSweeper()
	out := cmd.OutOrStdout()

	if !policy.DryRun && !yesFlag && !jsonFlag && cli.IsInteractive() {
		preview := policy
		preview.DryRun = true
		res, err := sweeper.Cleanup(ctx, dir, preview)
		if err != nil {
			return err
		}
		if res.FilesDeleted == 0 {
			cli.RenderCleanup(out, dir, res)
			return nil
		}
		question := fmt.Sprintf("Delete %d image(s) in %s?", res.FilesDeleted, dir)
		if !cli.Confirm(os.Stdin, out, question) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	res, err := sweeper.Cleanup(ctx, dir, policy)
	if err != nil {
		return err
	}
	if jsonFlag {
		return cli.PrintJSON(out, res)
	}
	cli.RenderCleanup(out, dir, res)
	if !res.Success {
		return fmt.Errorf("%d file(s) could not be deleted", len(res.Errors))
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir, err := resolveDir(cfg.OutputDir)
	if err != nil {
		return err
	}

	stats, err := retention.NewSweeper().Stats(cmd.Context(), dir)
	if err != nil {
		return err
	}
	if jsonFlag {
		return cli.PrintJSON(cmd.OutOrStdout(), stats)
	}
	cli.RenderStats(cmd.OutOrStdout(), dir, stats)
	return nil
}
