package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"redub/internal/config"
	"redub/internal/jobstore"
	"redub/internal/logging"
	"redub/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Inspect and clean job work directories",
	}
	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))
	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List job work directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dirs, err := staging.ListDirectories(cfg.Paths.StagingDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintln(out, "Staging directory is empty")
				return nil
			}
			now := time.Now()
			rows := make([][]string, 0, len(dirs))
			for _, dir := range dirs {
				rows = append(rows, []string{
					shortID(dir.JobID),
					humanize.Bytes(uint64(dir.Size)),
					humanize.RelTime(dir.ModTime, now, "ago", "from now"),
					dir.Path,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Job", "Size", "Modified", "Path"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove work directories left by crashed jobs",
		Long: `Clean marks jobs whose process is gone as failed, then removes work
directories older than staging.stale_hours. Directories of running jobs
are always kept; --all ignores the age limit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			maxAge := cfg.StaleWorkDirAge()
			if all {
				maxAge = 0
			}
			result, err := sweepStaging(cmd.Context(), cfg, store, maxAge, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d work directories\n", len(result.Removed))
			for _, failure := range result.Errors {
				fmt.Fprintf(out, "  failed: %s: %v\n", failure.Path, failure.Error)
			}
			if n := len(result.Errors); n > 0 {
				return fmt.Errorf("%d work directories could not be removed", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Remove every inactive work directory regardless of age")
	return cmd
}

// sweepStaging reconciles abandoned jobs and then removes inactive work
// directories older than maxAge.
func sweepStaging(ctx context.Context, cfg *config.Config, store *jobstore.Store, maxAge time.Duration, logger *slog.Logger) (staging.CleanStaleResult, error) {
	n, err := store.ReconcileAbandoned(ctx)
	if err != nil {
		return staging.CleanStaleResult{}, fmt.Errorf("reconcile job history: %w", err)
	}
	if n > 0 {
		logger.Info("abandoned jobs marked failed", logging.Int("count", n))
	}
	active, err := store.ActiveIDs(ctx)
	if err != nil {
		return staging.CleanStaleResult{}, fmt.Errorf("list active jobs: %w", err)
	}
	return staging.CleanStale(ctx, cfg.Paths.StagingDir, maxAge, active, logger), nil
}
