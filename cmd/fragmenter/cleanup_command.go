package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fragmenter/internal/staging"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove upload staging directories abandoned by interrupted conversions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if dryRun {
				dirs, err := staging.List(cfg.Paths.UploadDir)
				if err != nil {
					return err
				}
				cutoff := time.Now().Add(-maxAge)
				count := 0
				for _, dir := range dirs {
					if dir.ModTime.Before(cutoff) {
						fmt.Fprintf(out, "Would remove %s (%d bytes)\n", dir.Path, dir.SizeBytes)
						count++
					}
				}
				fmt.Fprintf(out, "%d of %d upload directories are older than %s\n", count, len(dirs), maxAge)
				return nil
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			result := staging.CleanStale(cfg.Paths.UploadDir, maxAge, logger)
			for _, path := range result.Removed {
				fmt.Fprintf(out, "Removed %s\n", path)
			}
			fmt.Fprintf(out, "Removed %d abandoned upload directories\n", len(result.Removed))
			return result.Err()
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", staging.DefaultMaxAge, "Only remove directories older than this")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be removed without deleting")
	return cmd
}
