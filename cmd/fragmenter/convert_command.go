package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"fragmenter/internal/config"
	"fragmenter/internal/conversion"
	"fragmenter/internal/preflight"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var sourceDir string
	var targetDir string
	var interactive bool
	var skipPreflight bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert every IFC file in the source directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := withRunOverrides(base, sourceDir, targetDir)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interactive") {
				cfg.Conversion.Interactive = interactive
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if !skipPreflight {
				results := preflight.RunAll(signalCtx, cfg)
				if preflight.Failed(results) {
					out := cmd.ErrOrStderr()
					for _, line := range preflightLines(results, shouldColorize(out)) {
						fmt.Fprintln(out, line)
					}
					return errors.New("preflight checks failed; fix the errors above or pass --skip-preflight")
				}
			}

			var prompter conversion.Prompter
			if cfg.Conversion.Interactive {
				in, ok := promptInput(cmd)
				if ok {
					prompter = conversion.NewLinePrompter(in, cmd.OutOrStdout())
				} else {
					fmt.Fprintln(cmd.ErrOrStderr(), "stdin is not a terminal; existing fragments will be overwritten")
				}
			}

			rt, err := ctx.openPipeline(signalCtx, cfg, prompter)
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.orch.Run(signalCtx, "")
			if err != nil {
				return fmt.Errorf("convert: %w", err)
			}

			if jsonOutput {
				if err := writeJSON(cmd, stats); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderRunSummary(stats, shouldColorize(out)))
			}
			if stats.Interrupted {
				return context.Canceled
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceDir, "source", "s", "", "Directory to read IFC files from (defaults to paths.source_dir)")
	cmd.Flags().StringVarP(&targetDir, "target", "t", "", "Directory to write fragments to (defaults to --source when given, else paths.target_dir)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Ask before overwriting existing fragments")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip environment checks before converting")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print run statistics as JSON")
	return cmd
}

// withRunOverrides copies cfg with command-line directory overrides applied.
// A source override without a target override writes beside the inputs.
func withRunOverrides(cfg *config.Config, sourceDir, targetDir string) (*config.Config, error) {
	local := *cfg
	if source := strings.TrimSpace(sourceDir); source != "" {
		expanded, err := config.ExpandPath(source)
		if err != nil {
			return nil, fmt.Errorf("resolve source dir: %w", err)
		}
		local.Paths.SourceDir = expanded
		local.Paths.TargetDir = expanded
	}
	if target := strings.TrimSpace(targetDir); target != "" {
		expanded, err := config.ExpandPath(target)
		if err != nil {
			return nil, fmt.Errorf("resolve target dir: %w", err)
		}
		local.Paths.TargetDir = expanded
	}
	if local.Paths.TargetDir != cfg.Paths.TargetDir {
		if err := os.MkdirAll(local.Paths.TargetDir, 0o755); err != nil {
			return nil, fmt.Errorf("create target dir: %w", err)
		}
	}
	return &local, nil
}
