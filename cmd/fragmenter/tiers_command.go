package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fragmenter/internal/worker"
)

func newTiersCommand(ctx *commandContext) *cobra.Command {
	var sizeMB float64

	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "Show the worker resource tiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if cmd.Flags().Changed("size-mb") {
				if sizeMB < 0 {
					return fmt.Errorf("--size-mb must be non-negative, got %g", sizeMB)
				}
				policy := worker.PolicyFor(cfg.Worker, int64(sizeMB*1024*1024))
				argv := policy.Argv(cfg.Worker.Args, "input.ifc", "output.frag")
				fmt.Fprintln(out, renderKeyValues([][2]string{
					{"Size", fmt.Sprintf("%g MB", sizeMB)},
					{"Tier", policy.Tier},
					{"Timeout", policy.Timeout.String()},
					{"Memory", memoryLabel(policy.MemoryMB)},
					{"Command", strings.Join(append([]string{cfg.Worker.Binary}, argv...), " ")},
				}))
				return nil
			}

			rows := make([][]string, 0, len(cfg.Worker.Tiers))
			for i, tier := range cfg.Worker.Tiers {
				applies := "baseline"
				if i > 0 {
					applies = "> " + strconv.FormatFloat(tier.MinSizeMB, 'f', -1, 64) + " MB"
				}
				rows = append(rows, []string{
					tier.Name,
					applies,
					strconv.Itoa(tier.TimeoutSeconds) + "s",
					memoryLabel(tier.MemoryMB),
					strings.Join(tier.ExtraFlags, " "),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Tier", "Applies", "Timeout", "Memory", "Flags"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().Float64Var(&sizeMB, "size-mb", 0, "Show the policy applied to an input of this size")
	return cmd
}

func memoryLabel(memoryMB int) string {
	if memoryMB <= 0 {
		return "runtime default"
	}
	return strconv.Itoa(memoryMB) + " MB"
}
