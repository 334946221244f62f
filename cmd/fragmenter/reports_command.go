package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fragmenter/internal/config"
	"fragmenter/internal/report"
)

func newReportsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Browse saved conversion reports",
	}
	cmd.AddCommand(newReportsListCommand(ctx))
	cmd.AddCommand(newReportsShowCommand(ctx))
	return cmd
}

func newReportsListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries, err := report.List(cfg.Paths.ReportDir)
			if err != nil {
				return err
			}
			if jsonOutput {
				if entries == nil {
					entries = []report.Entry{}
				}
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No reports in %s\n", cfg.Paths.ReportDir)
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for i, entry := range entries {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					entry.Timestamp.Local().Format("2006-01-02 15:04:05"),
					entry.Name,
					strconv.FormatInt(entry.SizeBytes, 10),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Written", "Report", "Bytes"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the listing as JSON")
	return cmd
}

func newReportsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show [PATH|INDEX|latest]",
		Short: "Replay a saved report",
		Long: "Replay a saved report. The argument is a report path, the index shown by\n" +
			"`reports list`, or `latest` (the default).",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ref := "latest"
			if len(args) == 1 {
				ref = args[0]
			}
			path, err := resolveReport(cfg, ref)
			if err != nil {
				return err
			}
			doc, err := report.Load(path)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, doc)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Report: %s\n", path)
			fmt.Fprint(out, renderRunSummary(doc.Summary, shouldColorize(out)))
			env := doc.Environment
			fmt.Fprintln(out, renderKeyValues([][2]string{
				{"Source", env.SourceDir},
				{"Target", env.TargetDir},
				{"Project", env.Project},
				{"Domain", env.Domain},
				{"Worker", strings.TrimSpace(env.WorkerBinary + " " + env.WorkerArgs)},
				{"Primary sink", env.PrimarySink},
				{"Secondary sink", env.SecondarySink},
				{"Fallback", yesNo(env.Fallback)},
				{"Host", env.Hostname},
			}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report document as JSON")
	return cmd
}

// resolveReport maps a path, a 1-based list index, or "latest" to a report
// file.
func resolveReport(cfg *config.Config, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return ref, nil
	}
	entries, err := report.List(cfg.Paths.ReportDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no reports in %s", cfg.Paths.ReportDir)
	}
	if ref == "" || ref == "latest" {
		return entries[0].Path, nil
	}
	index, err := strconv.Atoi(ref)
	if err != nil {
		return "", fmt.Errorf("report %q not found", ref)
	}
	if index < 1 || index > len(entries) {
		return "", fmt.Errorf("report index %d out of range (1-%d)", index, len(entries))
	}
	return entries[index-1].Path, nil
}
