package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"fragmenter/internal/config"
	"fragmenter/internal/server"
	"fragmenter/internal/sink"
)

const sinkQueryTimeout = 15 * time.Second

type sinkStatsView struct {
	Sink          string     `json:"sink"`
	Configured    bool       `json:"configured"`
	Driver        string     `json:"driver,omitempty"`
	Table         string     `json:"table,omitempty"`
	Records       int64      `json:"records"`
	TotalBytes    int64      `json:"total_bytes"`
	LastCreatedAt *time.Time `json:"last_created_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

func newSinksCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sinks",
		Short: "Inspect the fragment sinks",
	}
	cmd.AddCommand(newSinksStatsCommand(ctx))
	cmd.AddCommand(newSinksListCommand(ctx))
	return cmd
}

func newSinksStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show record counts for each configured sink",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			views := []sinkStatsView{
				collectSinkStats(cmd.Context(), sink.NamePrimary, primarySinkConfig(cfg)),
				collectSinkStats(cmd.Context(), sink.NameSecondary, secondarySinkConfig(cfg)),
			}
			if jsonOutput {
				return writeJSON(cmd, views)
			}

			rows := make([][]string, 0, len(views))
			for _, view := range views {
				row := []string{view.Sink, "-", "-", "-", "-", "-"}
				switch {
				case !view.Configured:
					row[5] = "not configured"
				case view.Error != "":
					row[1] = view.Driver
					row[5] = "unavailable: " + view.Error
				default:
					row[1] = view.Driver
					row[2] = view.Table
					row[3] = strconv.FormatInt(view.Records, 10)
					row[4] = fmt.Sprintf("%.2f MB", float64(view.TotalBytes)/(1024*1024))
					if view.LastCreatedAt != nil {
						row[5] = "last stored " + view.LastCreatedAt.Local().Format("2006-01-02 15:04:05")
					} else {
						row[5] = "empty"
					}
				}
				rows = append(rows, row)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Sink", "Driver", "Table", "Records", "Size", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print sink statistics as JSON")
	return cmd
}

func newSinksListCommand(ctx *commandContext) *cobra.Command {
	var sinkName string
	var limit int
	var offset int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records stored in a sink, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var sinkCfg *config.Sink
			switch sinkName {
			case sink.NamePrimary:
				sinkCfg = primarySinkConfig(cfg)
			case sink.NameSecondary:
				sinkCfg = secondarySinkConfig(cfg)
			default:
				return fmt.Errorf("unknown sink %q (want %s or %s)", sinkName, sink.NamePrimary, sink.NameSecondary)
			}
			if sinkCfg == nil {
				return fmt.Errorf("%s sink is not configured", sinkName)
			}

			queryCtx, cancel := context.WithTimeout(cmd.Context(), sinkQueryTimeout)
			defer cancel()
			store, err := sink.Open(queryCtx, *sinkCfg)
			if err != nil {
				return fmt.Errorf("open %s sink: %w", sinkName, err)
			}
			defer store.Close()

			records, err := store.List(queryCtx, sink.ListOptions{Limit: limit, Offset: offset})
			if err != nil {
				return fmt.Errorf("list %s sink: %w", sinkName, err)
			}
			fragments := server.StoredFragments(records)
			if jsonOutput {
				return writeJSON(cmd, fragments)
			}
			out := cmd.OutOrStdout()
			if len(fragments) == 0 {
				fmt.Fprintf(out, "No records in the %s sink\n", sinkName)
				return nil
			}
			rows := make([][]string, 0, len(fragments))
			for _, frag := range fragments {
				rows = append(rows, []string{
					frag.Filename,
					shortHash(frag.FileHash),
					strconv.FormatInt(frag.SizeBytes, 10),
					frag.SourceFile,
					frag.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Fragment", "Hash", "Bytes", "Source", "Stored"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&sinkName, "sink", sink.NamePrimary, "Sink to list (primary or secondary)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum records to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Records to skip")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print records as JSON")
	return cmd
}

func collectSinkStats(ctx context.Context, name string, sinkCfg *config.Sink) sinkStatsView {
	view := sinkStatsView{Sink: name}
	if sinkCfg == nil {
		return view
	}
	view.Configured = true
	view.Driver = sinkCfg.Driver

	queryCtx, cancel := context.WithTimeout(ctx, sinkQueryTimeout)
	defer cancel()
	store, err := sink.Open(queryCtx, *sinkCfg)
	if err != nil {
		view.Error = err.Error()
		return view
	}
	defer store.Close()
	view.Table = store.Table()

	stats, err := store.Stats(queryCtx)
	if err != nil {
		view.Error = err.Error()
		return view
	}
	view.Records = stats.Records
	view.TotalBytes = stats.TotalBytes
	if !stats.LastCreatedAt.IsZero() {
		last := stats.LastCreatedAt
		view.LastCreatedAt = &last
	}
	return view
}

func primarySinkConfig(cfg *config.Config) *config.Sink {
	if !cfg.Sinks.Primary.Enabled {
		return nil
	}
	sinkCfg := cfg.Sinks.Primary
	return &sinkCfg
}

func secondarySinkConfig(cfg *config.Config) *config.Sink {
	sinkCfg, ok := cfg.SecondarySink()
	if !ok {
		return nil
	}
	return &sinkCfg
}

func shortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
