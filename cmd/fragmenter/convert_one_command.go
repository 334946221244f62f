package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"fragmenter/internal/conversion"
	"fragmenter/internal/server"
)

type convertOneView struct {
	Item    conversion.ItemResult   `json:"result"`
	Records []server.StoredFragment `json:"stored_records"`
}

func newConvertOneCommand(ctx *commandContext) *cobra.Command {
	var name string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "convert-one FILE",
		Short: "Convert a single IFC file through the full pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			if strings.TrimSpace(name) == "" {
				name = filepath.Base(args[0])
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rt, err := ctx.openPipeline(signalCtx, cfg, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.orch.ConvertOne(signalCtx, data, name)
			if err != nil {
				return err
			}

			view := convertOneView{Item: result.Item, Records: server.StoredFragments(result.Records)}
			if jsonOutput {
				if err := writeJSON(cmd, view); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				item := result.Item
				fmt.Fprintln(out, renderStatusLine(item.Name, itemStatusKind(item.Status), string(item.Status), shouldColorize(out)))
				fmt.Fprintln(out, renderKeyValues(itemPairs(item)))
			}
			if result.Item.Status == conversion.StatusFailed {
				return fmt.Errorf("conversion failed: %s", itemDetail(result.Item))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "File name to record instead of the input's base name")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}

func itemPairs(item conversion.ItemResult) [][2]string {
	pairs := [][2]string{
		{"File", item.Name},
		{"Status", string(item.Status)},
		{"Tier", item.Tier},
		{"Producer", producerLabel(item)},
		{"Time", formatSeconds(item.ConversionSeconds)},
	}
	if item.OutputPath != "" {
		pairs = append(pairs, [2]string{"Output", item.OutputPath})
		pairs = append(pairs, [2]string{"Output size", fmt.Sprintf("%.2f MB", float64(item.OutputBytes)/(1024*1024))})
	}
	if item.Hash != "" {
		pairs = append(pairs, [2]string{"Hash", item.Hash})
	}
	for _, attempt := range item.Sinks {
		value := string(attempt.Status)
		if attempt.Error != "" {
			value += ": " + attempt.Error
		}
		pairs = append(pairs, [2]string{"Sink " + attempt.Sink, value})
	}
	if detail := itemDetail(item); detail != "" {
		pairs = append(pairs, [2]string{"Detail", detail})
	}
	return pairs
}
