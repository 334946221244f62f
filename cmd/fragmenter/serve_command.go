package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"fragmenter/internal/server"
	"fragmenter/internal/sink"
	"fragmenter/internal/staging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP front-end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg := *base
			if trimmed := strings.TrimSpace(bind); trimmed != "" {
				cfg.API.Bind = trimmed
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rt, err := ctx.openPipeline(signalCtx, &cfg, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			staging.CleanStale(cfg.Paths.UploadDir, staging.DefaultMaxAge, rt.logger)

			var store sink.Store
			if rt.sinks.Primary != nil {
				store = rt.sinks.Primary.Store()
			}
			srv := server.New(&cfg, rt.orch, store, rt.registry, rt.logger)
			if err := srv.Start(signalCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s (Ctrl+C to stop)\n", srv.Addr())

			<-signalCtx.Done()
			srv.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (defaults to api.bind)")
	return cmd
}
