package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"fragmenter/internal/config"
	"fragmenter/internal/conversion"
	"fragmenter/internal/fallback"
	"fragmenter/internal/logging"
	"fragmenter/internal/metrics"
	"fragmenter/internal/report"
	"fragmenter/internal/sink"
	"fragmenter/internal/worker"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logging: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// pipeline is the conversion stack wired from one resolved config.
type pipeline struct {
	cfg      *config.Config
	logger   *slog.Logger
	sinks    sink.Set
	registry *prometheus.Registry
	orch     *conversion.Orchestrator
}

// openPipeline opens the configured sinks and assembles an orchestrator for
// cfg. prompter may be nil. Callers must Close the pipeline.
func (c *commandContext) openPipeline(ctx context.Context, cfg *config.Config, prompter conversion.Prompter) (*pipeline, error) {
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sinks := sink.OpenConfigured(ctx, cfg, logger)
	deps := conversion.Dependencies{
		Converter: worker.New(cfg.Worker, logger),
		Sinks:     sinks,
		Reporter:  report.New(cfg.Paths.ReportDir, cfg.Logging.RetentionDays, logger),
		Prompter:  prompter,
		Metrics:   metrics.New(registry),
		Logger:    logger,
	}
	if cfg.Fallback.Enabled {
		deps.Fallback = fallback.New(cfg.Fallback, logger)
	}

	return &pipeline{
		cfg:      cfg,
		logger:   logger,
		sinks:    sinks,
		registry: registry,
		orch:     conversion.New(cfg, deps),
	}, nil
}

func (p *pipeline) Close() error {
	return p.sinks.Close()
}

// promptInput returns the reader overwrite prompts read from and whether it
// can answer them. A non-terminal stdin cannot.
func promptInput(cmd *cobra.Command) (io.Reader, bool) {
	in := cmd.InOrStdin()
	if file, ok := in.(*os.File); ok {
		fd := file.Fd()
		return in, isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return in, true
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
