package sink

import (
	"context"
	"errors"
	"log/slog"

	"fragmenter/internal/config"
	"fragmenter/internal/logging"
)

const (
	NamePrimary   = "primary"
	NameSecondary = "secondary"
)

// Set holds the sinks injected into the orchestrator. A nil field means the
// sink is not configured.
type Set struct {
	Primary   *Manager
	Secondary *Manager
}

// OpenConfigured opens the primary sink and the secondary sink selected by
// project.domain. A sink that cannot be opened is logged and left nil, so
// the run proceeds as if it were not configured.
func OpenConfigured(ctx context.Context, cfg *config.Config, logger *slog.Logger) Set {
	var set Set
	if cfg == nil {
		return set
	}
	if cfg.Sinks.Primary.Enabled {
		set.Primary = openManager(ctx, NamePrimary, cfg.Sinks.Primary, logger)
	}
	if sinkCfg, ok := cfg.SecondarySink(); ok {
		set.Secondary = openManager(ctx, NameSecondary, sinkCfg, logger)
	}
	return set
}

func openManager(ctx context.Context, name string, sinkCfg config.Sink, logger *slog.Logger) *Manager {
	store, err := Open(ctx, sinkCfg)
	if err != nil {
		logging.WarnWithContext(logging.NewComponentLogger(logger, "sink"), "sink unavailable; continuing without it", "sink_open_failed",
			logging.String("sink", name),
			logging.String("driver", sinkCfg.Driver),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify the sink dsn and that the database is reachable"),
			logging.String(logging.FieldImpact, "fragments will not be stored in this sink for this run"),
		)
		return nil
	}
	return NewManager(name, store, logger)
}

// Configured returns the non-nil managers in attempt order.
func (s Set) Configured() []*Manager {
	out := make([]*Manager, 0, 2)
	if s.Primary != nil {
		out = append(out, s.Primary)
	}
	if s.Secondary != nil {
		out = append(out, s.Secondary)
	}
	return out
}

// Close closes every configured sink.
func (s Set) Close() error {
	var errs []error
	for _, m := range s.Configured() {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
