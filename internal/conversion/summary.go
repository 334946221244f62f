package conversion

import (
	"context"

	"fragmenter/internal/logging"
)

// logSummary writes the end-of-run account: totals, per-sink rates, and one
// line per item.
func (o *Orchestrator) logSummary(ctx context.Context, stats *Statistics, sourceDir, targetDir string) {
	logger := logging.WithContext(ctx, o.logger)

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "run_summary"),
		logging.String("source_dir", sourceDir),
		logging.String("target_dir", targetDir),
		logging.Int("total", stats.Total),
		logging.Int("succeeded", stats.Succeeded),
		logging.Int("failed", stats.Failed),
		logging.Int("skipped", stats.Skipped),
		logging.Int("partially_stored", stats.PartiallyStored),
		logging.Int("degraded", stats.Degraded),
		logging.Float64("success_rate_percent", round(stats.SuccessRate(), 1)),
		logging.Float64("total_seconds", round(stats.TotalSeconds, 2)),
		logging.Bool("interrupted", stats.Interrupted),
	}
	if stats.Total > 0 {
		attrs = append(attrs, logging.Float64("average_seconds", round(stats.TotalSeconds/float64(stats.Total), 2)))
	}
	attrs = append(attrs,
		sinkGroup("primary_sink", stats.Primary),
		sinkGroup("secondary_sink", stats.Secondary),
	)
	if stats.Interrupted {
		logging.WarnWithContext(logger, "conversion run interrupted", "run_interrupted",
			append(attrs, logging.String(logging.FieldImpact, "remaining inputs were not processed"))...)
	} else {
		logger.Info("conversion run finished", logging.Args(attrs...)...)
	}

	for _, item := range stats.Items {
		itemAttrs := []logging.Attr{
			logging.String(logging.FieldItem, item.Name),
			logging.String("status", string(item.Status)),
			logging.Float64("conversion_seconds", round(item.ConversionSeconds, 2)),
		}
		if item.Producer != "" {
			itemAttrs = append(itemAttrs, logging.String("producer", string(item.Producer)))
		}
		if item.Reason != "" {
			itemAttrs = append(itemAttrs, logging.String("reason", item.Reason))
		}
		for _, attempt := range item.Sinks {
			itemAttrs = append(itemAttrs, logging.String("sink_"+attempt.Sink, string(attempt.Status)))
		}
		logger.Info("item result", logging.Args(itemAttrs...)...)
	}
}

func sinkGroup(key string, counts SinkCounts) logging.Attr {
	if !counts.Configured {
		return logging.Group(key, logging.Bool("configured", false))
	}
	rate := 0.0
	if attempted := counts.Attempted(); attempted > 0 {
		rate = round(float64(counts.Succeeded())/float64(attempted)*100, 1)
	}
	return logging.Group(key,
		logging.Bool("configured", true),
		logging.Int("stored", counts.Stored),
		logging.Int("already_present", counts.AlreadyPresent),
		logging.Int("failed", counts.Failed),
		logging.Int("not_attempted", counts.NotAttempted),
		logging.Float64("success_rate_percent", rate),
	)
}
