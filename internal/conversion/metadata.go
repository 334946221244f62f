package conversion

import (
	"context"
	"math"

	"fragmenter/internal/services"
	"fragmenter/internal/worker"
)

const (
	bytesPerMB = 1024 * 1024

	fallbackConverterLabel = "fallback_placeholder"
	fallbackNote           = "Placeholder fragment - original conversion failed"
)

// metadata builds the conversion_metadata document stored with an artifact.
func (o *Orchestrator) metadata(ctx context.Context, item worker.Item, final, primary worker.Outcome, outputBytes int64) map[string]any {
	converter := o.cfg.Conversion.ConverterLabel
	if final.Producer == worker.ProducerFallback {
		converter = fallbackConverterLabel
	}
	meta := map[string]any{
		"conversion_time_seconds":   round(final.Elapsed.Seconds(), 3),
		"input_size_mb":             round(float64(item.Size)/bytesPerMB, 3),
		"output_size_mb":            round(float64(outputBytes)/bytesPerMB, 3),
		"compression_ratio_percent": compressionRatio(item.Size, outputBytes),
		"ifc_source_path":           item.SourcePath,
		"converter_version":         converter,
		"project_name":              o.cfg.Project.Name,
		"conversion_timestamp":      o.now().UTC().Format("2006-01-02T15:04:05.000000Z07:00"),
		"producer":                  string(final.Producer),
		"degraded":                  final.Degraded(),
		"tier":                      final.Tier,
	}
	if runID, ok := services.RunIDFromContext(ctx); ok {
		meta["run_id"] = runID
	}
	if domain := o.cfg.Project.Domain; domain != "" {
		meta["domain"] = domain
	}
	if final.Degraded() {
		meta["note"] = fallbackNote
		meta["worker_failure_reason"] = primary.Reason
	}
	return meta
}

// compressionRatio is the percentage saved relative to the input size.
func compressionRatio(inputBytes, outputBytes int64) float64 {
	if inputBytes <= 0 {
		return 0
	}
	return round(float64(inputBytes-outputBytes)/float64(inputBytes)*100, 2)
}

func round(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}
