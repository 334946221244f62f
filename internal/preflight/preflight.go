package preflight

import (
	"context"

	"fragmenter/internal/config"
	"fragmenter/internal/sink"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Detail   string `json:"detail"`
	Optional bool   `json:"optional,omitempty"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckReadableDirectory("Source directory", cfg.Paths.SourceDir))
	results = append(results, CheckDirectoryAccess("Target directory", cfg.Paths.TargetDir))
	if cfg.Paths.ReportDir != "" {
		results = append(results, CheckDirectoryAccess("Report directory", cfg.Paths.ReportDir))
	}

	for _, status := range CheckBinaries(WorkerRequirements(cfg.Worker)) {
		results = append(results, Result{
			Name:     status.Name,
			Passed:   status.Available,
			Detail:   status.Summary(),
			Optional: status.Optional,
		})
	}

	if cfg.Sinks.Primary.Enabled {
		results = append(results, CheckSink(ctx, sink.NamePrimary, cfg.Sinks.Primary))
	}
	if secondary, ok := cfg.SecondarySink(); ok {
		results = append(results, CheckSink(ctx, sink.NameSecondary+" ("+cfg.Project.Domain+")", secondary))
	}

	return results
}

// Failed reports whether any required check did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}
