package conversion

import (
	"time"

	"fragmenter/internal/sink"
	"fragmenter/internal/worker"
)

// Status is an item's terminal state.
type Status string

const (
	StatusStored          Status = "stored"
	StatusPartiallyStored Status = "partially_stored"
	StatusFailed          Status = "failed"
	StatusSkipped         Status = "skipped"
)

// SinkStatus records what happened to an item in one sink.
type SinkStatus string

const (
	SinkStored         SinkStatus = "stored"
	SinkAlreadyPresent SinkStatus = "already_present"
	SinkFailed         SinkStatus = "failed"
	SinkNotAttempted   SinkStatus = "not_attempted"
)

// Succeeded reports whether the artifact is durable in the sink.
func (s SinkStatus) Succeeded() bool {
	return s == SinkStored || s == SinkAlreadyPresent
}

// SinkAttempt is one sink's result for an item.
type SinkAttempt struct {
	Sink   string     `json:"sink"`
	Status SinkStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// ItemResult is the per-item record appended to Statistics.
type ItemResult struct {
	Name              string          `json:"file"`
	SourcePath        string          `json:"source_path"`
	SizeBytes         int64           `json:"size_bytes"`
	Status            Status          `json:"status"`
	Tier              string          `json:"tier,omitempty"`
	Producer          worker.Producer `json:"producer,omitempty"`
	Degraded          bool            `json:"degraded"`
	Reason            string          `json:"reason,omitempty"`
	Message           string          `json:"message,omitempty"`
	WorkerReason      string          `json:"worker_reason,omitempty"`
	OutputPath        string          `json:"output_path,omitempty"`
	OutputBytes       int64           `json:"output_bytes,omitempty"`
	Hash              string          `json:"file_hash,omitempty"`
	ConversionSeconds float64         `json:"conversion_time"`
	Sinks             []SinkAttempt   `json:"sinks,omitempty"`
}

// Sink returns the attempt recorded for the named sink.
func (r ItemResult) Sink(name string) (SinkAttempt, bool) {
	for _, attempt := range r.Sinks {
		if attempt.Sink == name {
			return attempt, true
		}
	}
	return SinkAttempt{}, false
}

// SinkCounts aggregates one sink's results over a run.
type SinkCounts struct {
	Configured     bool `json:"configured"`
	Stored         int  `json:"stored"`
	AlreadyPresent int  `json:"already_present"`
	Failed         int  `json:"failed"`
	NotAttempted   int  `json:"not_attempted"`
}

// Succeeded counts items durable in the sink.
func (c SinkCounts) Succeeded() int { return c.Stored + c.AlreadyPresent }

// Attempted counts items the sink was asked to store.
func (c SinkCounts) Attempted() int { return c.Stored + c.AlreadyPresent + c.Failed }

// Statistics is the account of one run. It is owned by the run that created
// it and must not be modified once returned.
type Statistics struct {
	RunID           string       `json:"run_id"`
	StartedAt       time.Time    `json:"start_time"`
	EndedAt         time.Time    `json:"end_time"`
	TotalSeconds    float64      `json:"total_time"`
	Total           int          `json:"total_files"`
	Succeeded       int          `json:"successful"`
	Failed          int          `json:"failed"`
	Skipped         int          `json:"skipped"`
	PartiallyStored int          `json:"partially_stored"`
	Degraded        int          `json:"degraded"`
	Primary         SinkCounts   `json:"primary_sink"`
	Secondary       SinkCounts   `json:"secondary_sink"`
	Interrupted     bool         `json:"interrupted"`
	Items           []ItemResult `json:"results"`
}

func newStatistics(runID string, started time.Time, primary, secondary bool) *Statistics {
	return &Statistics{
		RunID:     runID,
		StartedAt: started,
		Primary:   SinkCounts{Configured: primary},
		Secondary: SinkCounts{Configured: secondary},
		Items:     []ItemResult{},
	}
}

// record appends result and updates the counters.
func (s *Statistics) record(result ItemResult) {
	s.Items = append(s.Items, result)
	s.Total++
	switch result.Status {
	case StatusStored:
		s.Succeeded++
	case StatusPartiallyStored:
		s.Succeeded++
		s.PartiallyStored++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
	if result.Degraded {
		s.Degraded++
	}
	for _, attempt := range result.Sinks {
		counts := s.sinkCounts(attempt.Sink)
		if counts == nil {
			continue
		}
		switch attempt.Status {
		case SinkStored:
			counts.Stored++
		case SinkAlreadyPresent:
			counts.AlreadyPresent++
		case SinkFailed:
			counts.Failed++
		case SinkNotAttempted:
			counts.NotAttempted++
		}
	}
}

func (s *Statistics) sinkCounts(name string) *SinkCounts {
	switch name {
	case sink.NamePrimary:
		return &s.Primary
	case sink.NameSecondary:
		return &s.Secondary
	}
	return nil
}

func (s *Statistics) finish(ended time.Time) {
	s.EndedAt = ended
	s.TotalSeconds = ended.Sub(s.StartedAt).Seconds()
}

// SuccessRate is the percentage of items that produced an artifact.
func (s *Statistics) SuccessRate() float64 {
	if s == nil || s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total) * 100
}

// Environment describes where a run read from and wrote to.
type Environment struct {
	SourceDir     string `json:"source_directory"`
	TargetDir     string `json:"target_directory"`
	ReportDir     string `json:"report_directory"`
	WorkerBinary  string `json:"worker_binary"`
	WorkerArgs    string `json:"worker_args"`
	Project       string `json:"project_name"`
	Domain        string `json:"project_domain,omitempty"`
	PrimarySink   string `json:"primary_sink,omitempty"`
	SecondarySink string `json:"secondary_sink,omitempty"`
	Fallback      bool   `json:"fallback_enabled"`
	Hostname      string `json:"hostname,omitempty"`
}
