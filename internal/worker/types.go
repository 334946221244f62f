package worker

import (
	"time"

	"fragmenter/internal/services"
)

// Item is one input enumerated for conversion. It is not mutated after
// discovery.
type Item struct {
	SourcePath string
	Name       string
	Size       int64
}

// Producer identifies which stage generated an artifact.
type Producer string

const (
	ProducerPrimary  Producer = "primary"
	ProducerFallback Producer = "fallback"
)

// Outcome is the tagged result of one conversion attempt.
type Outcome struct {
	Success      bool
	ArtifactPath string
	Elapsed      time.Duration
	Producer     Producer
	Tier         string
	// Reason is set on failures (see services.Reason*).
	Reason string
	Err    error
	// ExitCode is -1 when the worker never reported an exit status.
	ExitCode   int
	StderrTail string
}

// Succeeded builds a success outcome for the given producer.
func Succeeded(producer Producer, artifactPath string, elapsed time.Duration) Outcome {
	return Outcome{
		Success:      true,
		ArtifactPath: artifactPath,
		Elapsed:      elapsed,
		Producer:     producer,
		ExitCode:     0,
	}
}

// Failed builds a failure outcome; the reason is derived from err.
func Failed(producer Producer, err error, elapsed time.Duration) Outcome {
	return Outcome{
		Success:  false,
		Elapsed:  elapsed,
		Producer: producer,
		Reason:   services.Reason(err),
		Err:      err,
		ExitCode: -1,
	}
}

// Degraded reports whether the artifact is a fallback placeholder.
func (o Outcome) Degraded() bool {
	return o.Success && o.Producer == ProducerFallback
}

// Message returns the failure detail, or an empty string on success.
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
