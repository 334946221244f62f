package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLaunch          = errors.New("worker launch error")
	ErrTimeout         = errors.New("timeout")
	ErrEmptyOutput     = errors.New("empty output")
	ErrWorkerExit      = errors.New("worker exit status")
	ErrCanceled        = errors.New("canceled")
	ErrFallback        = errors.New("fallback error")
	ErrSinkUnavailable = errors.New("sink unavailable")
	ErrSinkWrite       = errors.New("sink write error")
	ErrDiscovery       = errors.New("discovery error")
	ErrConfiguration   = errors.New("configuration error")
)

// Reason values recorded on failed outcomes.
const (
	ReasonLaunchError   = "launch-error"
	ReasonTimeout       = "timeout"
	ReasonEmptyOutput   = "empty-output"
	ReasonExitStatus    = "exit-status"
	ReasonCanceled      = "canceled"
	ReasonFallbackError = "fallback-error"
	ReasonUnknown       = "unknown"
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		return fmt.Errorf("%s: %w", detail, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Reason maps an error to the outcome reason persisted for a failed item.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return ReasonTimeout
	case errors.Is(err, ErrCanceled):
		// A parent deadline is a cancellation of this attempt, not a tier timeout.
		return ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, ErrEmptyOutput):
		return ReasonEmptyOutput
	case errors.Is(err, ErrWorkerExit):
		return ReasonExitStatus
	case errors.Is(err, ErrLaunch):
		return ReasonLaunchError
	case errors.Is(err, ErrFallback):
		return ReasonFallbackError
	default:
		return ReasonUnknown
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
