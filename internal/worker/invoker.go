package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"fragmenter/internal/config"
	"fragmenter/internal/logging"
	"fragmenter/internal/services"
)

const component = "worker"

// Invoker launches the external converter for one item at a time.
type Invoker struct {
	cfg    config.Worker
	logger *slog.Logger
	exec   Executor
}

// Option customizes the invoker.
type Option func(*Invoker)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(i *Invoker) {
		if exec != nil {
			i.exec = exec
		}
	}
}

// New constructs an invoker for the configured worker.
func New(cfg config.Worker, logger *slog.Logger, opts ...Option) *Invoker {
	inv := &Invoker{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, component),
		exec:   commandExecutor{},
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Policy returns the resource policy applied to an input of sizeBytes.
func (i *Invoker) Policy(sizeBytes int64) Policy {
	return PolicyFor(i.cfg, sizeBytes)
}

// Attempt converts item into outputPath. It never returns an error; every
// failure is reported through the outcome. outputPath is only written once
// the worker has exited cleanly and produced a non-empty artifact.
func (i *Invoker) Attempt(ctx context.Context, item Item, outputPath string) Outcome {
	policy := i.Policy(item.Size)
	logger := logging.WithContext(ctx, i.logger).With(
		logging.String("tier", policy.Tier),
		logging.Duration("timeout", policy.Timeout),
	)

	outcome := i.attempt(ctx, item, outputPath, policy, logger)
	outcome.Tier = policy.Tier

	if outcome.Success {
		logger.Info("worker conversion succeeded",
			logging.String(logging.FieldEventType, "worker_succeeded"),
			logging.Duration("elapsed", outcome.Elapsed),
			logging.String("output_path", outputPath),
		)
		return outcome
	}
	attrs := []logging.Attr{
		logging.String("reason", outcome.Reason),
		logging.Duration("elapsed", outcome.Elapsed),
		logging.Error(outcome.Err),
		logging.String(logging.FieldImpact, "fallback placeholder will be used if enabled"),
	}
	if outcome.StderrTail != "" {
		attrs = append(attrs, logging.String("stderr_tail", outcome.StderrTail))
	}
	switch outcome.Reason {
	case services.ReasonTimeout:
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "raise the tier timeout_seconds or inspect the input model"))
	case services.ReasonLaunchError:
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "check worker.binary and worker.args"))
	}
	logging.WarnWithContext(logger, "worker conversion failed", "worker_failed", attrs...)
	return outcome
}

func (i *Invoker) attempt(ctx context.Context, item Item, outputPath string, policy Policy, logger *slog.Logger) Outcome {
	start := time.Now()
	failed := func(err error) Outcome {
		return Failed(ProducerPrimary, err, time.Since(start))
	}

	if err := ctx.Err(); err != nil {
		return failed(services.Wrap(services.ErrCanceled, component, "attempt", item.Name, err))
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return failed(services.Wrap(services.ErrLaunch, component, "prepare output", outputPath, err))
	}

	staging := StagingPath(outputPath)
	// No-op once the artifact has been promoted.
	defer func() { _ = os.Remove(staging) }()

	tail := newTailBuffer(i.cfg.OutputTailBytes)
	stdout := newLineLogger(logger, "stdout")
	stderr := newLineLogger(logger, "stderr")

	runCtx, cancel := withPolicyTimeout(ctx, policy.Timeout)
	defer cancel()

	args := policy.Argv(i.cfg.Args, item.SourcePath, staging)
	logger.Debug("worker starting",
		logging.String("binary", i.cfg.Binary),
		logging.String("args", strings.Join(args, " ")),
		logging.Int64("input_bytes", item.Size),
	)
	err := i.exec.Run(runCtx, Command{
		Binary:    i.cfg.Binary,
		Args:      args,
		Dir:       i.cfg.WorkDir,
		Stdout:    stdout,
		Stderr:    io.MultiWriter(stderr, tail),
		WaitDelay: time.Duration(i.cfg.KillGraceSeconds) * time.Second,
	})
	stdout.Flush()
	stderr.Flush()
	if errors.Is(err, exec.ErrWaitDelay) {
		// Clean exit; a descendant kept the output pipes open.
		err = nil
	}

	switch {
	case err == nil:
	case ctx.Err() != nil:
		return failed(services.Wrap(services.ErrCanceled, component, "run", item.Name, ctx.Err()))
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return failed(services.Wrap(services.ErrTimeout, component, "run",
			fmt.Sprintf("exceeded %s tier timeout of %s", policy.Tier, policy.Timeout), nil))
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			outcome := failed(services.Wrap(services.ErrWorkerExit, component, "run",
				fmt.Sprintf("exit status %d", exitErr.ExitCode()), nil))
			outcome.ExitCode = exitErr.ExitCode()
			outcome.StderrTail = tail.String()
			return outcome
		}
		return failed(services.Wrap(services.ErrLaunch, component, "launch", i.cfg.Binary, err))
	}

	info, statErr := os.Stat(staging)
	if statErr != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		outcome := failed(services.Wrap(services.ErrEmptyOutput, component, "verify output",
			"worker exited 0 without a non-empty artifact", nil))
		outcome.ExitCode = 0
		outcome.StderrTail = tail.String()
		return outcome
	}
	if err := os.Rename(staging, outputPath); err != nil {
		return failed(services.Wrap(services.ErrLaunch, component, "promote output", outputPath, err))
	}
	return Succeeded(ProducerPrimary, outputPath, time.Since(start))
}

// StagingPath returns a private sibling of outputPath for the worker to write
// into. The extension is preserved for workers that infer the format from it.
func StagingPath(outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, fmt.Sprintf(".%s.partial-%s%s", stem, uuid.NewString()[:8], ext))
}

func withPolicyTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
