package conversion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fragmenter/internal/contenthash"
	"fragmenter/internal/logging"
	"fragmenter/internal/services"
	"fragmenter/internal/sink"
	"fragmenter/internal/worker"
)

// process drives one item from Converting to a terminal state. It never
// returns an error; failures are recorded on the result.
func (o *Orchestrator) process(ctx context.Context, item worker.Item, outputPath string) (ItemResult, worker.Outcome) {
	ctx = services.WithItemName(ctx, item.Name)
	logger := logging.WithContext(ctx, o.logger)

	o.deps.Metrics.ItemStarted()
	result := ItemResult{
		Name:       item.Name,
		SourcePath: item.SourcePath,
		SizeBytes:  item.Size,
	}
	finish := func(status Status) ItemResult {
		result.Status = status
		o.deps.Metrics.ItemFinished(string(status))
		return result
	}

	if skip, reason := o.shouldSkip(ctx, item, outputPath); skip {
		logger.Info("item skipped",
			logging.String(logging.FieldEventType, "item_skipped"),
			logging.String("output_path", outputPath),
			logging.String("reason", reason),
		)
		result.Reason = reason
		result.OutputPath = outputPath
		return finish(StatusSkipped), worker.Outcome{}
	}

	outcome, primary := o.convert(ctx, item, outputPath)
	result.Tier = outcome.Tier
	result.Producer = outcome.Producer
	result.Degraded = outcome.Degraded()
	result.ConversionSeconds = outcome.Elapsed.Seconds()
	if !primary.Success {
		result.WorkerReason = primary.Reason
	}
	if !outcome.Success {
		result.Reason = outcome.Reason
		result.Message = outcome.Message()
		logging.ErrorWithContext(logger, "item conversion failed", "item_failed",
			logging.String("reason", outcome.Reason),
			logging.String("worker_reason", primary.Reason),
			logging.Error(outcome.Err),
			logging.String(logging.FieldImpact, "no fragment was produced for this input"),
		)
		return finish(StatusFailed), outcome
	}

	result.OutputPath = outcome.ArtifactPath
	data, hash, err := readArtifact(outcome.ArtifactPath)
	if err != nil {
		result.Reason = services.ReasonUnknown
		result.Message = fmt.Sprintf("read artifact: %v", err)
		logging.ErrorWithContext(logger, "fragment unreadable after conversion", "artifact_unreadable",
			logging.String("output_path", outcome.ArtifactPath),
			logging.Error(err),
		)
		return finish(StatusFailed), outcome
	}
	result.Hash = hash.String()
	result.OutputBytes = int64(len(data))

	artifact := sink.Artifact{
		Filename:   filepath.Base(outcome.ArtifactPath),
		SourceName: item.Name,
		Data:       data,
		Hash:       hash,
		Metadata:   o.metadata(ctx, item, outcome, primary, int64(len(data))),
	}
	// The in-flight item is stored even when the run is being interrupted.
	result.Sinks = o.store(context.WithoutCancel(ctx), artifact)

	status := StatusStored
	for _, attempt := range result.Sinks {
		if attempt.Status == SinkFailed {
			status = StatusPartiallyStored
		}
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "item_completed"),
		logging.String("status", string(status)),
		logging.String("producer", string(outcome.Producer)),
		logging.String("tier", outcome.Tier),
		logging.String("file_hash", hash.Short()),
		logging.Int64("output_bytes", result.OutputBytes),
		logging.Float64("conversion_seconds", result.ConversionSeconds),
	}
	if status == StatusPartiallyStored {
		logging.WarnWithContext(logger, "item partially stored", "item_partially_stored",
			append(attrs, logging.String(logging.FieldImpact, "fragment is missing from at least one sink"))...)
	} else {
		logger.Info("item completed", logging.Args(attrs...)...)
	}
	return finish(status), outcome
}

// convert runs the two-stage attempt pipeline. It returns the final outcome
// and the primary worker's outcome.
func (o *Orchestrator) convert(ctx context.Context, item worker.Item, outputPath string) (worker.Outcome, worker.Outcome) {
	primary := o.deps.Converter.Attempt(ctx, item, outputPath)
	o.recordAttempt(primary)
	if primary.Success {
		return primary, primary
	}
	if o.deps.Fallback == nil || primary.Reason == services.ReasonCanceled {
		return primary, primary
	}

	fallback := o.deps.Fallback.Produce(ctx, item, outputPath)
	fallback.Tier = primary.Tier
	o.recordAttempt(fallback)
	fallback.Elapsed += primary.Elapsed
	if !fallback.Success {
		// Keep the worker failure visible alongside the fallback error.
		fallback.Err = errors.Join(primary.Err, fallback.Err)
	}
	return fallback, primary
}

func (o *Orchestrator) recordAttempt(outcome worker.Outcome) {
	reason := outcome.Reason
	if outcome.Success {
		reason = "ok"
	}
	o.deps.Metrics.Attempt(string(outcome.Producer), outcome.Tier, reason, outcome.Elapsed)
}

// store offers the artifact to the primary sink and then, depending on the
// primary result, to the secondary sink.
func (o *Orchestrator) store(ctx context.Context, artifact sink.Artifact) []SinkAttempt {
	var attempts []SinkAttempt
	primary := o.deps.Sinks.Primary
	primaryOK := false
	if primary != nil {
		attempt := o.put(ctx, primary, artifact)
		primaryOK = attempt.Status.Succeeded()
		attempts = append(attempts, attempt)
	}

	secondary := o.deps.Sinks.Secondary
	if secondary == nil {
		return attempts
	}
	switch {
	case primary == nil:
		// No primary configured: the secondary is the only durable copy.
		attempts = append(attempts, o.put(ctx, secondary, artifact))
	case primaryOK:
		attempts = append(attempts, o.put(ctx, secondary, artifact))
	default:
		o.deps.Metrics.SinkPut(secondary.Name(), string(SinkNotAttempted))
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "secondary sink not attempted", "sink_not_attempted",
			logging.String("sink", secondary.Name()),
			logging.String(logging.FieldImpact, "secondary copy skipped because the primary store failed"),
			logging.String(logging.FieldErrorHint, "fix the primary sink and re-run; stored hashes are skipped"),
		)
		attempts = append(attempts, SinkAttempt{Sink: secondary.Name(), Status: SinkNotAttempted})
	}
	return attempts
}

func (o *Orchestrator) put(ctx context.Context, mgr *sink.Manager, artifact sink.Artifact) SinkAttempt {
	attempt := SinkAttempt{Sink: mgr.Name()}
	res, err := mgr.Put(ctx, artifact)
	switch {
	case err != nil:
		attempt.Status = SinkFailed
		attempt.Error = err.Error()
	case res.Status == sink.PutAlreadyPresent:
		attempt.Status = SinkAlreadyPresent
	default:
		attempt.Status = SinkStored
	}
	o.deps.Metrics.SinkPut(mgr.Name(), string(attempt.Status))
	return attempt
}

// shouldSkip consults the prompter when interactive mode is on and the
// fragment already exists.
func (o *Orchestrator) shouldSkip(ctx context.Context, item worker.Item, outputPath string) (bool, string) {
	if !o.cfg.Conversion.Interactive || o.deps.Prompter == nil {
		return false, ""
	}
	if _, err := os.Stat(outputPath); err != nil {
		return false, ""
	}
	ok, err := o.deps.Prompter.ConfirmOverwrite(ctx, item, outputPath)
	if err != nil && ctx.Err() != nil {
		logging.WithContext(ctx, o.logger).Info("interrupted at overwrite prompt",
			logging.String(logging.FieldEventType, "prompt_interrupted"),
		)
		return true, "interrupted at overwrite prompt"
	}
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "overwrite prompt failed", "prompt_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "existing fragment kept"),
		)
		return true, "prompt failed"
	}
	if !ok {
		return true, "overwrite declined"
	}
	return false, ""
}

// readArtifact loads the fragment for the sink insert and hashes it in the
// same pass.
func readArtifact(path string) ([]byte, contenthash.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	if info, err := f.Stat(); err == nil {
		buf.Grow(int(info.Size()))
	}
	hash, err := contenthash.Reader(io.TeeReader(f, &buf))
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), hash, nil
}
