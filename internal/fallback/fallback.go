// Package fallback synthesizes clearly-marked placeholder fragments when the
// external worker fails, so downstream sinks still receive an artifact.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"fragmenter/internal/config"
	"fragmenter/internal/fileutil"
	"fragmenter/internal/logging"
	"fragmenter/internal/services"
	"fragmenter/internal/worker"
)

const (
	// Header opens every placeholder fragment.
	Header = "FALLBACK_FRAGMENT_HEADER"
	// Footer closes every placeholder fragment.
	Footer = "FALLBACK_FRAGMENT_FOOTER"

	component = "fallback"
)

// Producer writes placeholder artifacts made of a bounded input excerpt
// wrapped in sentinel markers. Output is deterministic for a given input.
type Producer struct {
	excerptBytes int
	logger       *slog.Logger
}

// New constructs a producer from the fallback configuration.
func New(cfg config.Fallback, logger *slog.Logger) *Producer {
	excerpt := cfg.ExcerptBytes
	if excerpt <= 0 {
		excerpt = 1024
	}
	return &Producer{
		excerptBytes: excerpt,
		logger:       logging.NewComponentLogger(logger, component),
	}
}

// Produce writes the placeholder for item to outputPath. Failures are
// terminal for the item and are reported as fallback-error outcomes.
func (p *Producer) Produce(ctx context.Context, item worker.Item, outputPath string) worker.Outcome {
	start := time.Now()
	logger := logging.WithContext(ctx, p.logger)

	if err := ctx.Err(); err != nil {
		return worker.Failed(worker.ProducerFallback,
			services.Wrap(services.ErrCanceled, component, "produce", item.Name, err), time.Since(start))
	}
	if err := p.write(item.SourcePath, outputPath); err != nil {
		outcome := worker.Failed(worker.ProducerFallback,
			services.Wrap(services.ErrFallback, component, "produce", item.Name, err), time.Since(start))
		logging.ErrorWithContext(logger, "fallback fragment failed", "fallback_failed",
			logging.Error(err),
			logging.String("input_path", item.SourcePath),
			logging.String(logging.FieldErrorHint, "check that the input is readable and the target directory is writable"),
		)
		return outcome
	}

	logging.WarnWithContext(logger, "fallback fragment written", "fallback_written",
		logging.String("output_path", outputPath),
		logging.String(logging.FieldImpact, "stored fragment is a degraded placeholder"),
		logging.String(logging.FieldErrorHint, "inspect the worker failure above and reconvert"),
	)
	return worker.Succeeded(worker.ProducerFallback, outputPath, time.Since(start))
}

func (p *Producer) write(inputPath, outputPath string) error {
	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	excerpt := make([]byte, p.excerptBytes)
	n, err := io.ReadFull(in, excerpt)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read input: %w", err)
	}
	excerpt = excerpt[:n]

	err = fileutil.WriteAtomic(outputPath, 0o644, func(w io.Writer) error {
		if _, err := io.WriteString(w, Header+"\n"); err != nil {
			return err
		}
		if _, err := w.Write(excerpt); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n"+Footer)
		return err
	})
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
