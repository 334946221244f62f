package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fragmenter/internal/config"
	"fragmenter/internal/contenthash"
	"fragmenter/internal/discovery"
	"fragmenter/internal/fileutil"
	"fragmenter/internal/logging"
	"fragmenter/internal/metrics"
	"fragmenter/internal/services"
	"fragmenter/internal/sink"
	"fragmenter/internal/textutil"
	"fragmenter/internal/worker"
)

// Converter runs the primary conversion attempt.
type Converter interface {
	Policy(sizeBytes int64) worker.Policy
	Attempt(ctx context.Context, item worker.Item, outputPath string) worker.Outcome
}

// FallbackProducer writes a degraded placeholder after the converter fails.
type FallbackProducer interface {
	Produce(ctx context.Context, item worker.Item, outputPath string) worker.Outcome
}

// Reporter persists the final statistics of a run and returns the report
// location.
type Reporter interface {
	Emit(stats *Statistics, env Environment) (string, error)
}

// Prompter asks the operator whether an existing fragment may be replaced.
type Prompter interface {
	ConfirmOverwrite(ctx context.Context, item worker.Item, outputPath string) (bool, error)
}

// Dependencies are the collaborators injected into the orchestrator. Nil
// Fallback disables the fallback stage; nil Reporter, Prompter and Metrics
// are allowed.
type Dependencies struct {
	Converter Converter
	Fallback  FallbackProducer
	Sinks     sink.Set
	Reporter  Reporter
	Prompter  Prompter
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// ErrInvalidInput rejects ConvertOne requests that are not IFC files.
var ErrInvalidInput = errors.New("invalid input")

// Orchestrator processes work items one at a time.
type Orchestrator struct {
	cfg      *config.Config
	deps     Dependencies
	logger   *slog.Logger
	now      func() time.Time
	newRunID func() string

	// mu serializes batch runs with single-file conversions.
	mu sync.Mutex
}

// New constructs an orchestrator.
func New(cfg *config.Config, deps Dependencies) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		deps:     deps,
		logger:   logging.NewComponentLogger(deps.Logger, "conversion"),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// Run converts every input in sourceDir (the configured source directory when
// empty). Only a discovery failure or a held run lock is returned as an
// error; everything else is reflected in the statistics. When ctx is
// canceled the in-flight item is recorded, the run is marked interrupted, and
// the partial statistics are still reported.
func (o *Orchestrator) Run(ctx context.Context, sourceDir string) (*Statistics, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if strings.TrimSpace(sourceDir) == "" {
		sourceDir = o.cfg.Paths.SourceDir
	}
	targetDir := o.targetDir(sourceDir)

	items, err := discovery.ListInputs(sourceDir, o.cfg.Conversion.Extensions)
	if err != nil {
		logging.ErrorWithContext(o.logger, "input discovery failed", "discovery_failed",
			logging.String("source_dir", sourceDir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.source_dir exists and is readable"),
		)
		return nil, err
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "conversion", "ensure target", targetDir, err)
	}

	lock, err := acquireRunLock(targetDir)
	if err != nil {
		return nil, err
	}
	defer lock.release(o.logger)

	runID := o.newRunID()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, o.logger)
	stats := newStatistics(runID, o.now(), o.deps.Sinks.Primary != nil, o.deps.Sinks.Secondary != nil)

	logger.Info("conversion run started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.String("source_dir", sourceDir),
		logging.String("target_dir", targetDir),
		logging.Int("item_count", len(items)),
		logging.Int64("total_bytes", discovery.TotalBytes(items)),
	)
	if len(items) == 0 {
		logging.WarnWithContext(logger, "no IFC files found", "no_inputs",
			logging.String("source_dir", sourceDir),
			logging.String(logging.FieldImpact, "nothing to convert"),
			logging.String(logging.FieldErrorHint, "place .ifc files in the source directory"),
		)
	}

	for idx, item := range items {
		if ctx.Err() != nil {
			stats.Interrupted = true
			break
		}
		logger.Info("processing item",
			logging.String(logging.FieldItem, item.Name),
			logging.Int("index", idx+1),
			logging.Int("count", len(items)),
			logging.Int64("size_bytes", item.Size),
		)
		result, _ := o.process(ctx, item, filepath.Join(targetDir, o.fragmentName(item.Name)))
		stats.record(result)
		if ctx.Err() != nil {
			stats.Interrupted = true
			break
		}
	}

	stats.finish(o.now())
	o.deps.Metrics.RunFinished(stats.Interrupted, stats.EndedAt)
	o.logSummary(ctx, stats, sourceDir, targetDir)
	o.emitReport(ctx, stats, o.environment(sourceDir, targetDir))
	return stats, nil
}

// OneResult is the outcome of ConvertOne.
type OneResult struct {
	Item    ItemResult
	Outcome worker.Outcome
	Records []sink.Record
}

// ConvertOne stages data under name and runs it through the same pipeline as
// a batch item. The staged upload is removed afterwards; the fragment stays
// in the target directory.
func (o *Orchestrator) ConvertOne(ctx context.Context, data []byte, name string) (OneResult, error) {
	clean := textutil.SanitizeFileName(name)
	if clean == "" || !discovery.Matches(clean, o.cfg.Conversion.Extensions) {
		return OneResult{}, fmt.Errorf("%w: %q is not an IFC file", ErrInvalidInput, name)
	}
	if len(data) == 0 {
		return OneResult{}, fmt.Errorf("%w: %q is empty", ErrInvalidInput, name)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	stageDir := filepath.Join(o.cfg.Paths.UploadDir, uuid.NewString())
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return OneResult{}, services.Wrap(services.ErrConfiguration, "conversion", "stage upload", stageDir, err)
	}
	defer func() { _ = os.RemoveAll(stageDir) }()

	sourcePath := filepath.Join(stageDir, clean)
	if err := fileutil.WriteFileAtomic(sourcePath, data, 0o644); err != nil {
		return OneResult{}, services.Wrap(services.ErrConfiguration, "conversion", "stage upload", sourcePath, err)
	}
	targetDir := o.cfg.Paths.TargetDir
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return OneResult{}, services.Wrap(services.ErrConfiguration, "conversion", "ensure target", targetDir, err)
	}

	ctx = services.WithRunID(ctx, o.newRunID())
	item := worker.Item{SourcePath: sourcePath, Name: clean, Size: int64(len(data))}
	result, outcome := o.process(ctx, item, filepath.Join(targetDir, o.fragmentName(clean)))

	return OneResult{
		Item:    result,
		Outcome: outcome,
		Records: o.storedRecords(ctx, result),
	}, nil
}

// Environment returns the environment description for sourceDir.
func (o *Orchestrator) Environment(sourceDir string) Environment {
	if strings.TrimSpace(sourceDir) == "" {
		sourceDir = o.cfg.Paths.SourceDir
	}
	return o.environment(sourceDir, o.targetDir(sourceDir))
}

func (o *Orchestrator) storedRecords(ctx context.Context, result ItemResult) []sink.Record {
	if result.Hash == "" {
		return nil
	}
	var records []sink.Record
	for _, mgr := range o.deps.Sinks.Configured() {
		attempt, ok := result.Sink(mgr.Name())
		if !ok || !attempt.Status.Succeeded() {
			continue
		}
		rec, err := mgr.Store().Get(ctx, contenthash.Hash(result.Hash))
		if err != nil {
			o.logger.Debug("stored record lookup failed", logging.String("sink", mgr.Name()), logging.Error(err))
			continue
		}
		rec.Data = nil
		records = append(records, *rec)
	}
	return records
}

func (o *Orchestrator) targetDir(sourceDir string) string {
	if dir := strings.TrimSpace(o.cfg.Paths.TargetDir); dir != "" {
		return dir
	}
	return sourceDir
}

func (o *Orchestrator) fragmentName(inputName string) string {
	return textutil.FragmentName(inputName, o.cfg.Conversion.OutputExt)
}

func (o *Orchestrator) emitReport(ctx context.Context, stats *Statistics, env Environment) {
	if o.deps.Reporter == nil {
		return
	}
	logger := logging.WithContext(ctx, o.logger)
	path, err := o.deps.Reporter.Emit(stats, env)
	if err != nil {
		logging.WarnWithContext(logger, "conversion report not saved", "report_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run results are only available in the logs"),
			logging.String(logging.FieldErrorHint, "check paths.report_dir is writable"),
		)
		return
	}
	logger.Info("conversion report saved",
		logging.String(logging.FieldEventType, "report_saved"),
		logging.String("report_path", path),
	)
}

func (o *Orchestrator) environment(sourceDir, targetDir string) Environment {
	env := Environment{
		SourceDir:    sourceDir,
		TargetDir:    targetDir,
		ReportDir:    o.cfg.Paths.ReportDir,
		WorkerBinary: o.cfg.Worker.Binary,
		WorkerArgs:   strings.Join(o.cfg.Worker.Args, " "),
		Project:      o.cfg.Project.Name,
		Domain:       o.cfg.Project.Domain,
		Fallback:     o.deps.Fallback != nil,
	}
	if o.deps.Sinks.Primary != nil {
		env.PrimarySink = describeSink(o.cfg.Sinks.Primary)
	}
	if o.deps.Sinks.Secondary != nil {
		if cfg, ok := o.cfg.SecondarySink(); ok {
			env.SecondarySink = describeSink(cfg)
		}
	}
	if host, err := os.Hostname(); err == nil {
		env.Hostname = host
	}
	return env
}

// describeSink names a sink without exposing credentials from its DSN.
func describeSink(cfg config.Sink) string {
	table := cfg.Table
	if cfg.Schema != "" {
		table = cfg.Schema + "." + table
	}
	return cfg.Driver + ":" + table
}
