package conversion_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"fragmenter/internal/config"
	"fragmenter/internal/contenthash"
	"fragmenter/internal/conversion"
	"fragmenter/internal/fallback"
	"fragmenter/internal/logging"
	"fragmenter/internal/services"
	"fragmenter/internal/sink"
	"fragmenter/internal/testsupport"
	"fragmenter/internal/worker"
)

const domain = "XQG4_XCIM"

type captureReporter struct {
	calls int
	stats *conversion.Statistics
	env   conversion.Environment
	err   error
}

func (r *captureReporter) Emit(stats *conversion.Statistics, env conversion.Environment) (string, error) {
	r.calls++
	r.stats = stats
	r.env = env
	if r.err != nil {
		return "", r.err
	}
	return "report.json", nil
}

type answerPrompter struct {
	answer bool
	asked  []string
}

func (p *answerPrompter) ConfirmOverwrite(_ context.Context, item worker.Item, _ string) (bool, error) {
	p.asked = append(p.asked, item.Name)
	return p.answer, nil
}

// failingStore accepts existence checks but rejects every insert.
type failingStore struct {
	inserts int
}

func (s *failingStore) Exists(context.Context, contenthash.Hash) (bool, error) { return false, nil }
func (s *failingStore) Insert(context.Context, sink.Record) error {
	s.inserts++
	return errors.New("disk full")
}
func (s *failingStore) Get(context.Context, contenthash.Hash) (*sink.Record, error) {
	return nil, sink.ErrNotFound
}
func (s *failingStore) List(context.Context, sink.ListOptions) ([]sink.Record, error) {
	return nil, nil
}
func (s *failingStore) Stats(context.Context) (sink.Stats, error) { return sink.Stats{}, nil }
func (s *failingStore) Close() error                              { return nil }

type harness struct {
	cfg      *config.Config
	orch     *conversion.Orchestrator
	sinks    sink.Set
	reporter *captureReporter
}

func newHarness(t *testing.T, cfg *config.Config, mutate ...func(*conversion.Dependencies)) *harness {
	t.Helper()
	logger := logging.NewNop()
	sinks := sink.OpenConfigured(context.Background(), cfg, logger)
	t.Cleanup(func() { _ = sinks.Close() })

	reporter := &captureReporter{}
	deps := conversion.Dependencies{
		Converter: worker.New(cfg.Worker, logger),
		Sinks:     sinks,
		Reporter:  reporter,
		Logger:    logger,
	}
	if cfg.Fallback.Enabled {
		deps.Fallback = fallback.New(cfg.Fallback, logger)
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	return &harness{
		cfg:      cfg,
		orch:     conversion.New(cfg, deps),
		sinks:    deps.Sinks,
		reporter: reporter,
	}
}

func recordCount(t *testing.T, mgr *sink.Manager) int64 {
	t.Helper()
	stats, err := mgr.Store().Stats(context.Background())
	if err != nil {
		t.Fatalf("store stats: %v", err)
	}
	return stats.Records
}

func TestRunStoresSmallInputInBothSinks(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSecondarySink(domain))
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.SourceDir, "tower.ifc"), 5*1024*1024)
	h := newHarness(t, cfg)

	stats, err := h.orch.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Total != 1 || stats.Succeeded != 1 || stats.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	item := stats.Items[0]
	if item.Status != conversion.StatusStored {
		t.Fatalf("expected stored, got %s (%s)", item.Status, item.Message)
	}
	if item.Tier != "small" {
		t.Fatalf("expected small tier for 5MB input, got %q", item.Tier)
	}
	if item.Producer != worker.ProducerPrimary || item.Degraded {
		t.Fatalf("expected primary non-degraded artifact, got %s degraded=%v", item.Producer, item.Degraded)
	}
	for _, name := range []string{sink.NamePrimary, sink.NameSecondary} {
		attempt, ok := item.Sink(name)
		if !ok || attempt.Status != conversion.SinkStored {
			t.Fatalf("expected %s stored, got %+v", name, attempt)
		}
	}
	if got := filepath.Base(item.OutputPath); got != "tower.frag" {
		t.Fatalf("unexpected fragment name %q", got)
	}
	if stats.Primary.Stored != 1 || stats.Secondary.Stored != 1 {
		t.Fatalf("unexpected sink counts: primary=%+v secondary=%+v", stats.Primary, stats.Secondary)
	}
	if h.reporter.calls != 1 || h.reporter.stats != stats {
		t.Fatalf("expected statistics to be reported once")
	}
	if h.reporter.env.PrimarySink == "" || h.reporter.env.SecondarySink == "" {
		t.Fatalf("expected environment to describe both sinks: %+v", h.reporter.env)
	}

	rec, err := h.sinks.Primary.Store().Get(context.Background(), contenthash.Hash(item.Hash))
	if err != nil {
		t.Fatalf("get stored record: %v", err)
	}
	if rec.Metadata["degraded"] != false {
		t.Fatalf("expected degraded=false, got %v", rec.Metadata["degraded"])
	}
	if rec.Metadata["converter_version"] != cfg.Conversion.ConverterLabel {
		t.Fatalf("unexpected converter label %v", rec.Metadata["converter_version"])
	}
	if rec.Metadata["run_id"] != stats.RunID {
		t.Fatalf("expected run id %q in metadata, got %v", stats.RunID, rec.Metadata["run_id"])
	}
}

func TestRunFallsBackAfterTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithSecondarySink(domain),
		testsupport.WithWorkerScript(testsupport.WorkerHang),
		testsupport.WithTimeoutSeconds(1),
	)
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "slab.ifc"), []byte("ISO-10303-21;\nDATA;\n"))
	h := newHarness(t, cfg)

	start := time.Now()
	stats, err := h.orch.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("run blocked for %s past a 1s timeout", elapsed)
	}

	item := stats.Items[0]
	if item.Status != conversion.StatusStored {
		t.Fatalf("expected stored, got %s (%s)", item.Status, item.Message)
	}
	if item.Producer != worker.ProducerFallback || !item.Degraded {
		t.Fatalf("expected degraded fallback artifact, got %s degraded=%v", item.Producer, item.Degraded)
	}
	if item.WorkerReason != services.ReasonTimeout {
		t.Fatalf("expected worker timeout to be retained, got %q", item.WorkerReason)
	}
	if stats.Degraded != 1 {
		t.Fatalf("expected one degraded item, got %d", stats.Degraded)
	}
	for _, mgr := range h.sinks.Configured() {
		attempt, _ := item.Sink(mgr.Name())
		if attempt.Status != conversion.SinkStored {
			t.Fatalf("expected %s stored, got %+v", mgr.Name(), attempt)
		}
		rec, err := mgr.Store().Get(context.Background(), contenthash.Hash(item.Hash))
		if err != nil {
			t.Fatalf("get %s record: %v", mgr.Name(), err)
		}
		if rec.Metadata["degraded"] != true || rec.Metadata["producer"] != "fallback" {
			t.Fatalf("expected degraded fallback metadata in %s, got %v", mgr.Name(), rec.Metadata)
		}
		if rec.Metadata["converter_version"] != "fallback_placeholder" {
			t.Fatalf("expected fallback converter label, got %v", rec.Metadata["converter_version"])
		}
		if rec.Metadata["worker_failure_reason"] != services.ReasonTimeout {
			t.Fatalf("expected worker failure reason, got %v", rec.Metadata["worker_failure_reason"])
		}
	}

	data, err := os.ReadFile(item.OutputPath)
	if err != nil {
		t.Fatalf("read fragment: %v", err)
	}
	if !bytes.HasPrefix(data, []byte(fallback.Header)) {
		t.Fatalf("expected fallback header in fragment, got %q", data)
	}
}

func TestRunFailsWhenFallbackAlsoFails(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithSecondarySink(domain),
		testsupport.WithWorkerScript(`rm -f "$1"; exit 1`),
	)
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "wall.ifc"), []byte("ISO-10303-21;"))
	h := newHarness(t, cfg)

	stats, err := h.orch.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	item := stats.Items[0]
	if item.Status != conversion.StatusFailed {
		t.Fatalf("expected failed, got %s", item.Status)
	}
	if item.Reason != services.ReasonFallbackError {
		t.Fatalf("expected fallback-error reason, got %q", item.Reason)
	}
	if item.WorkerReason != services.ReasonExitStatus {
		t.Fatalf("expected worker exit-status to be retained, got %q", item.WorkerReason)
	}
	if len(item.Sinks) != 0 {
		t.Fatalf("expected no sink attempts, got %+v", item.Sinks)
	}
	if stats.Failed != 1 || stats.Primary.Attempted() != 0 || stats.Secondary.Attempted() != 0 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
}

func TestRunSkipsSecondaryWhenPrimaryFails(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSecondarySink(domain))
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "a.ifc"), []byte("first"))
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "b.ifc"), []byte("second"))

	primary := &failingStore{}
	secondaryStore := testsupport.MustOpenSink(t, cfg.Sinks.Secondary[domain])
	logger := logging.NewNop()
	secondary := sink.NewManager(sink.NameSecondary, secondaryStore, logger)
	h := newHarness(t, cfg, func(deps *conversion.Dependencies) {
		deps.Sinks = sink.Set{
			Primary:   sink.NewManager(sink.NamePrimary, primary, logger),
			Secondary: secondary,
		}
	})

	stats, err := h.orch.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if primary.inserts != 2 {
		t.Fatalf("expected two primary inserts, got %d", primary.inserts)
	}
	for _, item := range stats.Items {
		if item.Status != conversion.StatusPartiallyStored {
			t.Fatalf("%s: expected partially stored, got %s", item.Name, item.Status)
		}
		p, _ := item.Sink(sink.NamePrimary)
		if p.Status != conversion.SinkFailed || !strings.Contains(p.Error, "disk full") {
			t.Fatalf("%s: expected primary failure, got %+v", item.Name, p)
		}
		s, _ := item.Sink(sink.NameSecondary)
		if s.Status != conversion.SinkNotAttempted {
			t.Fatalf("%s: expected secondary not attempted, got %+v", item.Name, s)
		}
	}
	if got := recordCount(t, secondary); got != 0 {
		t.Fatalf("expected secondary to stay empty, got %d records", got)
	}
	if stats.PartiallyStored != 2 || stats.Secondary.NotAttempted != 2 || stats.Primary.Failed != 2 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
}

func TestRunUsesSecondaryWhenPrimaryNotConfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithoutPrimarySink(),
		testsupport.WithSecondarySink(domain),
	)
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "roof.ifc"), []byte("roof"))
	h := newHarness(t, cfg)
	if h.sinks.Primary != nil {
		t.Fatal("expected primary sink to be absent")
	}

	stats, err := h.orch.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	item := stats.Items[0]
	if item.Status != conversion.StatusStored {
		t.Fatalf("expected stored, got %s", item.Status)
	}
	if _, ok := item.Sink(sink.NamePrimary); ok {
		t.Fatal("expected no primary attempt")
	}
	if s, _ := item.Sink(sink.NameSecondary); s.Status != conversion.SinkStored {
		t.Fatalf("expected secondary stored, got %+v", s)
	}
	if stats.Primary.Configured {
		t.Fatal("expected primary counts to be unconfigured")
	}
}

func TestRunStoresSharedContentOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "copy 1.ifc"), []byte("same model"))
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "copy 2.ifc"), []byte("same model"))
	h := newHarness(t, cfg)

	stats, err := h.orch.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Total != 2 || stats.Succeeded != 2 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	first, second := stats.Items[0], stats.Items[1]
	if first.Name != "copy 1.ifc" || second.Name != "copy 2.ifc" {
		t.Fatalf("unexpected order: %s, %s", first.Name, second.Name)
	}
	if first.Hash != second.Hash {
		t.Fatalf("expected shared content hash")
	}
	if p, _ := first.Sink(sink.NamePrimary); p.Status != conversion.SinkStored {
		t.Fatalf("expected first put stored, got %+v", p)
	}
	if p, _ := second.Sink(sink.NamePrimary); p.Status != conversion.SinkAlreadyPresent {
		t.Fatalf("expected second put already present, got %+v", p)
	}
	if first.Status != conversion.StatusStored || second.Status != conversion.StatusStored {
		t.Fatalf("expected both stored, got %s and %s", first.Status, second.Status)
	}
	if got := recordCount(t, h.sinks.Primary); got != 1 {
		t.Fatalf("expected one stored record, got %d", got)
	}
	if got := filepath.Base(first.OutputPath); got != "copy_1.frag" {
		t.Fatalf("unexpected fragment name %q", got)
	}
}

func TestRunWithoutSinksIsStored(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutPrimarySink())
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "door.ifc"), []byte("door"))
	h := newHarness(t, cfg)

	stats, err := h.orch.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if item := stats.Items[0]; item.Status != conversion.StatusStored || len(item.Sinks) != 0 {
		t.Fatalf("expected stored without sink attempts, got %+v", item)
	}
}

func TestRunWithoutFallbackFailsItem(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithWorkerScript(testsupport.WorkerEmpty),
		testsupport.WithFallbackDisabled(),
	)
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "beam.ifc"), []byte("beam"))
	h := newHarness(t, cfg)

	stats, err := h.orch.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	item := stats.Items[0]
	if item.Status != conversion.StatusFailed || item.Reason != services.ReasonEmptyOutput {
		t.Fatalf("expected empty-output failure, got %s/%s", item.Status, item.Reason)
	}
}

func TestRunMissingSourceDirIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := newHarness(t, cfg)

	_, err := h.orch.Run(context.Background(), filepath.Join(testsupport.BaseDir(cfg), "missing"))
	if !errors.Is(err, services.ErrDiscovery) {
		t.Fatalf("expected discovery error, got %v", err)
	}
	if h.reporter.calls != 0 {
		t.Fatal("expected no report for a run that never started")
	}
}

func TestRunCanceledIsInterruptedAndReported(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "a.ifc"), []byte("a"))
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "b.ifc"), []byte("b"))
	h := newHarness(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := h.orch.Run(ctx, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !stats.Interrupted {
		t.Fatal("expected interrupted run")
	}
	if stats.Total != 0 {
		t.Fatalf("expected no items processed, got %d", stats.Total)
	}
	if h.reporter.calls != 1 || !h.reporter.stats.Interrupted {
		t.Fatal("expected partial statistics to be reported")
	}
}

func TestRunCanceledMidItemSkipsFallback(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkerScript(testsupport.WorkerHang))
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "a.ifc"), []byte("a"))
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "b.ifc"), []byte("b"))
	h := newHarness(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	stats, err := h.orch.Run(ctx, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !stats.Interrupted || stats.Total != 1 {
		t.Fatalf("expected one interrupted item, got total=%d interrupted=%v", stats.Total, stats.Interrupted)
	}
	item := stats.Items[0]
	if item.Status != conversion.StatusFailed || item.Producer != worker.ProducerPrimary {
		t.Fatalf("expected failed primary attempt without fallback, got %+v", item)
	}
	if item.Reason != services.ReasonCanceled {
		t.Fatalf("expected canceled reason, got %q", item.Reason)
	}
}

func TestRunReportFailureDoesNotFailRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "a.ifc"), []byte("a"))
	h := newHarness(t, cfg)
	h.reporter.err = errors.New("read-only filesystem")

	stats, err := h.orch.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Succeeded != 1 {
		t.Fatalf("expected item to succeed, got %+v", stats)
	}
}

func TestRunRejectsConcurrentRunOnTarget(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := newHarness(t, cfg)

	lock := flock.New(filepath.Join(cfg.Paths.TargetDir, conversion.LockFileName))
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("take lock: ok=%v err=%v", ok, err)
	}
	defer func() { _ = lock.Unlock() }()

	if _, err := h.orch.Run(context.Background(), ""); !errors.Is(err, conversion.ErrRunInProgress) {
		t.Fatalf("expected run in progress error, got %v", err)
	}
}

func TestInteractiveModeSkipsDeclinedOverwrite(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Conversion.Interactive = true
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "old.ifc"), []byte("old"))
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "new.ifc"), []byte("new"))
	existing := filepath.Join(cfg.Paths.TargetDir, "old.frag")
	testsupport.WriteContent(t, existing, []byte("previous fragment"))

	prompter := &answerPrompter{answer: false}
	h := newHarness(t, cfg, func(deps *conversion.Dependencies) { deps.Prompter = prompter })

	stats, err := h.orch.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(prompter.asked) != 1 || prompter.asked[0] != "old.ifc" {
		t.Fatalf("expected a single prompt for old.ifc, got %v", prompter.asked)
	}
	if stats.Skipped != 1 || stats.Succeeded != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	for _, item := range stats.Items {
		if item.Name == "old.ifc" && item.Status != conversion.StatusSkipped {
			t.Fatalf("expected old.ifc skipped, got %s", item.Status)
		}
	}
	data, err := os.ReadFile(existing)
	if err != nil || string(data) != "previous fragment" {
		t.Fatalf("expected existing fragment untouched, got %q (%v)", data, err)
	}
}

type cancelingPrompter struct {
	cancel context.CancelFunc
}

func (p cancelingPrompter) ConfirmOverwrite(ctx context.Context, _ worker.Item, _ string) (bool, error) {
	p.cancel()
	<-ctx.Done()
	return false, ctx.Err()
}

func TestInterruptAtPromptStopsRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Conversion.Interactive = true
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "old.ifc"), []byte("old"))
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "zz.ifc"), []byte("later"))
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.TargetDir, "old.frag"), []byte("previous fragment"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t, cfg, func(deps *conversion.Dependencies) {
		deps.Prompter = cancelingPrompter{cancel: cancel}
	})

	stats, err := h.orch.Run(ctx, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !stats.Interrupted {
		t.Fatal("expected run marked interrupted")
	}
	if stats.Total != 1 || stats.Items[0].Name != "old.ifc" || stats.Items[0].Status != conversion.StatusSkipped {
		t.Fatalf("expected only old.ifc recorded as skipped, got %+v", stats.Items)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.TargetDir, "zz.frag")); !os.IsNotExist(err) {
		t.Fatalf("expected no conversion after the interrupt, stat err=%v", err)
	}
}

func TestNonInteractiveModeOverwrites(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteContent(t, filepath.Join(cfg.Paths.SourceDir, "old.ifc"), []byte("old"))
	existing := filepath.Join(cfg.Paths.TargetDir, "old.frag")
	testsupport.WriteContent(t, existing, []byte("previous fragment"))

	prompter := &answerPrompter{}
	h := newHarness(t, cfg, func(deps *conversion.Dependencies) { deps.Prompter = prompter })

	if _, err := h.orch.Run(context.Background(), ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(prompter.asked) != 0 {
		t.Fatalf("expected no prompts outside interactive mode, got %v", prompter.asked)
	}
	data, _ := os.ReadFile(existing)
	if string(data) != "FRAG:old" {
		t.Fatalf("expected fragment overwritten, got %q", data)
	}
}

func TestConvertOneStoresUpload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := newHarness(t, cfg)

	res, err := h.orch.ConvertOne(context.Background(), []byte("uploaded model"), "Site Plan (rev2).ifc")
	if err != nil {
		t.Fatalf("ConvertOne: %v", err)
	}
	if res.Item.Status != conversion.StatusStored || !res.Outcome.Success {
		t.Fatalf("expected stored success, got %+v", res.Item)
	}
	if got := filepath.Base(res.Item.OutputPath); got != "Site_Plan_rev2.frag" {
		t.Fatalf("unexpected fragment name %q", got)
	}
	if filepath.Dir(res.Item.OutputPath) != cfg.Paths.TargetDir {
		t.Fatalf("expected fragment in target dir, got %s", res.Item.OutputPath)
	}
	if len(res.Records) != 1 || res.Records[0].Hash.String() != res.Item.Hash {
		t.Fatalf("expected the stored primary record, got %+v", res.Records)
	}
	entries, err := os.ReadDir(cfg.Paths.UploadDir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected staged upload to be removed, found %d entries", len(entries))
	}
}

func TestConvertOneRejectsInvalidInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := newHarness(t, cfg)

	cases := []struct {
		name string
		data []byte
	}{
		{"notes.txt", []byte("x")},
		{"", []byte("x")},
		{"empty.ifc", nil},
	}
	for _, tc := range cases {
		if _, err := h.orch.ConvertOne(context.Background(), tc.data, tc.name); !errors.Is(err, conversion.ErrInvalidInput) {
			t.Fatalf("%q: expected invalid input error, got %v", tc.name, err)
		}
	}
}

func TestLinePrompter(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tc := range cases {
		var out bytes.Buffer
		p := conversion.NewLinePrompter(strings.NewReader(tc.input), &out)
		got, err := p.ConfirmOverwrite(context.Background(), worker.Item{Name: "a.ifc"}, "/tmp/a.frag")
		if err != nil {
			t.Fatalf("%q: %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %v want %v", tc.input, got, tc.want)
		}
		if !strings.Contains(out.String(), "Overwrite?") {
			t.Fatalf("expected prompt text, got %q", out.String())
		}
	}
}

func TestLinePrompterReturnsWhenCanceled(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()

	p := conversion.NewLinePrompter(reader, io.Discard)
	ctx, cancel := context.WithCancel(context.Background())

	type reply struct {
		ok  bool
		err error
	}
	done := make(chan reply, 1)
	go func() {
		ok, err := p.ConfirmOverwrite(ctx, worker.Item{Name: "a.ifc"}, "/tmp/a.frag")
		done <- reply{ok: ok, err: err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case got := <-done:
		if got.ok {
			t.Fatal("expected a canceled prompt not to confirm")
		}
		if !errors.Is(got.err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", got.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("prompt still waiting for input after cancellation")
	}
}
