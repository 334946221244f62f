package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"fragmenter/internal/config"
	"fragmenter/internal/conversion"
	"fragmenter/internal/logging"
	"fragmenter/internal/testsupport"
)

const testDomain = "XQG4_XCIM"

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, args, configPath, nil)
}

func runCLIWithInput(t *testing.T, args []string, configPath string, stdin io.Reader) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}

func TestConvertCommandStoresAndReports(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithSecondarySink(testDomain))
	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.SourceDir, "tower.ifc"), 64*1024)

	out, stderr, err := runCLI(t, []string{"convert"}, env.configPath)
	if err != nil {
		t.Fatalf("convert: %v (stderr %q)", err, stderr)
	}
	requireContains(t, out, "Conversion summary")
	requireContains(t, out, "1/1 succeeded")
	requireContains(t, out, "tower.ifc")

	if _, err := os.Stat(filepath.Join(env.cfg.Paths.TargetDir, "tower.frag")); err != nil {
		t.Fatalf("expected fragment in target dir: %v", err)
	}

	out, _, err = runCLI(t, []string{"reports", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("reports list: %v", err)
	}
	requireContains(t, out, "conversion_report_")

	out, _, err = runCLI(t, []string{"reports", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("reports show: %v", err)
	}
	requireContains(t, out, "Conversion summary")
	requireContains(t, out, env.cfg.Paths.SourceDir)

	out, _, err = runCLI(t, []string{"reports", "show", "1", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("reports show --json: %v", err)
	}
	var doc struct {
		Summary conversion.Statistics `json:"conversion_summary"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode report json: %v\n%s", err, out)
	}
	if doc.Summary.Succeeded != 1 || len(doc.Summary.Items) != 1 {
		t.Fatalf("unexpected replayed summary: %+v", doc.Summary)
	}

	out, _, err = runCLI(t, []string{"sinks", "stats", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("sinks stats: %v", err)
	}
	var views []sinkStatsView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode sink stats: %v\n%s", err, out)
	}
	if len(views) != 2 {
		t.Fatalf("expected two sink rows, got %d", len(views))
	}
	for _, view := range views {
		if !view.Configured || view.Records != 1 || view.Error != "" {
			t.Fatalf("expected one record in %s sink, got %+v", view.Sink, view)
		}
	}

	out, _, err = runCLI(t, []string{"sinks", "list", "--sink", "secondary"}, env.configPath)
	if err != nil {
		t.Fatalf("sinks list: %v", err)
	}
	requireContains(t, out, "tower.frag")
}

func TestConvertCommandJSONAndSourceOverride(t *testing.T) {
	env := setupCLITestEnv(t)
	other := filepath.Join(env.baseDir, "elsewhere")
	testsupport.WriteFile(t, filepath.Join(other, "Site.IFC"), 1024)

	out, _, err := runCLI(t, []string{"convert", "--source", other, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("convert --source: %v", err)
	}
	var stats conversion.Statistics
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v\n%s", err, out)
	}
	if stats.Total != 1 || stats.Items[0].Status != conversion.StatusStored {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if got := filepath.Dir(stats.Items[0].OutputPath); got != other {
		t.Fatalf("expected fragment beside the overridden source, got %q", got)
	}
}

func TestConvertCommandInteractiveDeclineSkips(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.SourceDir, "tower.ifc"), 1024)
	existing := filepath.Join(env.cfg.Paths.TargetDir, "tower.frag")
	if err := os.WriteFile(existing, []byte("keep me"), 0o644); err != nil {
		t.Fatalf("write existing fragment: %v", err)
	}

	out, _, err := runCLIWithInput(t, []string{"convert", "--interactive"}, env.configPath, strings.NewReader("n\n"))
	if err != nil {
		t.Fatalf("convert --interactive: %v", err)
	}
	requireContains(t, out, string(conversion.StatusSkipped))

	data, err := os.ReadFile(existing)
	if err != nil {
		t.Fatalf("read fragment: %v", err)
	}
	if string(data) != "keep me" {
		t.Fatalf("expected declined fragment untouched, got %q", data)
	}
}

func TestConvertCommandFailsPreflight(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Worker.Binary = filepath.Join(env.baseDir, "missing-worker")
	writeTestConfig(t, env.configPath, env.cfg)

	_, stderr, err := runCLI(t, []string{"convert"}, env.configPath)
	if err == nil {
		t.Fatal("expected preflight failure")
	}
	requireContains(t, err.Error(), "preflight")
	requireContains(t, stderr, "[ERROR]")

	out, _, err := runCLI(t, []string{"preflight"}, env.configPath)
	if err == nil {
		t.Fatal("expected preflight command to fail")
	}
	requireContains(t, out, "checks failed")
}

func TestPreflightCommandPasses(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"preflight"}, env.configPath)
	if err != nil {
		t.Fatalf("preflight: %v\n%s", err, out)
	}
	requireContains(t, out, "checks passed")
	if strings.Contains(out, "[ERROR]") {
		t.Fatalf("unexpected failing check:\n%s", out)
	}
}

func TestConvertOneCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	input := filepath.Join(env.baseDir, "upload", "Site Plan.ifc")
	testsupport.WriteFile(t, input, 2048)

	out, _, err := runCLI(t, []string{"convert-one", input, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("convert-one: %v", err)
	}
	var view struct {
		Item    conversion.ItemResult `json:"result"`
		Records []struct {
			Filename string `json:"filename"`
		} `json:"stored_records"`
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode convert-one output: %v\n%s", err, out)
	}
	if view.Item.Status != conversion.StatusStored {
		t.Fatalf("expected stored, got %s (%s)", view.Item.Status, view.Item.Message)
	}
	if len(view.Records) != 1 {
		t.Fatalf("expected one stored record, got %d", len(view.Records))
	}

	notIFC := filepath.Join(env.baseDir, "upload", "notes.txt")
	testsupport.WriteFile(t, notIFC, 10)
	if _, _, err := runCLI(t, []string{"convert-one", notIFC}, env.configPath); err == nil {
		t.Fatal("expected non-IFC input to be rejected")
	}
}

func TestTiersCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"tiers"}, env.configPath)
	if err != nil {
		t.Fatalf("tiers: %v", err)
	}
	for _, name := range []string{"small", "medium", "large", "baseline", "> 20 MB"} {
		requireContains(t, out, name)
	}

	out, _, err = runCLI(t, []string{"tiers", "--size-mb", "30"}, env.configPath)
	if err != nil {
		t.Fatalf("tiers --size-mb: %v", err)
	}
	requireContains(t, out, "medium")
	requireContains(t, out, "4096 MB")

	if _, _, err := runCLI(t, []string{"tiers", "--size-mb", "-1"}, env.configPath); err == nil {
		t.Fatal("expected negative size to be rejected")
	}
}

func TestSinksStatsWithoutSecondary(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"sinks", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("sinks stats: %v", err)
	}
	requireContains(t, out, "not configured")
	requireContains(t, out, "empty")

	if _, _, err := runCLI(t, []string{"sinks", "list", "--sink", "secondary"}, env.configPath); err == nil {
		t.Fatal("expected listing an unconfigured sink to fail")
	}
}

func TestReportsWithoutRuns(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"reports", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("reports list: %v", err)
	}
	requireContains(t, out, "No reports")

	if _, _, err := runCLI(t, []string{"reports", "show"}, env.configPath); err == nil {
		t.Fatal("expected show without reports to fail")
	}
}

func TestMissingConfigFileFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, _, err := runCLI(t, []string{"tiers"}, filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil {
		t.Fatal("expected missing config to fail")
	}
	requireContains(t, err.Error(), "does not exist")
}

func TestCleanupCommandRemovesAbandonedUploads(t *testing.T) {
	env := setupCLITestEnv(t)
	stale := filepath.Join(env.cfg.Paths.UploadDir, uuid.NewString())
	fresh := filepath.Join(env.cfg.Paths.UploadDir, uuid.NewString())
	foreign := filepath.Join(env.cfg.Paths.UploadDir, "keep-me")
	for _, dir := range []string{stale, fresh, foreign} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	old := time.Now().Add(-48 * time.Hour)
	for _, dir := range []string{stale, foreign} {
		if err := os.Chtimes(dir, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	out, _, err := runCLI(t, []string{"cleanup", "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("cleanup --dry-run: %v", err)
	}
	requireContains(t, out, "Would remove "+stale)
	if _, err := os.Stat(stale); err != nil {
		t.Fatal("dry run must not delete")
	}

	out, _, err = runCLI(t, []string{"cleanup"}, env.configPath)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	requireContains(t, out, "Removed 1 abandoned upload directories")
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("expected abandoned upload removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatal("expected recent upload kept")
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Fatal("expected directory not created by an upload to be kept")
	}
}

func TestLogsCommandShowsTail(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	logPath := filepath.Join(env.cfg.Paths.LogDir, logging.LogFileName)
	if err := os.WriteFile(logPath, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected logs output %q", out)
	}
}
