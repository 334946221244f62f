package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"fragmenter/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The primary sink is a SQLite database inside the temp dir, no secondary
// sink is configured, and the worker is a stub that copies its input.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Project.Name = "test-project"
	cfgVal.Paths.SourceDir = filepath.Join(base, "ifc")
	cfgVal.Paths.TargetDir = filepath.Join(base, "fragments")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ReportDir = filepath.Join(base, "reports")
	cfgVal.Paths.UploadDir = filepath.Join(base, "uploads")
	cfgVal.Worker.Tiers = config.DefaultTiers()
	cfgVal.Worker.KillGraceSeconds = 1
	cfgVal.Sinks.Primary = config.Sink{
		Enabled: true,
		Driver:  config.DriverSQLite,
		DSN:     filepath.Join(base, "primary.db"),
		Table:   "fragments_bytea",
	}
	cfgVal.Sinks.Secondary = map[string]config.Sink{}
	cfgVal.API.Bind = "127.0.0.1:0"

	for _, dir := range []string{cfgVal.Paths.SourceDir, cfgVal.Paths.TargetDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	WithWorkerScript(WorkerCopy)(builder)

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWorkerScript installs a stub worker running the given shell body. The
// script receives the input path as $1 and the output path as $2.
func WithWorkerScript(body string) ConfigOption {
	return func(b *configBuilder) {
		script := WriteScript(b.t, filepath.Join(b.baseDir, "bin"), "worker.sh", body)
		b.cfg.Worker.Binary = script
		b.cfg.Worker.Args = []string{"{input}", "{output}"}
		b.cfg.Worker.MemoryFlag = ""
		for i := range b.cfg.Worker.Tiers {
			b.cfg.Worker.Tiers[i].ExtraFlags = nil
		}
	}
}

// WithTimeoutSeconds sets every tier's timeout.
func WithTimeoutSeconds(seconds int) ConfigOption {
	return func(b *configBuilder) {
		for i := range b.cfg.Worker.Tiers {
			b.cfg.Worker.Tiers[i].TimeoutSeconds = seconds
		}
	}
}

// WithSecondarySink registers an enabled SQLite secondary sink for domain and
// selects that domain.
func WithSecondarySink(domain string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Project.Domain = domain
		b.cfg.Sinks.Secondary[domain] = config.Sink{
			Enabled: true,
			Driver:  config.DriverSQLite,
			DSN:     filepath.Join(b.baseDir, "secondary-"+domain+".db"),
			Table:   "fragments_bytea",
		}
	}
}

// WithoutPrimarySink disables the primary sink.
func WithoutPrimarySink() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sinks.Primary.Enabled = false
	}
}

// WithFallbackDisabled turns off the fallback producer.
func WithFallbackDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fallback.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.SourceDir)
}
