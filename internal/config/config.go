package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Project identifies the deployment the converter runs for.
type Project struct {
	Name   string `toml:"name"`
	Domain string `toml:"domain"`
}

// Paths contains directory configuration.
type Paths struct {
	SourceDir string `toml:"source_dir"`
	TargetDir string `toml:"target_dir"`
	LogDir    string `toml:"log_dir"`
	ReportDir string `toml:"report_dir"`
	UploadDir string `toml:"upload_dir"`
}

// Tier is a named (timeout, memory budget) pair selected by input size.
// An input lands in the last tier whose MinSizeMB it strictly exceeds; the
// first tier must start at zero and catches everything else.
type Tier struct {
	Name           string   `toml:"name"`
	MinSizeMB      float64  `toml:"min_size_mb"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	MemoryMB       int      `toml:"memory_mb"`
	ExtraFlags     []string `toml:"extra_flags"`
}

// Worker describes how the external conversion worker is launched.
//
// Args may reference {input}, {output} and {memory_mb}. MemoryFlag is
// rendered with the tier's memory budget and placed ahead of the tier's extra
// flags and Args; it is omitted for tiers without a budget.
type Worker struct {
	Binary           string   `toml:"binary"`
	Args             []string `toml:"args"`
	WorkDir          string   `toml:"work_dir"`
	MemoryFlag       string   `toml:"memory_flag"`
	KillGraceSeconds int      `toml:"kill_grace_seconds"`
	OutputTailBytes  int      `toml:"output_tail_bytes"`
	Tiers            []Tier   `toml:"tiers"`
}

// Fallback configures the degraded placeholder producer.
type Fallback struct {
	Enabled      bool `toml:"enabled"`
	ExcerptBytes int  `toml:"excerpt_bytes"`
}

// Sink configures one hash-keyed artifact store.
type Sink struct {
	Enabled bool   `toml:"enabled"`
	Driver  string `toml:"driver"`
	DSN     string `toml:"dsn"`
	Schema  string `toml:"schema"`
	Table   string `toml:"table"`
}

// Sinks holds the primary store plus the secondary table keyed by project domain.
type Sinks struct {
	Primary   Sink            `toml:"primary"`
	Secondary map[string]Sink `toml:"secondary"`
}

// API contains the HTTP front-end settings.
type API struct {
	Bind        string `toml:"bind"`
	MaxUploadMB int    `toml:"max_upload_mb"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Conversion contains batch-run behaviour.
type Conversion struct {
	Extensions     []string `toml:"extensions"`
	OutputExt      string   `toml:"output_ext"`
	Interactive    bool     `toml:"interactive"`
	ConverterLabel string   `toml:"converter_label"`
}

// Config encapsulates all configuration values for fragmenter.
//
// Configuration sections by subsystem:
//   - Project: project name and the domain key used to pick a secondary sink
//   - Paths: source/target directories, logs, reports, uploads
//   - Worker: external converter command and the size tier ladder
//   - Fallback: degraded placeholder generation
//   - Sinks: primary store and per-domain secondary stores
//   - API: HTTP front-end bind address and upload limit
//   - Logging: log format, level, and retention
//   - Conversion: discovery extensions and interactive overwrite mode
type Config struct {
	Project    Project    `toml:"project"`
	Paths      Paths      `toml:"paths"`
	Worker     Worker     `toml:"worker"`
	Fallback   Fallback   `toml:"fallback"`
	Sinks      Sinks      `toml:"sinks"`
	API        API        `toml:"api"`
	Logging    Logging    `toml:"logging"`
	Conversion Conversion `toml:"conversion"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigLocation)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	loadDotEnv(resolvedPath)

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv imports .env files beside the config file and in the working
// directory. Variables already present in the environment win.
func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}
	for _, candidate := range candidates {
		if isRegularFile(candidate) {
			_ = godotenv.Load(candidate)
		}
	}
}

const defaultConfigLocation = "~/.config/fragmenter/config.toml"

// resolveConfigPath returns the file Load reads. An explicit path must
// exist. Otherwise the user config wins over ./fragmenter.toml, and when
// neither exists the user location is reported with exists=false.
func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		switch {
		case os.IsNotExist(err):
			return "", false, fmt.Errorf("config file %s does not exist", expanded)
		case err != nil:
			return "", false, fmt.Errorf("stat config: %w", err)
		case info.IsDir():
			return "", false, fmt.Errorf("config path %s is a directory", expanded)
		}
		return expanded, true, nil
	}

	userPath, err := expandPath(defaultConfigLocation)
	if err != nil {
		return "", false, err
	}
	localPath, err := expandPath("fragmenter.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, localPath} {
		if isRegularFile(candidate) {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// EnsureDirectories creates directories the converter writes into. The source
// directory is not created: a missing source is a discovery failure.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.TargetDir, c.Paths.LogDir, c.Paths.ReportDir, c.Paths.UploadDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SecondarySink resolves the secondary sink for the configured project domain.
// The second return value is false when the domain has no enabled entry.
func (c *Config) SecondarySink() (Sink, bool) {
	if c == nil || len(c.Sinks.Secondary) == 0 {
		return Sink{}, false
	}
	sink, ok := c.Sinks.Secondary[strings.TrimSpace(c.Project.Domain)]
	if !ok || !sink.Enabled {
		return Sink{}, false
	}
	return sink, true
}

// TierFor returns the tier an input of the given size falls into. Tiers are
// assumed validated (ascending thresholds, first tier at zero).
func (c *Config) TierFor(sizeBytes int64) Tier {
	return c.Worker.TierFor(sizeBytes)
}

// TierFor selects the resource tier for an input of the given size. The first
// tier is the baseline; each later tier applies once the size exceeds its
// threshold, and the last matching tier wins.
func (w Worker) TierFor(sizeBytes int64) Tier {
	if len(w.Tiers) == 0 {
		return Tier{Name: "default", TimeoutSeconds: defaultSmallTimeout}
	}
	selected := w.Tiers[0]
	for _, tier := range w.Tiers[1:] {
		if float64(sizeBytes) > tier.MinSizeMB*bytesPerMB {
			selected = tier
		}
	}
	return selected
}

// expandPath resolves a leading ~ and returns an absolute, cleaned path.
// Empty input stays empty.
func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return "", nil
	}
	if pathValue == "~" || strings.HasPrefix(pathValue, "~/") || strings.HasPrefix(pathValue, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		pathValue = filepath.Join(home, strings.TrimLeft(pathValue[1:], `/\`))
	}
	absolute, err := filepath.Abs(pathValue)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
