package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.ValidateTiers(); err != nil {
		return err
	}
	if err := validateSink("sinks.primary", c.Sinks.Primary); err != nil {
		return err
	}
	for domain, sink := range c.Sinks.Secondary {
		if strings.TrimSpace(domain) == "" {
			return errors.New("sinks.secondary: domain key must not be empty")
		}
		if err := validateSink("sinks.secondary."+domain, sink); err != nil {
			return err
		}
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateUploadDir(); err != nil {
		return err
	}
	if c.Fallback.ExcerptBytes < 0 {
		return errors.New("fallback.excerpt_bytes must be non-negative")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.Binary == "" {
		return errors.New("worker.binary must be set")
	}
	var hasInput, hasOutput bool
	for _, arg := range c.Worker.Args {
		hasInput = hasInput || strings.Contains(arg, "{input}")
		hasOutput = hasOutput || strings.Contains(arg, "{output}")
	}
	if !hasInput || !hasOutput {
		return errors.New("worker.args must reference both {input} and {output}")
	}
	return nil
}

// ValidateTiers enforces the tier ladder invariants: at least three tiers, the
// first starting at zero, strictly ascending thresholds, and timeouts and
// memory budgets that never shrink as inputs grow.
func (c *Config) ValidateTiers() error {
	tiers := c.Worker.Tiers
	if len(tiers) < 3 {
		return fmt.Errorf("worker.tiers: at least 3 tiers required, got %d", len(tiers))
	}
	if tiers[0].MinSizeMB != 0 {
		return fmt.Errorf("worker.tiers: first tier %q must have min_size_mb = 0", tiers[0].Name)
	}
	for i, tier := range tiers {
		if tier.TimeoutSeconds <= 0 {
			return fmt.Errorf("worker.tiers: tier %q timeout_seconds must be positive", tier.Name)
		}
		if tier.MemoryMB < 0 {
			return fmt.Errorf("worker.tiers: tier %q memory_mb must be non-negative", tier.Name)
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if tier.MinSizeMB <= prev.MinSizeMB {
			return fmt.Errorf("worker.tiers: tier %q threshold must exceed tier %q", tier.Name, prev.Name)
		}
		if tier.TimeoutSeconds < prev.TimeoutSeconds {
			return fmt.Errorf("worker.tiers: tier %q timeout is stricter than smaller tier %q", tier.Name, prev.Name)
		}
		if tier.MemoryMB < prev.MemoryMB {
			return fmt.Errorf("worker.tiers: tier %q memory budget is stricter than smaller tier %q", tier.Name, prev.Name)
		}
	}
	return nil
}

func validateSink(label string, sink Sink) error {
	if !sink.Enabled {
		return nil
	}
	switch sink.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%s.driver: unsupported value %q", label, sink.Driver)
	}
	if sink.DSN == "" {
		return fmt.Errorf("%s.dsn must be set when the sink is enabled", label)
	}
	if !identPattern.MatchString(sink.Table) {
		return fmt.Errorf("%s.table: invalid identifier %q", label, sink.Table)
	}
	if sink.Schema != "" {
		if sink.Driver != DriverPostgres {
			return fmt.Errorf("%s.schema is only supported by the postgres driver", label)
		}
		if !identPattern.MatchString(sink.Schema) {
			return fmt.Errorf("%s.schema: invalid identifier %q", label, sink.Schema)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

// validateUploadDir keeps upload staging away from directories holding user
// files, since stale entries under it are deleted.
func (c *Config) validateUploadDir() error {
	upload := strings.TrimSpace(c.Paths.UploadDir)
	if upload == "" {
		return nil
	}
	upload = filepath.Clean(upload)
	for _, other := range []struct{ key, path string }{
		{"paths.source_dir", c.Paths.SourceDir},
		{"paths.target_dir", c.Paths.TargetDir},
	} {
		if strings.TrimSpace(other.path) != "" && filepath.Clean(other.path) == upload {
			return fmt.Errorf("paths.upload_dir must differ from %s (%s)", other.key, upload)
		}
	}
	if home, err := os.UserHomeDir(); err == nil && filepath.Clean(home) == upload {
		return fmt.Errorf("paths.upload_dir must not be the home directory (%s)", upload)
	}
	if upload == string(filepath.Separator) {
		return errors.New("paths.upload_dir must not be the filesystem root")
	}
	return nil
}
