package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeProject()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorker()
	if c.Fallback.ExcerptBytes <= 0 {
		c.Fallback.ExcerptBytes = defaultExcerptBytes
	}
	if err := c.normalizeSinks(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeLogging()
	c.normalizeConversion()
	return nil
}

func (c *Config) normalizeProject() {
	c.Project.Name = strings.TrimSpace(c.Project.Name)
	if c.Project.Name == "" {
		c.Project.Name = defaultProjectName
	}
	c.Project.Domain = strings.TrimSpace(c.Project.Domain)
	if c.Project.Domain == "" {
		if value, ok := os.LookupEnv("FRAGMENTER_DOMAIN"); ok {
			c.Project.Domain = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SourceDir, err = expandPath(c.Paths.SourceDir); err != nil {
		return fmt.Errorf("paths.source_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TargetDir) == "" {
		c.Paths.TargetDir = c.Paths.SourceDir
	}
	if c.Paths.TargetDir, err = expandPath(c.Paths.TargetDir); err != nil {
		return fmt.Errorf("paths.target_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ReportDir) == "" {
		c.Paths.ReportDir = c.Paths.LogDir
	}
	if c.Paths.ReportDir, err = expandPath(c.Paths.ReportDir); err != nil {
		return fmt.Errorf("paths.report_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.UploadDir) == "" {
		c.Paths.UploadDir = defaultUploadDir
	}
	if c.Paths.UploadDir, err = expandPath(c.Paths.UploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorker() {
	c.Worker.Binary = strings.TrimSpace(c.Worker.Binary)
	if c.Worker.KillGraceSeconds <= 0 {
		c.Worker.KillGraceSeconds = defaultKillGraceSeconds
	}
	if c.Worker.OutputTailBytes <= 0 {
		c.Worker.OutputTailBytes = defaultOutputTailBytes
	}
	if len(c.Worker.Tiers) == 0 {
		c.Worker.Tiers = DefaultTiers()
	}
	for i := range c.Worker.Tiers {
		c.Worker.Tiers[i].Name = strings.TrimSpace(c.Worker.Tiers[i].Name)
		if c.Worker.Tiers[i].Name == "" {
			c.Worker.Tiers[i].Name = fmt.Sprintf("tier-%d", i+1)
		}
	}
	if dir := strings.TrimSpace(c.Worker.WorkDir); dir != "" {
		if expanded, err := expandPath(dir); err == nil {
			c.Worker.WorkDir = expanded
		}
	}
}

func (c *Config) normalizeSinks() error {
	if err := normalizeSink(&c.Sinks.Primary, "FRAGMENTER_PRIMARY_DSN"); err != nil {
		return fmt.Errorf("sinks.primary: %w", err)
	}
	for domain, sink := range c.Sinks.Secondary {
		env := ""
		if domain == c.Project.Domain {
			env = "FRAGMENTER_SECONDARY_DSN"
		}
		if err := normalizeSink(&sink, env); err != nil {
			return fmt.Errorf("sinks.secondary.%s: %w", domain, err)
		}
		c.Sinks.Secondary[domain] = sink
	}
	return nil
}

func normalizeSink(sink *Sink, envKey string) error {
	sink.Driver = strings.ToLower(strings.TrimSpace(sink.Driver))
	if sink.Driver == "" {
		sink.Driver = DriverSQLite
	}
	if sink.Driver == "postgresql" || sink.Driver == "pg" {
		sink.Driver = DriverPostgres
	}
	sink.DSN = strings.TrimSpace(sink.DSN)
	if sink.DSN == "" && envKey != "" {
		if value, ok := os.LookupEnv(envKey); ok {
			sink.DSN = strings.TrimSpace(value)
		}
	}
	sink.Schema = strings.TrimSpace(sink.Schema)
	sink.Table = strings.TrimSpace(sink.Table)
	if sink.Table == "" {
		sink.Table = defaultSinkTable
	}
	if sink.Driver == DriverSQLite && sink.DSN != "" && !strings.HasPrefix(sink.DSN, "file:") && sink.DSN != ":memory:" {
		expanded, err := expandPath(sink.DSN)
		if err != nil {
			return err
		}
		sink.DSN = expanded
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	if c.API.MaxUploadMB <= 0 {
		c.API.MaxUploadMB = defaultMaxUploadMB
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeConversion() {
	exts := make([]string, 0, len(c.Conversion.Extensions))
	seen := make(map[string]struct{}, len(c.Conversion.Extensions))
	for _, ext := range c.Conversion.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = []string{".ifc"}
	}
	c.Conversion.Extensions = exts
	c.Conversion.OutputExt = strings.TrimSpace(c.Conversion.OutputExt)
	if c.Conversion.OutputExt == "" {
		c.Conversion.OutputExt = defaultOutputExt
	}
	if !strings.HasPrefix(c.Conversion.OutputExt, ".") {
		c.Conversion.OutputExt = "." + c.Conversion.OutputExt
	}
	if strings.TrimSpace(c.Conversion.ConverterLabel) == "" {
		c.Conversion.ConverterLabel = defaultConverterLabel
	}
}
