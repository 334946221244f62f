package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"fragmenter/internal/config"
)

// LogFileName is the file written inside the configured log directory.
const LogFileName = "fragmenter.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Outputs receive every record; empty means stdout.
	Outputs []io.Writer
	// Source adds caller locations. Debug level always includes them.
	Source bool
}

// New constructs a logger writing console or JSON lines to opts.Outputs.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))

	var out io.Writer = os.Stdout
	switch len(opts.Outputs) {
	case 0:
	case 1:
		out = opts.Outputs[0]
	default:
		out = io.MultiWriter(opts.Outputs...)
	}
	source := opts.Source || level.Level() <= slog.LevelDebug

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		return slog.New(newConsoleHandler(out, level, source)), nil
	case "json":
		return slog.New(newJSONHandler(out, level, source)), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// NewFromConfig creates the process logger: stdout plus fragmenter.log
// inside the configured log directory.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{})
	}
	outputs := []io.Writer{os.Stdout}
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		file, err := openLogFile(filepath.Join(dir, LogFileName))
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, file)
	}
	return New(Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Outputs: outputs,
	})
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
