// Package report persists the statistics of each conversion run as a JSON
// document and reads saved documents back for replay.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fragmenter/internal/conversion"
	"fragmenter/internal/fileutil"
	"fragmenter/internal/logging"
)

const (
	// FilePrefix starts every report file name.
	FilePrefix = "conversion_report_"
	fileExt    = ".json"
	timeLayout = "20060102_150405"
)

// Document is the on-disk report layout.
type Document struct {
	Summary     *conversion.Statistics `json:"conversion_summary"`
	Environment conversion.Environment `json:"environment"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Emitter writes one report per run into a directory.
type Emitter struct {
	dir           string
	retentionDays int
	logger        *slog.Logger
	now           func() time.Time
}

// New returns an emitter writing into dir. Reports older than retentionDays
// are pruned after each write; zero keeps everything.
func New(dir string, retentionDays int, logger *slog.Logger) *Emitter {
	return &Emitter{
		dir:           dir,
		retentionDays: retentionDays,
		logger:        logging.NewComponentLogger(logger, "report"),
		now:           time.Now,
	}
}

// Emit writes the report for stats and returns its path.
func (e *Emitter) Emit(stats *conversion.Statistics, env conversion.Environment) (string, error) {
	if stats == nil {
		return "", errors.New("report: nil statistics")
	}
	if strings.TrimSpace(e.dir) == "" {
		return "", errors.New("report: directory not configured")
	}
	now := e.now()
	doc := Document{Summary: stats, Environment: env, Timestamp: now}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')

	path, err := e.nextPath(now)
	if err != nil {
		return "", err
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	e.logger.Debug("report written",
		logging.String("report_path", path),
		logging.Int("bytes", len(data)),
	)

	logging.Prune(e.logger, e.retentionDays, logging.RetentionTarget{
		Dir:     e.dir,
		Pattern: FilePrefix + "*" + fileExt,
		Keep:    []string{path},
	})
	return path, nil
}

// nextPath picks the report name for now, adding a counter when a run in
// the same second already claimed it.
func (e *Emitter) nextPath(now time.Time) (string, error) {
	stamp := now.Format(timeLayout)
	path := filepath.Join(e.dir, FilePrefix+stamp+fileExt)
	for n := 2; ; n++ {
		_, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat report %s: %w", path, err)
		}
		path = filepath.Join(e.dir, fmt.Sprintf("%s%s_%d%s", FilePrefix, stamp, n, fileExt))
	}
}

// Entry describes a saved report.
type Entry struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// List returns the reports in dir, newest first. A missing dir has none.
func List(dir string) ([]Entry, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read report dir: %w", err)
	}
	var out []Entry
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, fileExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Path:      filepath.Join(dir, name),
			Name:      name,
			Timestamp: parseStamp(name, info.ModTime()),
			SizeBytes: info.Size(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

// Load reads a saved report.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	if doc.Summary == nil {
		return nil, fmt.Errorf("decode report %s: missing conversion_summary", path)
	}
	return &doc, nil
}

func parseStamp(name string, fallback time.Time) time.Time {
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, FilePrefix), fileExt)
	if len(stamp) > len(timeLayout) {
		stamp = stamp[:len(timeLayout)]
	}
	ts, err := time.ParseInLocation(timeLayout, stamp, time.Local)
	if err != nil {
		return fallback
	}
	return ts
}
