// Package staging manages the per-upload directories single-file conversions
// stage their input in. Each upload gets its own directory that the
// orchestrator removes when the conversion ends; directories left behind by a
// crashed process are reclaimed here.
package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"fragmenter/internal/logging"
)

// DefaultMaxAge is how old an upload directory must be before it is treated
// as abandoned. Uploads finish well within a tier timeout, so a day is safe.
const DefaultMaxAge = 24 * time.Hour

// Dir describes one upload staging directory.
type Dir struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	ModTime   time.Time `json:"modified"`
	SizeBytes int64     `json:"size_bytes"`
}

// CleanResult lists what a cleanup removed and what it could not.
type CleanResult struct {
	Removed []string
	Errors  []error
}

// Err joins the cleanup errors.
func (r CleanResult) Err() error {
	return errors.Join(r.Errors...)
}

// List returns the staging directories under uploadDir, oldest first. Only
// directories named by an upload id count; anything else in uploadDir is not
// ours and is ignored. A missing or unset uploadDir has none.
func List(uploadDir string) ([]Dir, error) {
	uploadDir = strings.TrimSpace(uploadDir)
	if uploadDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(uploadDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read upload dir: %w", err)
	}

	var dirs []Dir
	for _, entry := range entries {
		if !entry.IsDir() || !IsUploadDirName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(uploadDir, entry.Name())
		dirs = append(dirs, Dir{
			Name:      entry.Name(),
			Path:      path,
			ModTime:   info.ModTime(),
			SizeBytes: dirSize(path),
		})
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].ModTime.Before(dirs[j].ModTime) })
	return dirs, nil
}

// IsUploadDirName reports whether name has the form single-file conversions
// give their staging directories.
func IsUploadDirName(name string) bool {
	_, err := uuid.Parse(name)
	return err == nil && len(name) == 36
}

// CleanStale removes staging directories under uploadDir last modified more
// than maxAge ago. Loose files and foreign directories are left alone.
func CleanStale(uploadDir string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	var result CleanResult
	dirs, err := List(uploadDir)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}
	logger = logging.NewComponentLogger(logger, "staging")
	cutoff := time.Now().Add(-maxAge)

	for _, dir := range dirs {
		if !dir.ModTime.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("remove %s: %w", dir.Path, err))
			logging.WarnWithContext(logger, "failed to remove abandoned upload directory", "upload_cleanup_failed",
				logging.String("path", dir.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check upload_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir.Path)
		logger.Info("removed abandoned upload directory",
			logging.String("path", dir.Path),
			logging.Duration("age", time.Since(dir.ModTime).Round(time.Second)),
			logging.Int64("size_bytes", dir.SizeBytes),
			logging.String(logging.FieldEventType, "upload_cleanup"),
		)
	}
	return result
}

func dirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size
}
