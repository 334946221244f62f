package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget selects the files in Dir matching the glob Pattern, except
// the paths listed in Keep.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Keep    []string
}

// Prune removes target files last modified more than retentionDays ago and
// returns how many were removed. A retentionDays of zero keeps everything.
func Prune(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0

	for _, target := range targets {
		dir := strings.TrimSpace(target.Dir)
		if dir == "" {
			continue
		}
		pattern := strings.TrimSpace(target.Pattern)
		if pattern == "" {
			pattern = "*"
		}
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		keep := make(map[string]struct{}, len(target.Keep))
		for _, path := range target.Keep {
			keep[filepath.Clean(path)] = struct{}{}
		}

		for _, path := range matches {
			if _, ok := keep[filepath.Clean(path)]; ok {
				continue
			}
			info, err := os.Lstat(path)
			if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "retention prune failed; file remains", "retention_prune_failed",
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check ownership of "+dir),
					String(FieldImpact, "old file remains on disk"),
				)
				continue
			}
			removed++
			if logger != nil {
				logger.Debug("pruned expired file",
					String("path", path),
					Duration("age", time.Since(info.ModTime()).Round(time.Hour)),
					String(FieldEventType, "retention_pruned"),
				)
			}
		}
	}
	return removed
}
