// Package discovery enumerates IFC inputs from a source directory in the
// deterministic order the orchestrator processes them.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"fragmenter/internal/services"
	"fragmenter/internal/worker"
)

// DefaultExtensions matches IFC models regardless of case.
var DefaultExtensions = []string{".ifc"}

// ListInputs returns the regular files in dir whose extension matches one of
// extensions (case-insensitive), ordered lexicographically by their
// NFC-normalized name. A missing or unreadable dir is an ErrDiscovery error;
// an empty dir is not.
func ListInputs(dir string, extensions []string) ([]worker.Item, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrDiscovery, "discovery", "stat source", dir, err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrDiscovery, "discovery", "stat source", fmt.Sprintf("%s is not a directory", dir), nil)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrDiscovery, "discovery", "read source", dir, err)
	}

	allowed := extensionSet(extensions)
	items := make([]worker.Item, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if _, ok := allowed[fold(filepath.Ext(name))]; !ok {
			continue
		}
		path := filepath.Join(dir, name)
		// Stat follows symlinks so linked models are picked up.
		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		items = append(items, worker.Item{SourcePath: path, Name: name, Size: fi.Size()})
	}
	SortItems(items)
	return items, nil
}

// SortItems orders items by NFC-normalized name, falling back to the raw name
// so the order is total.
func SortItems(items []worker.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := norm.NFC.String(items[i].Name), norm.NFC.String(items[j].Name)
		if a != b {
			return a < b
		}
		return items[i].Name < items[j].Name
	})
}

// TotalBytes sums item sizes.
func TotalBytes(items []worker.Item) int64 {
	var total int64
	for _, item := range items {
		total += item.Size
	}
	return total
}

// Matches reports whether name carries one of the extensions.
func Matches(name string, extensions []string) bool {
	_, ok := extensionSet(extensions)[fold(filepath.Ext(name))]
	return ok
}

func extensionSet(extensions []string) map[string]struct{} {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[fold(ext)] = struct{}{}
	}
	return set
}

func fold(value string) string {
	return cases.Fold().String(value)
}
