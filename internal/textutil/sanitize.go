package textutil

import (
	"path/filepath"
	"strings"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\x00", "",
)

// fragmentStemReplacer mirrors the naming the fragment viewers expect.
var fragmentStemReplacer = strings.NewReplacer(
	" ", "_",
	"(", "",
	")", "",
)

// SanitizeFileName reduces name to a single safe path element. Directory
// components are dropped; slashes, backslashes, colons, and asterisks become
// dashes, and other unsafe characters are removed. Returns an empty string
// when nothing usable remains.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	// Browsers may send full client paths with either separator.
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSpace(fileNameReplacer.Replace(name))
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return ""
	}
	return name
}

// FragmentName derives the fragment file name for an input: the input stem
// with spaces turned into underscores and parentheses removed, plus ext.
func FragmentName(inputName, ext string) string {
	base := filepath.Base(inputName)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = fragmentStemReplacer.Replace(SanitizeFileName(stem))
	if stem == "" {
		stem = "fragment"
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return stem + ext
}
