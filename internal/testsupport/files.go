package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// Stub worker bodies. Each receives the input path as $1 and the output
// path as $2.
const (
	// WorkerCopy writes the input bytes, prefixed with a marker, to the output.
	WorkerCopy = `printf 'FRAG:' > "$2" && cat "$1" >> "$2"`
	// WorkerFail exits non-zero after writing to stderr.
	WorkerFail = `echo "conversion crashed" >&2; exit 3`
	// WorkerEmpty exits cleanly without producing output.
	WorkerEmpty = `: > "$2"; exit 0`
	// WorkerHang never finishes on its own and spawns a child that holds the pipes.
	WorkerHang = `sleep 30 & sleep 30`
)

// stepHeader opens every generated input so it reads as an IFC STEP file.
const stepHeader = "ISO-10303-21;\nHEADER;\nENDSEC;\nDATA;\n"

// WriteFile creates an IFC-looking file of exactly size bytes. The body past
// the STEP header is sparse, so large tier fixtures cost no disk. A size <= 0
// writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if size <= 0 {
		size = 1
	}
	header := []byte(stepHeader)
	if int64(len(header)) > size {
		header = header[:size]
	}
	WriteContent(t, path, header)
	if err := os.Truncate(path, size); err != nil {
		t.Fatalf("size %s: %v", path, err)
	}
}

// WriteContent writes data to path, creating parent directories.
func WriteContent(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteScript writes an executable /bin/sh script into dir and returns its path.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	target := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}
