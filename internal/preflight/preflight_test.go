package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"fragmenter/internal/config"
	"fragmenter/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckReadableDirectory("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	script := filepath.Join(binDir, "convert.js")
	if err := os.WriteFile(script, []byte("// stub"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	results := CheckBinaries([]Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Script", Command: script, File: true},
		{Name: "Empty"},
	})
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if !results[2].Available {
		t.Fatalf("expected script file to be found, got %#v", results[2])
	}
	if results[3].Available || results[3].Detail != "command not configured" {
		t.Fatalf("unexpected empty command status: %#v", results[3])
	}
}

func TestWorkerRequirementsIncludesScript(t *testing.T) {
	cfg := config.Worker{
		Binary:  "node",
		Args:    []string{"--trace-warnings", "convert_ifc_to_fragments.js", "{input}", "{output}"},
		WorkDir: "/opt/worker",
	}
	reqs := WorkerRequirements(cfg)
	if len(reqs) != 2 {
		t.Fatalf("expected binary and script requirements, got %+v", reqs)
	}
	if reqs[1].Command != "/opt/worker/convert_ifc_to_fragments.js" || !reqs[1].File {
		t.Fatalf("unexpected script requirement: %+v", reqs[1])
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_TestConfigPasses(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSecondarySink("XQG4_XCIM"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg)
	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = true
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	for _, want := range []string{"Source directory", "Target directory", "Worker binary", "Sink primary", "Sink secondary (XQG4_XCIM)"} {
		if !names[want] {
			t.Errorf("expected %q check, got %v", want, names)
		}
	}
	if Failed(results) {
		t.Fatal("expected no failures")
	}
}

func TestRunAll_ReportsMissingWorkerAndBrokenSink(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Worker.Binary = filepath.Join(t.TempDir(), "missing-worker")
	cfg.Sinks.Primary.DSN = t.TempDir()

	results := RunAll(context.Background(), cfg)
	failed := map[string]bool{}
	for _, r := range results {
		if !r.Passed {
			failed[r.Name] = true
		}
	}
	if !failed["Worker binary"] || !failed["Sink primary"] {
		t.Fatalf("expected worker and sink failures, got %+v", results)
	}
	if !Failed(results) {
		t.Fatal("expected Failed to report required failures")
	}
}

func TestFailedIgnoresOptional(t *testing.T) {
	results := []Result{{Name: "a", Passed: true}, {Name: "b", Optional: true}}
	if Failed(results) {
		t.Fatal("optional failures should not fail preflight")
	}
}
