package fallback

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fragmenter/internal/config"
	"fragmenter/internal/logging"
	"fragmenter/internal/services"
	"fragmenter/internal/worker"
)

func TestProduceWrapsBoundedExcerpt(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "model.ifc")
	content := strings.Repeat("X", 5000)
	if err := os.WriteFile(input, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out", "model.frag")

	p := New(config.Fallback{Enabled: true, ExcerptBytes: 1024}, logging.NewNop())
	outcome := p.Produce(context.Background(), worker.Item{SourcePath: input, Name: "model.ifc", Size: 5000}, out)
	if !outcome.Success || outcome.Producer != worker.ProducerFallback || !outcome.Degraded() {
		t.Fatalf("expected degraded fallback success, got %+v", outcome)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := Header + "\n" + strings.Repeat("X", 1024) + "\n" + Footer
	if string(data) != want {
		t.Fatalf("unexpected fallback artifact (%d bytes)", len(data))
	}
}

func TestProduceIsDeterministicForShortInputs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tiny.ifc")
	if err := os.WriteFile(input, []byte("ISO"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := New(config.Fallback{Enabled: true}, logging.NewNop())
	item := worker.Item{SourcePath: input, Name: "tiny.ifc", Size: 3}

	first := filepath.Join(dir, "a.frag")
	second := filepath.Join(dir, "b.frag")
	if o := p.Produce(context.Background(), item, first); !o.Success {
		t.Fatalf("first produce failed: %+v", o)
	}
	if o := p.Produce(context.Background(), item, second); !o.Success {
		t.Fatalf("second produce failed: %+v", o)
	}
	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	if !bytes.Equal(a, b) {
		t.Fatal("fallback output is not deterministic")
	}
	if string(a) != Header+"\nISO\n"+Footer {
		t.Fatalf("unexpected artifact %q", a)
	}
}

func TestProduceUnreadableInputIsFallbackError(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "missing.frag")
	p := New(config.Fallback{Enabled: true}, logging.NewNop())

	outcome := p.Produce(context.Background(), worker.Item{SourcePath: filepath.Join(dir, "missing.ifc"), Name: "missing.ifc"}, out)
	if outcome.Success || outcome.Reason != services.ReasonFallbackError {
		t.Fatalf("expected fallback-error, got %+v", outcome)
	}
	if !errors.Is(outcome.Err, services.ErrFallback) || !errors.Is(outcome.Err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist error, got %v", outcome.Err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("no artifact should be written on failure")
	}
}

func TestProduceHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(config.Fallback{Enabled: true}, logging.NewNop())
	outcome := p.Produce(ctx, worker.Item{SourcePath: "/nope", Name: "x.ifc"}, filepath.Join(t.TempDir(), "x.frag"))
	if outcome.Reason != services.ReasonCanceled {
		t.Fatalf("expected canceled, got %+v", outcome)
	}
}
