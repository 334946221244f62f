package discovery

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fragmenter/internal/services"
)

func touch(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListInputsFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b_tower.ifc"), 10)
	touch(t, filepath.Join(dir, "A_site.IFC"), 20)
	touch(t, filepath.Join(dir, "a_annex.Ifc"), 30)
	touch(t, filepath.Join(dir, "notes.txt"), 5)
	touch(t, filepath.Join(dir, ".hidden.ifc"), 5)
	touch(t, filepath.Join(dir, "nested", "deep.ifc"), 5)
	touch(t, filepath.Join(dir, "tower.frag"), 5)

	items, err := ListInputs(dir, nil)
	if err != nil {
		t.Fatalf("ListInputs: %v", err)
	}
	var names []string
	for _, item := range items {
		names = append(names, item.Name)
	}
	want := []string{"A_site.IFC", "a_annex.Ifc", "b_tower.ifc"}
	if len(names) != len(want) {
		t.Fatalf("unexpected items %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order mismatch: got %v want %v", names, want)
		}
	}
	if items[1].Size != 30 || items[1].SourcePath != filepath.Join(dir, "a_annex.Ifc") {
		t.Fatalf("unexpected item: %+v", items[1])
	}
	if TotalBytes(items) != 60 {
		t.Fatalf("unexpected total %d", TotalBytes(items))
	}
}

func TestListInputsNormalizesForOrdering(t *testing.T) {
	dir := t.TempDir()
	// "é" decomposed (e + combining acute) must sort like the composed form.
	touch(t, filepath.Join(dir, "cafe\u0301_b.ifc"), 1)
	touch(t, filepath.Join(dir, "caf\u00e9_a.ifc"), 1)

	items, err := ListInputs(dir, []string{"ifc"})
	if err != nil {
		t.Fatalf("ListInputs: %v", err)
	}
	if len(items) != 2 || items[0].Name != "caf\u00e9_a.ifc" {
		t.Fatalf("unexpected order: %+v", items)
	}
}

func TestListInputsMissingDirIsDiscoveryError(t *testing.T) {
	_, err := ListInputs(filepath.Join(t.TempDir(), "missing"), nil)
	if !errors.Is(err, services.ErrDiscovery) {
		t.Fatalf("expected ErrDiscovery, got %v", err)
	}
}

func TestListInputsEmptyDir(t *testing.T) {
	items, err := ListInputs(t.TempDir(), nil)
	if err != nil || len(items) != 0 {
		t.Fatalf("expected empty result, got %v err=%v", items, err)
	}
}

func TestMatches(t *testing.T) {
	if !Matches("Model.IFC", nil) || Matches("model.ifczip", nil) {
		t.Fatal("unexpected extension matching")
	}
}
