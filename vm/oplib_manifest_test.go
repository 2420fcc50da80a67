package vm

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOpManifest(t *testing.T) {
	dir := t.TempDir()
	content := `
[library]
name = "cuda-ops"
version = "0.3.1"

[[operator]]
name = "add"
symbol = "raf_op_add"

[[operator]]
name = "matmul"
symbol = "raf_op_matmul"
shared_object = "libops.so"
`
	if err := os.WriteFile(filepath.Join(dir, "oplib.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadOpManifest(dir)
	if err != nil {
		t.Fatalf("LoadOpManifest: %v", err)
	}
	if m.Library.Name != "cuda-ops" {
		t.Fatalf("library name = %q, want cuda-ops", m.Library.Name)
	}
	if len(m.Operators) != 2 {
		t.Fatalf("operator count = %d, want 2", len(m.Operators))
	}

	lib := NewManifestOpLibrary(m)
	if !lib.HasPrimitive("add") {
		t.Fatal("expected add to resolve")
	}
	if !lib.HasPrimitive("matmul") {
		t.Fatal("expected matmul to resolve")
	}
	if lib.HasPrimitive("missing") {
		t.Fatal("did not expect missing to resolve")
	}

	entry, ok := lib.Entry("matmul")
	if !ok || entry.SharedObject != "libops.so" {
		t.Fatalf("unexpected entry for matmul: %+v, ok=%v", entry, ok)
	}
}

func TestFindAndLoadOpManifestMissing(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoadOpManifest(dir)
	if err != nil {
		t.Fatalf("FindAndLoadOpManifest: %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil manifest when none found, got %+v", m)
	}
}
