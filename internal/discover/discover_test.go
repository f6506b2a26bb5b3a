package discover

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DeusData/typerecon/internal/lang"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func relPaths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestDiscoverBasic(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "types.h", "struct A;\n")
	writeFile(t, dir, "funcs.c", "int x;\n")
	writeFile(t, dir, "dump.txt", "struct B;\n")
	writeFile(t, dir, "game.i64", "binary")
	writeFile(t, dir, ".typerecon.yaml", "abi: {}\n")

	ctx := context.Background()
	files, err := Discover(ctx, dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %v", relPaths(files))
	}

	// Verify file info is populated
	for _, f := range files {
		if f.Path == "" {
			t.Error("expected non-empty Path")
		}
		if f.RelPath == "" {
			t.Error("expected non-empty RelPath")
		}
		if f.Language == "" {
			t.Error("expected non-empty Language")
		}
		if f.Size == 0 {
			t.Error("expected non-zero Size")
		}
	}
	if files[1].RelPath != "funcs.c" || files[1].Language != lang.C {
		t.Errorf("unexpected second file %+v", files[1])
	}
}

func TestDiscoverExtensionsAndGlobs(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "a.h", "x")
	writeFile(t, dir, "B.HPP", "x")
	writeFile(t, dir, "notes.md", "x")
	writeFile(t, dir, "vendor/sdk/c.h", "x")
	writeFile(t, dir, "gen/deep/d.h", "x")
	writeFile(t, dir, "gen/e_generated.h", "x")
	writeFile(t, dir, ".git/config.h", "x")

	files, err := Discover(context.Background(), dir, &Options{
		Extensions: []string{".h", ".hpp"},
		Ignore:     []string{"vendor", "gen/**/*_generated.h", "*_generated.h"},
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	got := relPaths(files)
	want := []string{"B.HPP", "a.h", "gen/deep/d.h"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("file %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDiscoverIgnoreFile(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "keep.h", "x")
	writeFile(t, dir, "old/drop.h", "x")
	writeFile(t, dir, IgnoreFileName, "# stale dumps\nold\n")

	files, err := Discover(context.Background(), dir, &Options{Extensions: []string{".h"}})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got := relPaths(files); len(got) != 1 || got[0] != "keep.h" {
		t.Errorf("got %v", got)
	}
}

func TestDiscoverBadPattern(t *testing.T) {
	dir := t.TempDir()
	if _, err := Discover(context.Background(), dir, &Options{Ignore: []string{"[unclosed"}}); err == nil {
		t.Error("expected error for malformed glob")
	}
}

func TestDiscoverCancellation(t *testing.T) {
	dir := t.TempDir()

	// Create a file so the directory isn't empty
	writeFile(t, dir, "types.h", "struct A;\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // pre-cancel

	_, err := Discover(ctx, dir, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
