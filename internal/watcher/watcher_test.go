package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DeusData/typerecon/internal/store"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	// Some filesystems have one second mtime granularity.
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
}

func take(t *testing.T, root string) Fingerprint {
	t.Helper()
	fp, err := Take(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	return fp
}

func TestInterval(t *testing.T) {
	tests := []struct {
		files int
		want  time.Duration
	}{
		{0, time.Second},
		{499, time.Second},
		{500, 2 * time.Second},
		{2000, 5 * time.Second},
		{10000, 21 * time.Second},
		{100000, time.Minute},
	}
	for _, tt := range tests {
		if got := interval(tt.files); got != tt.want {
			t.Errorf("interval(%d) = %v, want %v", tt.files, got, tt.want)
		}
	}
}

func TestTakeCountsCorpusFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "types.h"), "struct A\n{\n  int x;\n};\n")
	writeFile(t, filepath.Join(dir, "notes.md"), "not a corpus file\n")

	fp := take(t, dir)
	if fp.Files != 1 || fp.Digest == 0 {
		t.Fatalf("fingerprint: %+v", fp)
	}
	if again := take(t, dir); again != fp {
		t.Errorf("unchanged tree: %+v != %+v", again, fp)
	}

	writeFile(t, filepath.Join(dir, "notes.md"), "edited, still not a corpus file\n")
	if again := take(t, dir); again != fp {
		t.Error("files outside the corpus should not change the fingerprint")
	}
}

func TestTakeDetectsChanges(t *testing.T) {
	tests := []struct {
		name   string
		change func(t *testing.T, dir string)
	}{
		{"mtime", func(t *testing.T, dir string) { touch(t, filepath.Join(dir, "types.h")) }},
		{"size", func(t *testing.T, dir string) { writeFile(t, filepath.Join(dir, "types.h"), "struct LongerName;\n") }},
		{"added", func(t *testing.T, dir string) { writeFile(t, filepath.Join(dir, "extra.h"), "struct B;\n") }},
		{"removed", func(t *testing.T, dir string) {
			if err := os.Remove(filepath.Join(dir, "funcs.cpp")); err != nil {
				t.Fatal(err)
			}
		}},
		{"config", func(t *testing.T, dir string) {
			writeFile(t, filepath.Join(dir, ".typerecon.yaml"), "abi:\n  pointer_size: 8\n")
		}},
		{"ignore file", func(t *testing.T, dir string) { writeFile(t, filepath.Join(dir, ".typereconignore"), "old/**\n") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "types.h"), "struct A;\n")
			writeFile(t, filepath.Join(dir, "funcs.cpp"), "int x;\n")
			before := take(t, dir)
			tt.change(t, dir)
			if after := take(t, dir); after == before {
				t.Errorf("fingerprint unchanged: %+v", after)
			}
		})
	}
}

func TestTakeHonorsConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "types.h"), "struct A;\n")
	writeFile(t, filepath.Join(dir, "dump.txt"), "struct B;\n")
	writeFile(t, filepath.Join(dir, "old", "dump.txt"), "struct C;\n")
	writeFile(t, filepath.Join(dir, ".typerecon.yaml"), "discover:\n  extensions: [\".txt\"]\n  ignore: [\"old/**\"]\n")

	fp := take(t, dir)
	if fp.Files != 1 {
		t.Fatalf("files: %d", fp.Files)
	}
	writeFile(t, filepath.Join(dir, "types.h"), "struct Changed;\n")
	writeFile(t, filepath.Join(dir, "old", "dump.txt"), "struct Changed;\n")
	if take(t, dir) != fp {
		t.Error("excluded files should not change the fingerprint")
	}
}

// registerProject creates the project's database in the router directory.
func registerProject(t *testing.T, r *store.StoreRouter, name, root string) {
	t.Helper()
	s, err := r.ForProject(name)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertProject(name, root); err != nil {
		t.Fatal(err)
	}
}

func newRouter(t *testing.T) *store.StoreRouter {
	t.Helper()
	r, err := store.NewRouterWithDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.CloseAll)
	return r
}

// pollNow makes every corpus due and polls once.
func pollNow(w *Watcher) {
	for _, cs := range w.corpora {
		cs.due = time.Time{}
	}
	w.poll()
}

func TestWatcherIndexesOnChange(t *testing.T) {
	r := newRouter(t)
	dir := t.TempDir()
	header := filepath.Join(dir, "types.h")
	writeFile(t, header, "struct A;\n")
	registerProject(t, r, "corpus", dir)

	var calls atomic.Int32
	w := New(r, func(_ context.Context, project, root string) error {
		if project != "corpus" || root != dir {
			t.Errorf("index called with %q %q", project, root)
		}
		calls.Add(1)
		return nil
	})

	pollNow(w)
	if calls.Load() != 0 {
		t.Fatalf("baseline poll indexed %d times", calls.Load())
	}
	pollNow(w)
	if calls.Load() != 0 {
		t.Fatalf("unchanged poll indexed %d times", calls.Load())
	}

	touch(t, header)
	pollNow(w)
	if calls.Load() != 1 {
		t.Fatalf("touched file: %d index calls", calls.Load())
	}

	writeFile(t, filepath.Join(dir, "funcs.cpp"), "int x;\n")
	pollNow(w)
	pollNow(w)
	if calls.Load() != 2 {
		t.Errorf("new file: %d index calls", calls.Load())
	}
}

func TestWatcherRetriesFailedIndex(t *testing.T) {
	r := newRouter(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "types.h"), "struct A;\n")
	registerProject(t, r, "corpus", dir)

	var calls atomic.Int32
	w := New(r, func(context.Context, string, string) error {
		calls.Add(1)
		return errors.New("store busy")
	})
	pollNow(w)

	writeFile(t, filepath.Join(dir, "extra.h"), "struct B;\n")
	pollNow(w)
	pollNow(w)
	if calls.Load() != 2 {
		t.Errorf("failed index should be retried, got %d calls", calls.Load())
	}
}

func TestWatcherSchedulesByInterval(t *testing.T) {
	r := newRouter(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "types.h"), "struct A;\n")
	registerProject(t, r, "corpus", dir)

	w := New(r, func(context.Context, string, string) error { return nil })
	w.poll()
	cs := w.corpora["corpus"]
	if cs == nil || !cs.seen || cs.interval != time.Second {
		t.Fatalf("state after baseline: %+v", cs)
	}
	due := cs.due
	w.poll()
	if cs.due != due {
		t.Error("a corpus that is not due should not be checked")
	}
}

func TestWatcherSkipsMissingRoot(t *testing.T) {
	r := newRouter(t)
	registerProject(t, r, "ghost", "/nonexistent/path")

	var calls atomic.Int32
	w := New(r, func(context.Context, string, string) error {
		calls.Add(1)
		return nil
	})
	pollNow(w)
	pollNow(w)
	if calls.Load() != 0 {
		t.Errorf("missing root indexed %d times", calls.Load())
	}
	if cs := w.corpora["ghost"]; cs == nil || cs.seen {
		t.Errorf("missing root state: %+v", cs)
	}
}

func TestWatcherOnly(t *testing.T) {
	r := newRouter(t)
	a, b := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(a, "a.h"), "struct A;\n")
	writeFile(t, filepath.Join(b, "b.h"), "struct B;\n")
	registerProject(t, r, "a", a)
	registerProject(t, r, "b", b)

	var indexed []string
	w := New(r, func(_ context.Context, project, _ string) error {
		indexed = append(indexed, project)
		return nil
	})
	w.Only("b")
	pollNow(w)
	if _, ok := w.corpora["a"]; ok {
		t.Error("project outside the filter was polled")
	}

	writeFile(t, filepath.Join(a, "a2.h"), "struct A2;\n")
	writeFile(t, filepath.Join(b, "b2.h"), "struct B2;\n")
	pollNow(w)
	if len(indexed) != 1 || indexed[0] != "b" {
		t.Errorf("indexed: %v", indexed)
	}
}

func TestWatcherCancellation(t *testing.T) {
	w := New(newRouter(t), func(context.Context, string, string) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}
}
