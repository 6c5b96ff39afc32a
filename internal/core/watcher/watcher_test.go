package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T, opts Options) (*Watcher, chan []string) {
	t.Helper()
	changed := make(chan []string, 10)
	if opts.Debounce == 0 {
		opts.Debounce = 50 * time.Millisecond
	}
	w, err := New(opts, func(paths []string) { changed <- paths })
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close() })
	return w, changed
}

func waitFor(t *testing.T, changed <-chan []string, want string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changed:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for change of %s", want)
		}
	}
}

func expectQuiet(t *testing.T, changed <-chan []string, name string) {
	t.Helper()
	select {
	case paths := <-changed:
		for _, p := range paths {
			if filepath.Base(p) == name {
				t.Errorf("unexpected change reported for %s", name)
			}
		}
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNew_RejectsNilCallback(t *testing.T) {
	w, err := New(Options{Debounce: time.Millisecond}, nil)
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestNew_RejectsBadPattern(t *testing.T) {
	if _, err := New(Options{ExcludeFiles: []string{"["}}, func([]string) {}); err == nil {
		t.Fatal("expected error for invalid glob")
	}
}

func TestWatcher_ReportsSourceChanges(t *testing.T) {
	dir := t.TempDir()
	w, changed := newTestWatcher(t, Options{
		ExcludeDirs:  []string{"build"},
		ExcludeFiles: []string{"*.gen.kt"},
		Extensions:   []string{".kt"},
	})
	if err := os.MkdirAll(filepath.Join(dir, "build"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := w.Watch([]string{dir}); err != nil {
		t.Fatal(err)
	}

	source := filepath.Join(dir, "Main.kt")
	if err := os.WriteFile(source, []byte("class Main"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, source)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	expectQuiet(t, changed, "notes.txt")

	if err := os.WriteFile(filepath.Join(dir, "Api.gen.kt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	expectQuiet(t, changed, "Api.gen.kt")

	if err := os.WriteFile(filepath.Join(dir, "build", "Out.kt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	expectQuiet(t, changed, "Out.kt")
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	dir := t.TempDir()
	w, changed := newTestWatcher(t, Options{Extensions: []string{".kt"}})
	if err := w.Watch([]string{dir}); err != nil {
		t.Fatal(err)
	}

	subdir := filepath.Join(dir, "pkg")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(subdir, "Nested.kt")
	if err := os.WriteFile(nested, []byte("class Nested"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, nested)
}

func TestWatcher_IgnoresUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "Same.kt")
	content := []byte("class Same")
	if err := os.WriteFile(source, content, 0o644); err != nil {
		t.Fatal(err)
	}

	w, changed := newTestWatcher(t, Options{})
	if err := w.Watch([]string{dir}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(source, content, 0o644); err != nil {
		t.Fatal(err)
	}
	expectQuiet(t, changed, "Same.kt")

	if err := os.WriteFile(source, []byte("class Same2"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, source)

	if err := os.Remove(source); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, source)
}
