package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestNewWatcher_RejectsBadPattern(t *testing.T) {
	if _, err := NewWatcher(time.Millisecond, []string{"[unclosed"}, func([]string) {}); err == nil {
		t.Fatal("expected error for invalid exclude pattern")
	}
}

func waitForPath(t *testing.T, ch <-chan []string, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case paths := <-ch:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for change to %s", want)
		}
	}
}

func drain(ch <-chan []string, quiet time.Duration) {
	for {
		select {
		case <-ch:
		case <-time.After(quiet):
			return
		}
	}
}

func TestWatcher_File(t *testing.T) {
	dir := t.TempDir()
	plan := filepath.Join(dir, "plan.json")
	if err := os.WriteFile(plan, []byte(`{"nodes":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan []string, 8)
	w, err := NewWatcher(50*time.Millisecond, nil, func(paths []string) { changed <- paths })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{plan}); err != nil {
		t.Fatal(err)
	}

	// A sibling that is not the watched file is ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(plan, []byte(`{"nodes":[{"id":"a"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case paths := <-changed:
		if len(paths) != 1 || paths[0] != plan {
			t.Fatalf("expected only %s, got %v", plan, paths)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for file change event")
	}
}

func TestWatcher_Directory(t *testing.T) {
	dir := t.TempDir()

	changed := make(chan []string, 8)
	w, err := NewWatcher(50*time.Millisecond, []string{"**/*.swp", "drafts"}, func(paths []string) { changed <- paths })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{dir}); err != nil {
		t.Fatal(err)
	}

	yamlPlan := filepath.Join(dir, "plan.yaml")
	if err := os.WriteFile(yamlPlan, []byte("nodes: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForPath(t, changed, yamlPlan)
	drain(changed, 150*time.Millisecond)

	// Excluded and non-snapshot files never trigger.
	for _, name := range []string{".plan.yaml.swp", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case paths := <-changed:
		t.Fatalf("unexpected change notification %v", paths)
	case <-time.After(300 * time.Millisecond):
	}

	// New directories are picked up recursively.
	sub := filepath.Join(dir, "q3")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	nested := filepath.Join(sub, "roadmap.json")
	if err := os.WriteFile(nested, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForPath(t, changed, nested)
}

func TestWatcher_SetDebounce(t *testing.T) {
	w, err := NewWatcher(time.Second, nil, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.SetDebounce(10 * time.Millisecond)
	if w.debounce != 10*time.Millisecond {
		t.Fatalf("expected debounce to update, got %v", w.debounce)
	}
}
