// Package watcher reports debounced changes to plan snapshot files.
package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"planboard/internal/shared/observability"
	"planboard/internal/shared/util"
)

// SnapshotExtensions are the file types picked up inside watched directories.
var SnapshotExtensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
}

type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	debounce   time.Duration
	exclude    *util.GlobSet
	onChange   func([]string)
	callbackMu sync.Mutex

	targetsMu sync.RWMutex
	files     map[string]bool // explicitly watched snapshot files
	roots     []string        // recursively watched directories

	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer
	closed    bool
}

func NewWatcher(debounce time.Duration, exclude []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}

	excludeSet, err := util.CompileGlobs(exclude)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsw,
		debounce:  debounce,
		exclude:   excludeSet,
		onChange:  onChange,
		files:     make(map[string]bool),
		pending:   make(map[string]time.Time),
	}, nil
}

func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.debounce = debounce
}

// Watch starts watching paths. A file is watched through its parent directory
// so editors that replace files on save are still seen; a directory is
// watched recursively for snapshot files.
func (w *Watcher) Watch(paths []string) error {
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return err
		}

		w.targetsMu.Lock()
		if info.IsDir() {
			w.roots = append(w.roots, abs)
		} else {
			w.files[abs] = true
		}
		w.targetsMu.Unlock()

		if info.IsDir() {
			if err := w.watchRecursive(abs); err != nil {
				return err
			}
			continue
		}
		if err := w.fsWatcher.Add(filepath.Dir(abs)); err != nil {
			return err
		}
	}

	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && w.isExcluded(path) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if w.underRoot(event.Name) && !w.isExcluded(event.Name) {
						if err := w.watchRecursive(event.Name); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.enqueueExistingFiles(event.Name)
						}
					}
					continue
				}
			}

			if !w.isSnapshotFile(event.Name) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if w.closed {
		return
	}

	w.pending[path] = time.Now()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

func (w *Watcher) isSnapshotFile(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if w.isExcluded(abs) {
		return false
	}

	w.targetsMu.RLock()
	explicit := w.files[abs]
	w.targetsMu.RUnlock()
	if explicit {
		return true
	}
	return w.underRoot(abs) && SnapshotExtensions[strings.ToLower(filepath.Ext(abs))]
}

func (w *Watcher) underRoot(path string) bool {
	w.targetsMu.RLock()
	defer w.targetsMu.RUnlock()
	for _, root := range w.roots {
		rel := util.RelativeSlashPath(root, path)
		if !filepath.IsAbs(filepath.FromSlash(rel)) {
			return true
		}
	}
	return false
}

func (w *Watcher) isExcluded(path string) bool {
	return w.exclude.Match(path)
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if w.isSnapshotFile(path) {
			w.scheduleChange(path)
		}
		return nil
	})
}
