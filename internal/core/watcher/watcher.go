// Package watcher reports changed source files after a quiet period.
package watcher

import (
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"resolvecore/internal/shared/observability"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

type Options struct {
	Debounce     time.Duration
	ExcludeDirs  []string
	ExcludeFiles []string
	// Extensions limits reported files; empty reports every file.
	Extensions []string
	Logger     *slog.Logger
}

// Watcher batches file system events for source files and hands the changed
// paths to onChange once no event arrived for the debounce period. Writes
// that leave the content unchanged are dropped.
type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	debounce     time.Duration
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	extensions   map[string]bool
	onChange     func([]string)
	callbackMu   sync.Mutex
	logger       *slog.Logger

	pendingMu sync.Mutex
	pending   map[string]struct{}
	hashes    map[string][sha256.Size]byte
	timer     *time.Timer
	done      chan struct{}
}

func New(opts Options, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}
	excludeDirs, err := compileAll(opts.ExcludeDirs)
	if err != nil {
		return nil, err
	}
	excludeFiles, err := compileAll(opts.ExcludeFiles)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	extensions := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		if normalized := strings.ToLower(strings.TrimSpace(ext)); normalized != "" {
			extensions[normalized] = true
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsWatcher:    fsw,
		debounce:     opts.Debounce,
		excludeDirs:  excludeDirs,
		excludeFiles: excludeFiles,
		extensions:   extensions,
		onChange:     onChange,
		logger:       opts.Logger,
		pending:      make(map[string]struct{}),
		hashes:       make(map[string][sha256.Size]byte),
		done:         make(chan struct{}),
	}, nil
}

func compileAll(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// Watch adds every non-excluded directory under roots and starts delivering
// events. Files already present are hashed so a later no-op write is ignored.
func (w *Watcher) Watch(roots []string) error {
	for _, root := range roots {
		if err := w.watchRecursive(root); err != nil {
			return err
		}
		w.walkFiles(root, func(path string) { w.changed(path) })
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
		if path != root && w.shouldExcludeDir(path) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) walkFiles(root string, fn func(string)) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil {
			return nil
		}
		if info.IsDir() {
			if path != root && w.shouldExcludeDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.shouldExcludeFile(path) {
			fn(path)
		}
		return nil
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
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.shouldExcludeDir(event.Name) {
				return
			}
			if err := w.watchRecursive(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
				return
			}
			w.walkFiles(event.Name, w.schedule)
			return
		}
	}
	if w.shouldExcludeFile(event.Name) {
		return
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.schedule(event.Name)
	}
}

func (w *Watcher) schedule(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		if w.changed(path) {
			paths = append(paths, path)
		}
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	w.logger.Debug("source files changed", "count", len(paths))

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

// changed records the content hash of path and reports whether it differs
// from the last one seen. A file that cannot be read counts as removed.
func (w *Watcher) changed(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		_, known := w.hashes[path]
		delete(w.hashes, path)
		return known || !os.IsNotExist(err)
	}
	sum := sha256.Sum256(data)
	if prev, ok := w.hashes[path]; ok && prev == sum {
		return false
	}
	w.hashes[path] = sum
	return true
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	base := filepath.Base(path)
	for _, g := range w.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldExcludeFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if len(w.extensions) > 0 && !w.extensions[filepath.Ext(base)] {
		return true
	}
	for _, g := range w.excludeFiles {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()

	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.fsWatcher.Close()
}
