// Package watcher re-runs archive analysis when documents in watched archive
// directories change.
package watcher

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig contains watcher settings.
type WatchConfig struct {
	Debounce       time.Duration // quiet period before re-analysis (default: 2s)
	IgnorePatterns []string      // base-name globs that never trigger
	Logger         *slog.Logger
}

// DefaultWatchConfig returns a WatchConfig with sensible defaults.
func DefaultWatchConfig() *WatchConfig {
	return &WatchConfig{
		Debounce:       2 * time.Second,
		IgnorePatterns: DefaultIgnorePatterns(),
	}
}

// WatchSummary contains stats from the watch session.
type WatchSummary struct {
	Events   int // filesystem events received
	Ignored  int // events dropped by the filter
	Analyses int // handler invocations
	Errors   int // handler or watcher errors
	Duration time.Duration
}

// Handler is called with a watched directory after changes inside it settle.
type Handler func(dir string) error

// Watcher monitors archive directories and their category subfolders.
type Watcher struct {
	config    *WatchConfig
	handler   Handler
	filter    *FileFilter
	debouncer *Debouncer
	logger    *slog.Logger

	fsWatcher *fsnotify.Watcher
	roots     []string
	done      chan struct{}
	wg        sync.WaitGroup
	startTime time.Time

	mu       sync.Mutex
	events   int
	ignored  int
	analyses int
	errors   int
}

// New creates a Watcher. A nil config selects the defaults.
func New(config *WatchConfig, handler Handler) (*Watcher, error) {
	if config == nil {
		config = DefaultWatchConfig()
	}
	filter, err := NewFileFilter(config.IgnorePatterns)
	if err != nil {
		return nil, err
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		config:  config,
		handler: handler,
		filter:  filter,
		logger:  logger,
		done:    make(chan struct{}),
	}
	w.debouncer = NewDebouncer(config.Debounce, w.analyze)
	return w, nil
}

// Start watches each directory in dirs plus its immediate subdirectories.
// Directories that do not exist are skipped with a warning; at least one
// must exist.
func (w *Watcher) Start(dirs []string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsWatcher = fsw

	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			fsw.Close()
			return err
		}
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			w.logger.Warn("not watching missing directory", "dir", abs)
			continue
		}
		if err := w.addTree(abs); err != nil {
			fsw.Close()
			return err
		}
		w.roots = append(w.roots, abs)
	}
	if len(w.roots) == 0 {
		fsw.Close()
		return errors.New("no existing directories to watch")
	}

	w.startTime = time.Now()
	w.wg.Add(1)
	go w.processEvents()

	w.logger.Info("watching archive directories", "dirs", w.roots, "debounce", w.config.Debounce)
	return nil
}

// addTree watches dir and its non-hidden immediate subdirectories.
func (w *Watcher) addTree(dir string) error {
	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			if err := w.fsWatcher.Add(filepath.Join(dir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stop shuts the watcher down and returns a summary of the session.
// Pending analyses are dropped.
func (w *Watcher) Stop() *WatchSummary {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	w.wg.Wait()
	w.debouncer.Close()
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return &WatchSummary{
		Events:   w.events,
		Ignored:  w.ignored,
		Analyses: w.analyses,
		Errors:   w.errors,
		Duration: time.Since(w.startTime),
	}
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.mu.Lock()
			w.errors++
			w.mu.Unlock()
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	w.mu.Lock()
	w.events++
	w.mu.Unlock()

	if w.filter.ShouldIgnore(event.Name) {
		w.mu.Lock()
		w.ignored++
		w.mu.Unlock()
		return
	}

	root := w.rootOf(event.Name)
	if root == "" {
		return
	}

	// new category folders directly under a root get watched too
	if event.Op&fsnotify.Create != 0 && filepath.Dir(event.Name) == root {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsWatcher.Add(event.Name); err != nil {
				w.logger.Warn("failed to watch new folder", "dir", event.Name, "error", err)
			}
		}
	}

	w.logger.Debug("archive change", "path", event.Name, "op", event.Op.String())
	w.debouncer.Trigger(root)
}

// rootOf returns the watched root containing path.
func (w *Watcher) rootOf(path string) string {
	for _, root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root
		}
	}
	return ""
}

func (w *Watcher) analyze(dir string) {
	if w.handler == nil {
		return
	}
	err := w.handler(dir)

	w.mu.Lock()
	w.analyses++
	if err != nil {
		w.errors++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("re-analysis failed", "dir", dir, "error", err)
	}
}

// Roots returns the directories being watched.
func (w *Watcher) Roots() []string {
	return append([]string(nil), w.roots...)
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	select {
	case <-w.done:
		return false
	default:
		return w.fsWatcher != nil
	}
}
