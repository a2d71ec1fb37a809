// Package watcher reports changes to scenario and application source files
// so that the watch command can re-run the scenarios.
package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"ipcrunner/pkg/logging"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is the quiet time after the last change before
// OnChange fires.
const DefaultDebounceInterval = 500 * time.Millisecond

// DefaultInclude matches files worth re-running for.
var DefaultInclude = []string{
	"**/*.json", "**/*.yaml", "**/*.yml",
	"**/*.c", "**/*.h", "**/*.cc", "**/*.cpp", "**/*.go",
	"**/Makefile", "**/*.mk",
}

// DefaultExclude matches paths written by the build, version control and
// the default report naming. Files whose names depend on the harness
// configuration are added with FilePattern, TreePattern and GlobPattern.
var DefaultExclude = []string{
	"**/build/**", "**/.git/**",
	"**/ipcrunner-report-*.json", "**/.ipcrunner.lock",
}

// Config holds configuration for the watcher.
type Config struct {
	// Paths are files or directories to watch. Directories are watched
	// recursively.
	Paths []string

	// Include and Exclude are doublestar patterns matched against
	// slash-separated paths. Exclude wins.
	Include []string
	Exclude []string

	Debounce time.Duration

	// OnChange receives the changed paths, sorted, once changes settle.
	OnChange func(changed []string)
}

// Watcher monitors files for changes.
type Watcher struct {
	mu      sync.Mutex
	config  Config
	fs      *fsnotify.Watcher
	stopCh  chan struct{}
	running bool

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
	pending       map[string]struct{}
}

// New creates a watcher, filling unset fields with defaults.
func New(config Config) *Watcher {
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounceInterval
	}
	if config.Include == nil {
		config.Include = DefaultInclude
	}
	if config.Exclude == nil {
		config.Exclude = DefaultExclude
	}
	return &Watcher{config: config, pending: make(map[string]struct{})}
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	if len(w.config.Paths) == 0 {
		return errors.New("no paths to watch")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	for _, p := range w.config.Paths {
		if err := w.addTree(fsw, p); err != nil {
			_ = fsw.Close()
			return err
		}
	}

	w.fs = fsw
	w.stopCh = make(chan struct{})
	w.running = true

	go w.processEvents(fsw.Events, fsw.Errors, w.stopCh)

	logging.Info("Watcher", "Watching %v for changes", w.config.Paths)
	return nil
}

// addTree watches path; directories are added with every subdirectory that
// is not excluded. A watched file is covered by watching its directory.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", path, err)
	}
	if !info.IsDir() {
		return fsw.Add(filepath.Dir(path))
	}

	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && (w.excluded(p) || w.excluded(p+"/")) {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("cannot watch %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents(events <-chan fsnotify.Event, errs <-chan error, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-errs:
			if !ok {
				return
			}
			logging.Error("Watcher", err, "fsnotify error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if !w.Relevant(event.Name) {
		return
	}

	logging.Debug("Watcher", "Changed: %s (%s)", event.Name, event.Op)
	w.triggerDebounced(event.Name)
}

// Relevant reports whether a change to path should trigger a re-run.
func (w *Watcher) Relevant(path string) bool {
	if w.excluded(path) {
		return false
	}
	return matchAny(w.config.Include, path)
}

func (w *Watcher) excluded(path string) bool {
	return matchAny(w.config.Exclude, path)
}

func matchAny(patterns []string, path string) bool {
	slashed := normalize(path)
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, slashed); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) triggerDebounced(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	w.pending[path] = struct{}{}
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.config.Debounce, func() {
		w.debounceMu.Lock()
		changed := make([]string, 0, len(w.pending))
		for p := range w.pending {
			changed = append(changed, p)
		}
		w.pending = make(map[string]struct{})
		w.debounceMu.Unlock()
		sort.Strings(changed)

		w.mu.Lock()
		running := w.running
		callback := w.config.OnChange
		w.mu.Unlock()

		if running && callback != nil && len(changed) > 0 {
			callback(changed)
		}
	})
}

// Stop stops watching. Pending notifications are dropped.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	err := w.fs.Close()
	w.fs = nil
	logging.Debug("Watcher", "Stopped")
	return err
}

// IsRunning returns whether the watcher is currently active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
