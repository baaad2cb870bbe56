// Package watcher observes the workspace clone for file changes made
// outside the repository tool (test runs, codegen, install scripts), so
// they surface as file-modified events too.
package watcher

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/autocodit-io/runner/internal/detect"
)

const debounceWindow = 100 * time.Millisecond

// Event is a debounced change to one workspace file. Path is relative to
// the watched root.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Watcher watches a directory tree. fsnotify is not recursive, so every
// subdirectory is added individually and new directories are picked up
// from create events.
type Watcher struct {
	root      string
	fsWatcher *fsnotify.Watcher
	log       *slog.Logger

	eventsChan chan Event
	done       chan struct{}

	debounceMu sync.Mutex
	debounce   map[string]*time.Timer
}

// New creates a watcher for the tree rooted at root.
func New(root string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		root:       root,
		fsWatcher:  fsWatcher,
		log:        logger.With("component", "watcher"),
		eventsChan: make(chan Event, 100),
		done:       make(chan struct{}),
		debounce:   make(map[string]*time.Timer),
	}, nil
}

// Events returns the channel for receiving events.
func (w *Watcher) Events() <-chan Event {
	return w.eventsChan
}

// Start adds watches for the whole tree and begins processing events.
func (w *Watcher) Start() error {
	if err := w.addTree(w.root); err != nil {
		return err
	}
	go w.processEvents()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.done)
	_ = w.fsWatcher.Close()
}

// addTree watches root and every non-excluded subdirectory under it.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && detect.ExcludedDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			w.log.Warn("failed to watch directory", "dir", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
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
			w.log.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Accept write, create, and rename events. Rename matters: atomic
	// writes (write tmp, rename to target) produce Rename on the target.
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	// New directories need their own watch.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !detect.ExcludedDirs[filepath.Base(event.Name)] {
				_ = w.addTree(event.Name)
			}
			return
		}
	}

	w.debounceEvent(event.Name, func() {
		w.emit(event.Name, event.Op)
	})
}

// debounceEvent collapses bursts of events for the same path.
func (w *Watcher) debounceEvent(path string, fn func()) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}

	w.debounce[path] = time.AfterFunc(debounceWindow, func() {
		w.debounceMu.Lock()
		delete(w.debounce, path)
		w.debounceMu.Unlock()
		fn()
	})
}

func (w *Watcher) emit(path string, op fsnotify.Op) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return
	}
	// Skip git internals touched by branch and commit operations.
	if rel == ".git" || strings.HasPrefix(rel, ".git"+string(filepath.Separator)) {
		return
	}

	select {
	case w.eventsChan <- Event{Path: rel, Op: op}:
	case <-w.done:
	}
}
