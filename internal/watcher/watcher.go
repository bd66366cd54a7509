// Package watcher provides file system watching with debouncing for
// manifest directories.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors manifest directories, recursively, and reports
// changes after a debounce window. Each notification carries the most
// recent changed path.
type Watcher struct {
	fsw      *fsnotify.Watcher
	dirs     []string
	debounce time.Duration
	changes  chan string
	quit     chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	Dirs        []string
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(dirs []string) Config {
	return Config{
		Dirs:        dirs,
		DebounceDur: 250 * time.Millisecond,
	}
}

// New creates a new manifest watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsw:      fsw,
		dirs:     cfg.Dirs,
		debounce: cfg.DebounceDur,
		changes:  make(chan string, 1),
		quit:     make(chan struct{}),
	}, nil
}

// Start watches every configured directory tree and returns the channel
// notifications arrive on. Rapid bursts of events coalesce into a
// single notification carrying the last path seen.
func (w *Watcher) Start() (<-chan string, error) {
	for _, dir := range w.dirs {
		if err := w.watchTree(dir); err != nil {
			return nil, err
		}
	}

	go w.loop()

	return w.changes, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.quit)
	return w.fsw.Close()
}

// watchTree registers root and every directory beneath it.
func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching directory %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	var (
		timer    *time.Timer
		timerC   <-chan time.Time
		lastPath string
	)

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			path, relevant := w.classify(event)
			if !relevant {
				continue
			}
			lastPath = path

			// Arm or push back the debounce window.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			select {
			case w.changes <- lastPath:
			default:
			}

		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Swallowed on purpose: the watcher stays logger-free, and
			// callers who need error visibility can wrap it.

		case <-w.quit:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// classify decides whether an event warrants a reload and returns the
// path to report. A directory created mid-watch gets registered so its
// manifests are seen, and itself counts as a change since the reload
// rescans everything.
func (w *Watcher) classify(event fsnotify.Event) (string, bool) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.watchTree(event.Name)
			return event.Name, true
		}
	}

	// Removes and renames matter too: deleting a manifest must drop its
	// operators on the next reload.
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return "", false
	}

	switch filepath.Ext(event.Name) {
	case ".yaml", ".yml":
		return event.Name, true
	}
	return "", false
}
