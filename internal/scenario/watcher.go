package scenario

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"coherence/pkg/logging"
)

const watcherSubsystem = "ScenarioWatcher"

// DefaultDebounceInterval is the time to wait before invoking the callback
// after the last scenario file change is detected.
const DefaultDebounceInterval = 300 * time.Millisecond

// Watcher monitors a scenario file or directory and invokes a callback when
// YAML files are written or created. Bursts of changes, such as an editor
// saving several files, produce a single callback.
type Watcher struct {
	mu sync.Mutex

	path     string
	debounce time.Duration
	onChange func()

	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool

	debounceTimer *time.Timer
	debounceMu    sync.Mutex
}

// NewWatcher creates a watcher for path. A zero debounce uses DefaultDebounceInterval.
func NewWatcher(path string, debounce time.Duration, onChange func()) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}
	return &Watcher{
		path:     path,
		debounce: debounce,
		onChange: onChange,
	}
}

// Start begins watching. Directories are watched recursively; directories
// created later are added as they appear.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := addRecursive(watcher, w.path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	w.fsWatcher = watcher
	w.stopCh = make(chan struct{})
	w.running = true

	go w.processEvents(watcher.Events, watcher.Errors)

	logging.Info(watcherSubsystem, "Watching %s for scenario changes", w.path)
	return nil
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		// Editors often replace files, so watch the parent directory
		return watcher.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) processEvents(eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error(watcherSubsystem, err, "fsnotify error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.mu.Lock()
			if w.fsWatcher != nil {
				if err := addRecursive(w.fsWatcher, event.Name); err != nil {
					logging.Warn(watcherSubsystem, "Failed to watch new directory %s: %v", event.Name, err)
				}
			}
			w.mu.Unlock()
			return
		}
	}

	if !w.isRelevant(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}

	logging.Debug(watcherSubsystem, "Scenario file changed: %s (%s)", event.Name, event.Op)
	w.triggerDebounced()
}

func (w *Watcher) isRelevant(name string) bool {
	if !IsYAMLFile(name) {
		return false
	}
	info, err := os.Stat(w.path)
	if err == nil && !info.IsDir() {
		return filepath.Clean(name) == filepath.Clean(w.path)
	}
	return true
}

func (w *Watcher) triggerDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		running := w.running
		callback := w.onChange
		w.mu.Unlock()

		if running && callback != nil {
			callback()
		}
	})
}

// Stop stops watching. It is safe to call more than once.
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

	var err error
	if w.fsWatcher != nil {
		err = w.fsWatcher.Close()
		w.fsWatcher = nil
	}

	logging.Info(watcherSubsystem, "Stopped watching %s", w.path)
	return err
}

// IsRunning returns whether the watcher is currently active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
