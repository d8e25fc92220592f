// Package watcher reacts to filesystem changes under the music root.
// Events are debounced into rescan requests so a large copy lands as
// one pass instead of one per file.
package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"harmonium/internal/audiotypes"
	"harmonium/internal/logging"
	"harmonium/internal/metrics"
)

// Request asks the engine for a rescan. Full is set when the watcher
// lost events and the next pass must not trust the change ledger alone.
type Request struct {
	Full bool
}

// Watcher monitors the music root recursively and emits debounced
// rescan requests on its channel.
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	debounce *Debouncer
	requests chan Request

	mu       sync.Mutex
	overflow bool
	running  bool
	stop     chan struct{}
	stopped  chan struct{}
}

// New creates a watcher over root with the given debounce window
// (0 selects DefaultDebounce). The watch descriptors are registered up
// front so a setup failure surfaces here, not mid-run.
func New(root string, window time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     root,
		fsw:      fsw,
		requests: make(chan Request, 1),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	w.debounce = NewDebouncer(window, w.fire)

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Requests returns the channel rescan requests arrive on. The channel
// has capacity one; an undelivered request is superseded, not stacked.
func (w *Watcher) Requests() <-chan Request {
	return w.requests
}

// Start launches the event loop.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.eventLoop()
	logging.Info("Watching %s for changes", w.root)
}

// Stop shuts the watcher down and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stop)
	w.fsw.Close()
	<-w.stopped
	w.debounce.Stop()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if watchErr := w.fsw.Add(path); watchErr != nil {
			logging.Warn("Cannot watch %s: %v", path, watchErr)
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	defer close(w.stopped)

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// The kernel queue overflowed; whatever happened in the
				// gap is unknown, so the next pass must be full.
				metrics.WatcherOverflows.Inc()
				logging.Warn("Watch queue overflowed, scheduling full rescan")
				w.mu.Lock()
				w.overflow = true
				w.mu.Unlock()
				w.debounce.Notify()
				continue
			}
			logging.Error("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// New directories must be watched before anything inside them
	// generates events.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				logging.Warn("Cannot watch new directory %s: %v", event.Name, err)
			}
			metrics.WatcherEventsTotal.Inc()
			w.debounce.Notify()
			return
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
		return
	}

	name := filepath.Base(event.Name)
	if !audiotypes.IsAudioFile(event.Name) && !audiotypes.IsCoverImage(name) {
		// Removes and renames arrive without a stat-able target, so a
		// directory disappearing looks like an extensionless file.
		// Treat those as relevant rather than miss a deleted tree.
		if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 || filepath.Ext(event.Name) != "" {
			return
		}
	}

	metrics.WatcherEventsTotal.Inc()
	logging.Debug("Filesystem event: %s %s", event.Op, event.Name)
	w.debounce.Notify()
}

// fire runs when the debounce window elapses. It delivers at most one
// request; a pending undelivered request absorbs the new one, keeping
// the full flag if either had it.
func (w *Watcher) fire() {
	w.mu.Lock()
	full := w.overflow
	w.overflow = false
	w.mu.Unlock()

	req := Request{Full: full}
	select {
	case w.requests <- req:
		metrics.WatcherRescansTriggered.Inc()
	default:
		if full {
			// Do not lose the full flag: drain the stale request and
			// replace it.
			select {
			case old := <-w.requests:
				req.Full = req.Full || old.Full
			default:
			}
			select {
			case w.requests <- req:
				metrics.WatcherRescansTriggered.Inc()
			default:
			}
		}
	}
}
