package watcher

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet window applied to filesystem events
// before a rescan fires.
const DefaultDebounce = 2 * time.Second

// Debouncer coalesces bursts of notifications into a single callback.
// Every Notify extends the quiet window; the callback fires once the
// window elapses with no further notifications. Notifications arriving
// while the callback runs schedule one more firing, never several.
type Debouncer struct {
	window   time.Duration
	callback func()

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer creates a debouncer. window <= 0 selects
// DefaultDebounce.
func NewDebouncer(window time.Duration, callback func()) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Debouncer{window: window, callback: callback}
}

// Notify records an event and (re)starts the quiet window.
func (d *Debouncer) Notify() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Reset(d.window)
		return
	}
	d.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		d.timer = nil
		d.mu.Unlock()
		d.callback()
	})
}

// Stop cancels any pending firing.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
