package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCoalescesBurst(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(50*time.Millisecond, func() { fired.Add(1) })
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Notify()
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("Burst fired %d times, want 1", got)
	}
}

func TestDebouncerExtendsWindow(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(80*time.Millisecond, func() { fired.Add(1) })
	defer d.Stop()

	d.Notify()
	// Keep notifying within the window; nothing should fire yet.
	for i := 0; i < 5; i++ {
		time.Sleep(40 * time.Millisecond)
		if fired.Load() != 0 {
			t.Fatal("Debouncer fired while events kept arriving")
		}
		d.Notify()
	}

	time.Sleep(300 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("Fired %d times after quiet period, want 1", got)
	}
}

func TestDebouncerFiresAgainAfterNewEvents(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { fired.Add(1) })
	defer d.Stop()

	d.Notify()
	time.Sleep(150 * time.Millisecond)
	d.Notify()
	time.Sleep(150 * time.Millisecond)

	if got := fired.Load(); got != 2 {
		t.Errorf("Fired %d times for two separated events, want 2", got)
	}
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(50*time.Millisecond, func() { fired.Add(1) })

	d.Notify()
	d.Stop()
	time.Sleep(150 * time.Millisecond)

	if got := fired.Load(); got != 0 {
		t.Errorf("Fired %d times after Stop, want 0", got)
	}
}

func waitForRequest(t *testing.T, w *Watcher, timeout time.Duration) Request {
	t.Helper()
	select {
	case req := <-w.Requests():
		return req
	case <-time.After(timeout):
		t.Fatal("Timed out waiting for rescan request")
		return Request{}
	}
}

func TestWatcherEmitsRequestOnAudioWrite(t *testing.T) {
	root := t.TempDir()

	w, err := New(root, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(root, "song.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	req := waitForRequest(t, w, 3*time.Second)
	if req.Full {
		t.Error("Ordinary write produced a full-rescan request")
	}
}

func TestWatcherIgnoresIrrelevantFiles(t *testing.T) {
	root := t.TempDir()

	w, err := New(root, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case <-w.Requests():
		t.Error("Non-audio write produced a rescan request")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcherSeesNewDirectories(t *testing.T) {
	root := t.TempDir()

	w, err := New(root, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	w.Start()
	defer w.Stop()

	sub := filepath.Join(root, "newalbum")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	waitForRequest(t, w, 3*time.Second)

	// The new directory must itself be watched now.
	if err := os.WriteFile(filepath.Join(sub, "track.flac"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	waitForRequest(t, w, 3*time.Second)
}

func TestWatcherMissingRootFails(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "nope"), 0); err == nil {
		t.Error("New on missing root succeeded, want error")
	}
}

func TestFireKeepsFullFlagWhenSuperseding(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, time.Hour)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.fsw.Close()

	// Fill the channel with a plain request, then fire with overflow
	// pending; the full flag must survive.
	w.requests <- Request{}
	w.mu.Lock()
	w.overflow = true
	w.mu.Unlock()
	w.fire()

	req := <-w.requests
	if !req.Full {
		t.Error("Full flag lost when superseding a queued request")
	}
}
