// Package engine drives the indexing loop: it schedules scan passes,
// moves the status record through its phases, and retries failed passes
// with exponential backoff.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"harmonium/internal/catalog"
	"harmonium/internal/differ"
	"harmonium/internal/logging"
	"harmonium/internal/metrics"
	"harmonium/internal/scanner"
	"harmonium/internal/watcher"
)

const (
	// DefaultPassTimeout bounds a single scan pass.
	DefaultPassTimeout = 30 * time.Minute

	retryInitial = 30 * time.Second
	retryMax     = 10 * time.Minute
)

// Config wires an Engine.
type Config struct {
	Catalog     *catalog.Catalog
	Scanner     *scanner.Scanner
	Applier     *differ.Applier
	PassTimeout time.Duration

	// Watch delivers debounced rescan requests; nil disables watching.
	Watch <-chan watcher.Request

	// RescanInterval schedules periodic passes; 0 disables them. Used
	// as the fallback when filesystem watching is unavailable.
	RescanInterval time.Duration

	// OnApplied runs after a pass commits changes. The search index
	// hooks its rebuild here.
	OnApplied func()
}

// Engine owns the scan loop. One pass runs at a time; requests arriving
// mid-pass coalesce into at most one follow-up.
type Engine struct {
	cfg      Config
	requests chan watcher.Request

	mu      sync.Mutex
	warning string
	retryIn time.Duration
}

func New(cfg Config) *Engine {
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = DefaultPassTimeout
	}
	return &Engine{
		cfg:      cfg,
		requests: make(chan watcher.Request, 1),
		retryIn:  retryInitial,
	}
}

// RequestScan queues a pass. A request queued behind a running pass is
// merged with any other pending request; the full flag is sticky.
func (e *Engine) RequestScan(full bool) {
	req := watcher.Request{Full: full}
	select {
	case e.requests <- req:
	default:
		if full {
			select {
			case old := <-e.requests:
				req.Full = req.Full || old.Full
			default:
			}
			select {
			case e.requests <- req:
			default:
			}
		}
	}
}

// SetWarning attaches an advisory message to the reported status, such
// as when filesystem watching is unavailable.
func (e *Engine) SetWarning(msg string) {
	e.mu.Lock()
	e.warning = msg
	e.mu.Unlock()
}

// Status returns the persisted status with the engine's warning, if
// any, attached.
func (e *Engine) Status(ctx context.Context) (catalog.Status, error) {
	status, err := e.cfg.Catalog.GetStatus(ctx)
	if err != nil {
		return catalog.Status{}, err
	}
	e.mu.Lock()
	status.Warning = e.warning
	e.mu.Unlock()
	return status, nil
}

// Run executes the scan loop until ctx is canceled. The first pass
// starts immediately.
func (e *Engine) Run(ctx context.Context) {
	e.RequestScan(false)

	var (
		retryTimer *time.Timer
		retryC     <-chan time.Time
	)
	stopRetry := func() {
		if retryTimer != nil {
			retryTimer.Stop()
			retryTimer = nil
			retryC = nil
		}
	}
	defer stopRetry()

	var intervalC <-chan time.Time
	if e.cfg.RescanInterval > 0 {
		ticker := time.NewTicker(e.cfg.RescanInterval)
		defer ticker.Stop()
		intervalC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-e.requests:
			stopRetry()
			e.runAndReschedule(ctx, req.Full, &retryTimer, &retryC)
		case req, ok := <-e.watchChan():
			if !ok {
				// Watcher went away mid-run; keep looping on the other
				// triggers.
				e.cfg.Watch = nil
				continue
			}
			stopRetry()
			e.runAndReschedule(ctx, req.Full, &retryTimer, &retryC)
		case <-intervalC:
			stopRetry()
			e.runAndReschedule(ctx, false, &retryTimer, &retryC)
		case <-retryC:
			retryTimer = nil
			retryC = nil
			e.runAndReschedule(ctx, false, &retryTimer, &retryC)
		}
	}
}

// watchChan returns the watch channel or a nil channel that never
// delivers, keeping the select simple.
func (e *Engine) watchChan() <-chan watcher.Request {
	return e.cfg.Watch
}

func (e *Engine) runAndReschedule(ctx context.Context, full bool, retryTimer **time.Timer, retryC *<-chan time.Time) {
	if err := e.RunPass(ctx, full); err != nil {
		if ctx.Err() != nil {
			return
		}
		e.mu.Lock()
		delay := e.retryIn
		e.retryIn *= 2
		if e.retryIn > retryMax {
			e.retryIn = retryMax
		}
		e.mu.Unlock()

		logging.Warn("Scan pass failed, retrying in %s: %v", delay, err)
		t := time.NewTimer(delay)
		*retryTimer = t
		*retryC = t.C
		return
	}
	e.mu.Lock()
	e.retryIn = retryInitial
	e.mu.Unlock()
}

// RunPass executes one scan pass: snapshot the ledger, walk and parse,
// classify, and apply. The status record transitions scanning -> idle
// on success and scanning -> error on failure, keeping the previous
// completion time either way.
func (e *Engine) RunPass(ctx context.Context, full bool) error {
	passCtx, cancel := context.WithTimeout(ctx, e.cfg.PassTimeout)
	defer cancel()

	start := time.Now()
	metrics.ScanIsRunning.Set(1)
	defer metrics.ScanIsRunning.Set(0)

	if err := e.cfg.Catalog.SetScanning(passCtx, start); err != nil {
		return err
	}
	logging.Info("Scan pass started (full=%v)", full)

	counts, err := e.pass(passCtx, full)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.ScanPassesTotal.WithLabelValues(outcome).Inc()
		if statusErr := e.cfg.Catalog.SetError(context.WithoutCancel(ctx), err.Error()); statusErr != nil {
			logging.Error("Failed to record scan error: %v", statusErr)
		}
		return err
	}

	completed := time.Now()
	if err := e.cfg.Catalog.SetIdle(passCtx, completed, counts.Added, counts.Updated, counts.Removed); err != nil {
		return err
	}

	metrics.ScanPassesTotal.WithLabelValues("ok").Inc()
	metrics.ScanPassDuration.Set(completed.Sub(start).Seconds())
	metrics.ScanLastPassTimestamp.Set(float64(completed.Unix()))

	logging.Info("Scan pass completed in %s (%d added, %d updated, %d removed)",
		completed.Sub(start).Round(time.Millisecond), counts.Added, counts.Updated, counts.Removed)

	if counts.Total() > 0 && e.cfg.OnApplied != nil {
		e.cfg.OnApplied()
	}
	return nil
}

func (e *Engine) pass(ctx context.Context, full bool) (differ.Counts, error) {
	known, err := e.cfg.Catalog.AllFingerprints(ctx)
	if err != nil {
		return differ.Counts{}, err
	}

	results, err := e.cfg.Scanner.Scan(ctx, known, full)
	if err != nil {
		return differ.Counts{}, err
	}

	changes := differ.Diff(results, known)
	return e.cfg.Applier.Apply(ctx, changes)
}
