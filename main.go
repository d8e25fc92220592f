package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"harmonium/internal/catalog"
	"harmonium/internal/covers"
	"harmonium/internal/differ"
	"harmonium/internal/engine"
	"harmonium/internal/handlers"
	"harmonium/internal/logging"
	"harmonium/internal/scanner"
	"harmonium/internal/search"
	"harmonium/internal/startup"
	"harmonium/internal/watcher"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat, err := catalog.Open(ctx, config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to open catalog: %v", err)
	}
	defer cat.Close()

	idx := search.New(cat)
	if err := idx.Refresh(ctx); err != nil {
		logging.Warn("Initial search index build failed: %v", err)
	}

	coverSvc, err := covers.New(cat, config.MusicDir, config.CoverCacheDir)
	if err != nil {
		logging.Fatal("Failed to initialize cover service: %v", err)
	}

	var (
		watchChan    <-chan watcher.Request
		watchWarning string
		w            *watcher.Watcher
	)
	rescanInterval := config.RescanInterval
	if config.WatchEnabled {
		w, err = watcher.New(config.MusicDir, config.WatchDebounce)
		if err != nil {
			// Fall back to periodic rescans so changes still land,
			// just slower.
			watchWarning = "filesystem watching unavailable, relying on periodic rescans"
			logging.Warn("Failed to start filesystem watcher: %v", err)
			if rescanInterval <= 0 {
				rescanInterval = time.Hour
			}
		} else {
			watchChan = w.Requests()
			w.Start()
			defer w.Stop()
		}
	}

	applier := differ.NewApplier(cat, config.ScanBatchSize)
	applier.SetCoverCache(coverSvc)

	eng := engine.New(engine.Config{
		Catalog:        cat,
		Scanner:        scanner.New(config.MusicDir, nil, config.FingerprintMode),
		Applier:        applier,
		PassTimeout:    config.ScanTimeout,
		RescanInterval: rescanInterval,
		Watch:          watchChan,
		OnApplied: func() {
			if err := idx.Refresh(context.Background()); err != nil {
				logging.Error("Search index refresh failed: %v", err)
			}
		},
	})
	if watchWarning != "" {
		eng.SetWarning(watchWarning)
	}

	go eng.Run(ctx)

	h := handlers.New(cat, eng, idx, coverSvc, config.MusicDir, startup.Version)
	router := h.Router(config.MetricsEnabled)
	startup.LogHTTPRoutes(router)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, cancel)

	logging.Info("Listening on :%s (startup took %s)", config.Port, time.Since(startTime).Round(time.Millisecond))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

func handleShutdown(srv *http.Server, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logging.Info("Received %s, shutting down", sig)
	cancel()

	ctx, done := context.WithTimeout(context.Background(), 30*time.Second)
	defer done()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	}
}
