// Package startup loads configuration from environment variables,
// validates the data directories, and logs the effective settings at
// boot.
package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"harmonium/internal/logging"
	"harmonium/internal/scanner"
	"harmonium/internal/watcher"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// Config holds all application configuration.
type Config struct {
	MusicDir    string
	DatabaseDir string
	CacheDir    string
	Port        string

	WatchEnabled    bool
	WatchDebounce   time.Duration
	RescanInterval  time.Duration
	ScanTimeout     time.Duration
	ScanBatchSize   int
	FingerprintMode scanner.FingerprintMode
	MetricsEnabled  bool

	// Derived paths
	DatabasePath  string
	CoverCacheDir string
}

// LoadConfig loads and validates configuration from environment
// variables.
func LoadConfig() (*Config, error) {
	printBanner()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	musicDir := getEnv("MUSIC_DIR", "/music")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	cacheDir := getEnv("CACHE_DIR", "/cache")
	port := getEnv("PORT", "8080")
	watchEnabled := getEnvBool("WATCH_ENABLED", true)
	watchDebounce := getEnvDuration("WATCH_DEBOUNCE", watcher.DefaultDebounce)
	rescanInterval := getEnvDuration("RESCAN_INTERVAL", 0)
	scanTimeout := getEnvDuration("SCAN_TIMEOUT", 30*time.Minute)
	scanBatchSize := getEnvInt("SCAN_BATCH_SIZE", 500)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)

	fingerprintMode := scanner.FingerprintMode(getEnv("FINGERPRINT_MODE", string(scanner.FingerprintMTime)))
	if fingerprintMode != scanner.FingerprintMTime && fingerprintMode != scanner.FingerprintHash {
		logging.Warn("  Invalid FINGERPRINT_MODE %q, using %q", fingerprintMode, scanner.FingerprintMTime)
		fingerprintMode = scanner.FingerprintMTime
	}

	logging.Info("  MUSIC_DIR:        %s", musicDir)
	logging.Info("  DATABASE_DIR:     %s", databaseDir)
	logging.Info("  CACHE_DIR:        %s", cacheDir)
	logging.Info("  PORT:             %s", port)
	logging.Info("  WATCH_ENABLED:    %v", watchEnabled)
	logging.Info("  WATCH_DEBOUNCE:   %s", watchDebounce)
	logging.Info("  RESCAN_INTERVAL:  %s", durationOrOff(rescanInterval))
	logging.Info("  SCAN_TIMEOUT:     %s", scanTimeout)
	logging.Info("  SCAN_BATCH_SIZE:  %d", scanBatchSize)
	logging.Info("  FINGERPRINT_MODE: %s", fingerprintMode)
	logging.Info("  METRICS_ENABLED:  %v", metricsEnabled)
	logging.Info("  LOG_LEVEL:        %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	var err error
	if musicDir, err = filepath.Abs(musicDir); err != nil {
		return nil, fmt.Errorf("failed to resolve music directory path: %w", err)
	}
	if databaseDir, err = filepath.Abs(databaseDir); err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	if cacheDir, err = filepath.Abs(cacheDir); err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	logging.Info("  Music directory (absolute):    %s", musicDir)
	logging.Info("  Database directory (absolute): %s", databaseDir)
	logging.Info("  Cache directory (absolute):    %s", cacheDir)

	// The music directory only needs to exist by the first scan pass,
	// so a missing one is a warning here, not a fatal error.
	if info, statErr := os.Stat(musicDir); statErr != nil {
		logging.Warn("  Music directory issue: %v", statErr)
	} else if !info.IsDir() {
		logging.Warn("  Music directory %s is not a directory", musicDir)
	}

	if err := os.MkdirAll(databaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	if err := testWriteAccess(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable: %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	config := &Config{
		MusicDir:        musicDir,
		DatabaseDir:     databaseDir,
		CacheDir:        cacheDir,
		Port:            port,
		WatchEnabled:    watchEnabled,
		WatchDebounce:   watchDebounce,
		RescanInterval:  rescanInterval,
		ScanTimeout:     scanTimeout,
		ScanBatchSize:   scanBatchSize,
		FingerprintMode: fingerprintMode,
		MetricsEnabled:  metricsEnabled,
		DatabasePath:    filepath.Join(databaseDir, "library.db"),
		CoverCacheDir:   filepath.Join(cacheDir, "covers"),
	}

	// Cover caching is optional; without a writable cache dir resizes
	// just happen per request.
	if err := os.MkdirAll(config.CoverCacheDir, 0o755); err != nil {
		logging.Warn("  Cover cache directory unavailable: %v", err)
		config.CoverCacheDir = ""
	} else if err := testWriteAccess(config.CoverCacheDir); err != nil {
		logging.Warn("  Cover cache directory is not writable: %v", err)
		config.CoverCacheDir = ""
	}
	logging.Info("  Cover cache: %s", enabledString(config.CoverCacheDir != ""))

	return config, nil
}

func printBanner() {
	logging.Info("============================================================")
	logging.Info("harmonium %s (%s, built %s, %s %s/%s)",
		Version, Commit, BuildTime, GoVersion, runtime.GOOS, runtime.GOARCH)
	logging.Info("============================================================")
}

func durationOrOff(d time.Duration) string {
	if d <= 0 {
		return "off"
	}
	return d.String()
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logging.Warn("  Invalid %s %q, using %v", key, v, def)
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logging.Warn("  Invalid %s %q, using %d", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		logging.Warn("  Invalid %s %q, using %s", key, v, def)
		return def
	}
	return d
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	return os.Remove(testFile)
}

// LogHTTPRoutes logs every registered route at startup.
func LogHTTPRoutes(router *mux.Router) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, m := range methods {
			logging.Info("  %-6s %s", m, path)
		}
		return nil
	})
	if err != nil {
		logging.Warn("  Failed to enumerate routes: %v", err)
	}
}
