package startup

import (
	"path/filepath"
	"testing"
	"time"
)

func setDirs(t *testing.T) {
	t.Helper()
	t.Setenv("MUSIC_DIR", t.TempDir())
	t.Setenv("DATABASE_DIR", t.TempDir())
	t.Setenv("CACHE_DIR", t.TempDir())
}

func TestLoadConfigDefaults(t *testing.T) {
	setDirs(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if !cfg.WatchEnabled {
		t.Error("WatchEnabled = false, want default true")
	}
	if cfg.WatchDebounce != 2*time.Second {
		t.Errorf("WatchDebounce = %s, want 2s", cfg.WatchDebounce)
	}
	if cfg.ScanTimeout != 30*time.Minute {
		t.Errorf("ScanTimeout = %s, want 30m", cfg.ScanTimeout)
	}
	if cfg.ScanBatchSize != 500 {
		t.Errorf("ScanBatchSize = %d, want 500", cfg.ScanBatchSize)
	}
	if cfg.FingerprintMode != "mtime" {
		t.Errorf("FingerprintMode = %q, want mtime", cfg.FingerprintMode)
	}
	if cfg.DatabasePath != filepath.Join(cfg.DatabaseDir, "library.db") {
		t.Errorf("DatabasePath = %q, want under database dir", cfg.DatabasePath)
	}
	if cfg.CoverCacheDir == "" {
		t.Error("CoverCacheDir empty, want enabled with writable cache dir")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setDirs(t)
	t.Setenv("PORT", "9999")
	t.Setenv("WATCH_ENABLED", "false")
	t.Setenv("WATCH_DEBOUNCE", "500ms")
	t.Setenv("SCAN_TIMEOUT", "5m")
	t.Setenv("SCAN_BATCH_SIZE", "50")
	t.Setenv("FINGERPRINT_MODE", "hash")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Port != "9999" {
		t.Errorf("Port = %q, want 9999", cfg.Port)
	}
	if cfg.WatchEnabled {
		t.Error("WatchEnabled = true, want false")
	}
	if cfg.WatchDebounce != 500*time.Millisecond {
		t.Errorf("WatchDebounce = %s, want 500ms", cfg.WatchDebounce)
	}
	if cfg.ScanTimeout != 5*time.Minute {
		t.Errorf("ScanTimeout = %s, want 5m", cfg.ScanTimeout)
	}
	if cfg.ScanBatchSize != 50 {
		t.Errorf("ScanBatchSize = %d, want 50", cfg.ScanBatchSize)
	}
	if cfg.FingerprintMode != "hash" {
		t.Errorf("FingerprintMode = %q, want hash", cfg.FingerprintMode)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	setDirs(t)
	t.Setenv("WATCH_DEBOUNCE", "not-a-duration")
	t.Setenv("SCAN_BATCH_SIZE", "-5")
	t.Setenv("FINGERPRINT_MODE", "quantum")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.WatchDebounce != 2*time.Second {
		t.Errorf("WatchDebounce = %s, want default on parse error", cfg.WatchDebounce)
	}
	if cfg.ScanBatchSize != 500 {
		t.Errorf("ScanBatchSize = %d, want default on bad value", cfg.ScanBatchSize)
	}
	if cfg.FingerprintMode != "mtime" {
		t.Errorf("FingerprintMode = %q, want default on bad value", cfg.FingerprintMode)
	}
}

func TestLoadConfigFailsOnUnwritableDatabaseDir(t *testing.T) {
	setDirs(t)
	t.Setenv("DATABASE_DIR", "/proc/definitely-not-writable")

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig succeeded with unwritable database dir")
	}
}
