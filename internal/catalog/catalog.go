package catalog

import (
	"context"
	"crypto/md5"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"harmonium/internal/logging"
	"harmonium/internal/metrics"
)

// Default timeout for catalog read operations.
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Catalog is the transactional store for all persisted entities:
// artists, albums, tracks, fingerprints, playlists, likes, and the
// indexing status record. SQLite in WAL mode provides snapshot-isolated
// readers and a single serialized writer; all mutation goes through
// BeginBatch/EndBatch or the short-lived playlist/like write paths.
type Catalog struct {
	db      *sql.DB
	dbPath  string
	mu      sync.RWMutex
	txStart time.Time
}

// Open opens or creates the catalog database at dbPath. The parent
// directory is created if missing; the file itself is the sole durable
// state and can be deleted to force a full rebuild on next start.
func Open(ctx context.Context, dbPath string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	// WAL mode keeps readers on a stable snapshot while the writer
	// commits; busy_timeout prevents "database is locked" errors when
	// a CRUD write lands during a scan commit.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	c := &Catalog{
		db:     db,
		dbPath: dbPath,
	}

	if err := c.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after schema failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	logging.Info("Catalog initialized at %s", dbPath)
	return c, nil
}

func (c *Catalog) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS artists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		sort_name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS albums (
		id TEXT PRIMARY KEY,
		artist_id TEXT NOT NULL REFERENCES artists(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		sort_title TEXT NOT NULL,
		year INTEGER NOT NULL DEFAULT 0,
		cover_ref TEXT NOT NULL DEFAULT '',
		UNIQUE(artist_id, sort_title)
	);

	CREATE INDEX IF NOT EXISTS idx_albums_artist ON albums(artist_id);
	CREATE INDEX IF NOT EXISTS idx_albums_sort ON albums(sort_title);

	CREATE TABLE IF NOT EXISTS tracks (
		id TEXT PRIMARY KEY,
		album_id TEXT NOT NULL REFERENCES albums(id) ON DELETE CASCADE,
		artist_id TEXT NOT NULL REFERENCES artists(id),
		path TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		sort_title TEXT NOT NULL,
		track_no INTEGER NOT NULL DEFAULT 0,
		disc_no INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		codec TEXT NOT NULL DEFAULT '',
		sample_rate INTEGER NOT NULL DEFAULT 0,
		channels INTEGER NOT NULL DEFAULT 0,
		bitrate INTEGER NOT NULL DEFAULT 0,
		file_size INTEGER NOT NULL DEFAULT 0,
		has_cover INTEGER NOT NULL DEFAULT 0,
		genres TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(album_id);
	CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist_id);
	CREATE INDEX IF NOT EXISTS idx_tracks_sort ON tracks(sort_title);

	-- Last-seen ledger consulted by the differ. A path appears here
	-- even when tag extraction failed, so broken files are not
	-- re-parsed every pass.
	CREATE TABLE IF NOT EXISTS fingerprints (
		path TEXT PRIMARY KEY,
		size INTEGER NOT NULL,
		mtime_ns INTEGER NOT NULL,
		content_hash TEXT NOT NULL DEFAULT '',
		tag_error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
		track_id TEXT NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		PRIMARY KEY(playlist_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_playlist_tracks_track ON playlist_tracks(track_id);

	CREATE TABLE IF NOT EXISTS likes (
		track_id TEXT PRIMARY KEY REFERENCES tracks(id) ON DELETE CASCADE,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Singleton indexing status record.
	CREATE TABLE IF NOT EXISTS index_status (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		phase TEXT NOT NULL DEFAULT 'idle',
		started_at INTEGER NOT NULL DEFAULT 0,
		completed_at INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		added INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		removed INTEGER NOT NULL DEFAULT 0,
		generation INTEGER NOT NULL DEFAULT 0
	);

	INSERT OR IGNORE INTO index_status (id) VALUES (1);
	`

	_, err := c.db.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the catalog database file path.
func (c *Catalog) Path() string {
	return c.dbPath
}

// BeginBatch starts a write transaction. The caller must call EndBatch.
// The write lock is held only while the transaction begins; SQLite's
// single-writer rule serializes concurrent batches after that.
func (c *Catalog) BeginBatch() (*sql.Tx, error) {
	c.mu.Lock()
	c.txStart = time.Now()

	// Background context: the transaction's lifetime is bounded by
	// EndBatch, not by a deadline here.
	tx, err := c.db.BeginTx(context.Background(), nil)
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return tx, nil
}

// EndBatch commits the transaction when err is nil, otherwise rolls it
// back and returns the original error.
func (c *Catalog) EndBatch(tx *sql.Tx, err error) error {
	c.mu.RLock()
	txStart := c.txStart
	c.mu.RUnlock()
	duration := time.Since(txStart).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// Generation returns the catalog generation counter, bumped once per
// committed scan pass. Derived structures compare it against their
// cached generation to decide whether to rebuild.
func (c *Catalog) Generation() (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var gen int64
	err := c.db.QueryRow("SELECT generation FROM index_status WHERE id = 1").Scan(&gen)
	return gen, err
}

// BumpGeneration increments the generation counter inside tx. Called by
// the differ on the final chunk of a pass.
func (c *Catalog) BumpGeneration(tx *sql.Tx) error {
	_, err := tx.Exec("UPDATE index_status SET generation = generation + 1 WHERE id = 1")
	return err
}

// StableID derives a deterministic entity id from a key string. Track
// ids key on the relative path, artist ids on the normalized name, so
// unchanged files keep their ids across passes.
func StableID(key string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(key)))
}

// recordQuery records catalog query metrics.
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}
