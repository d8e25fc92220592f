package catalog

import (
	"context"
	"database/sql"
	"time"
)

// AllFingerprints returns the full last-seen ledger keyed by path.
func (c *Catalog) AllFingerprints(ctx context.Context) (map[string]Fingerprint, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("all_fingerprints", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, qerr := c.db.QueryContext(ctx,
		"SELECT path, size, mtime_ns, content_hash, tag_error FROM fingerprints")
	if qerr != nil {
		err = qerr
		return nil, err
	}
	defer rows.Close()

	prints := make(map[string]Fingerprint)
	for rows.Next() {
		var f Fingerprint
		if err = rows.Scan(&f.Path, &f.Size, &f.MTimeNS, &f.ContentHash, &f.TagError); err != nil {
			return nil, err
		}
		prints[f.Path] = f
	}
	err = rows.Err()
	return prints, err
}

// UpsertFingerprint records the observed state of one path inside a
// batch transaction.
func (c *Catalog) UpsertFingerprint(tx *sql.Tx, f Fingerprint) error {
	_, err := tx.Exec(`
		INSERT INTO fingerprints (path, size, mtime_ns, content_hash, tag_error)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mtime_ns = excluded.mtime_ns,
			content_hash = excluded.content_hash,
			tag_error = excluded.tag_error`,
		f.Path, f.Size, f.MTimeNS, f.ContentHash, f.TagError)
	return err
}

// DeleteFingerprint removes one path from the ledger inside a batch
// transaction.
func (c *Catalog) DeleteFingerprint(tx *sql.Tx, path string) error {
	_, err := tx.Exec("DELETE FROM fingerprints WHERE path = ?", path)
	return err
}
