package catalog

import (
	"context"
	"database/sql"
	"time"
)

// GetStatus returns the singleton indexing status record.
func (c *Catalog) GetStatus(ctx context.Context) (Status, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_status", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		s          Status
		startedAt  int64
		finishedAt int64
	)
	err = c.db.QueryRowContext(ctx, `
		SELECT phase, started_at, completed_at, last_error, added, updated, removed
		FROM index_status WHERE id = 1`,
	).Scan(&s.Phase, &startedAt, &finishedAt, &s.LastError, &s.Added, &s.Updated, &s.Removed)
	if err != nil {
		return Status{}, err
	}
	if startedAt > 0 {
		s.StartedAt = time.Unix(startedAt, 0)
	}
	if finishedAt > 0 {
		s.CompletedAt = time.Unix(finishedAt, 0)
	}
	return s, nil
}

// SetScanning marks a pass as started. The previous pass's counters
// are kept until the new pass completes.
func (c *Catalog) SetScanning(ctx context.Context, startedAt time.Time) error {
	return c.updateStatus(ctx, "status_scanning", `
		UPDATE index_status SET phase = ?, started_at = ?, last_error = ''
		WHERE id = 1`, string(PhaseScanning), startedAt.Unix())
}

// SetIdle marks a pass as completed successfully with its change
// counters.
func (c *Catalog) SetIdle(ctx context.Context, completedAt time.Time, added, updated, removed int) error {
	return c.updateStatus(ctx, "status_idle", `
		UPDATE index_status SET phase = ?, completed_at = ?, last_error = '',
			added = ?, updated = ?, removed = ?
		WHERE id = 1`, string(PhaseIdle), completedAt.Unix(), added, updated, removed)
}

// SetError marks a pass as failed. The last successful completion time
// is left alone so clients can still tell how stale the index is.
func (c *Catalog) SetError(ctx context.Context, message string) error {
	return c.updateStatus(ctx, "status_error", `
		UPDATE index_status SET phase = ?, last_error = ? WHERE id = 1`,
		string(PhaseError), message)
}

func (c *Catalog) updateStatus(ctx context.Context, op, query string, args ...any) error {
	start := time.Now()
	var err error
	defer func() { recordQuery(op, start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		// The singleton row is created at open; reaching here means the
		// database file was tampered with.
		_, err = c.db.ExecContext(ctx, "INSERT OR IGNORE INTO index_status (id) VALUES (1)")
	}
	return err
}
