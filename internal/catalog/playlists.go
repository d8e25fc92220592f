package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Playlists and likes are user-authored state. They reference tracks by
// id; when the differ removes a track, the cascade rules drop its
// playlist entries and like alongside it, so these paths never need to
// validate against the scanner.

// CreatePlaylist creates an empty playlist and returns it.
func (c *Catalog) CreatePlaylist(ctx context.Context, name string) (*Playlist, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_playlist", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	p := &Playlist{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	_, err = c.db.ExecContext(ctx,
		"INSERT INTO playlists (id, name, created_at) VALUES (?, ?, ?)",
		p.ID, p.Name, p.CreatedAt.Unix())
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPlaylist returns a playlist with its ordered track ids, or
// ErrNotFound.
func (c *Catalog) GetPlaylist(ctx context.Context, id string) (*Playlist, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_playlist", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		p       Playlist
		created int64
	)
	err = c.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM playlists WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &created)
	if err == sql.ErrNoRows {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(created, 0)

	rows, qerr := c.db.QueryContext(ctx, `
		SELECT track_id FROM playlist_tracks
		WHERE playlist_id = ? ORDER BY position`, id)
	if qerr != nil {
		err = qerr
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var trackID string
		if err = rows.Scan(&trackID); err != nil {
			return nil, err
		}
		p.TrackIDs = append(p.TrackIDs, trackID)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPlaylists returns all playlists, newest first, without their
// track lists.
func (c *Catalog) ListPlaylists(ctx context.Context) ([]Playlist, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_playlists", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, qerr := c.db.QueryContext(ctx,
		"SELECT id, name, created_at FROM playlists ORDER BY created_at DESC, id")
	if qerr != nil {
		err = qerr
		return nil, err
	}
	defer rows.Close()

	var items []Playlist
	for rows.Next() {
		var (
			p       Playlist
			created int64
		)
		if err = rows.Scan(&p.ID, &p.Name, &created); err != nil {
			return nil, err
		}
		p.CreatedAt = time.Unix(created, 0)
		items = append(items, p)
	}
	err = rows.Err()
	return items, err
}

// ReplacePlaylistTracks atomically replaces a playlist's track list.
// Unknown track ids fail the whole call via the foreign key constraint.
func (c *Catalog) ReplacePlaylistTracks(ctx context.Context, id string, trackIDs []string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("replace_playlist_tracks", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, txErr := c.db.BeginTx(ctx, nil)
	if txErr != nil {
		err = txErr
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM playlists WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		err = ErrNotFound
		return err
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM playlist_tracks WHERE playlist_id = ?", id); err != nil {
		return err
	}
	for pos, trackID := range trackIDs {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO playlist_tracks (playlist_id, track_id, position)
			VALUES (?, ?, ?)`, id, trackID, pos); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// RenamePlaylist changes a playlist's name.
func (c *Catalog) RenamePlaylist(ctx context.Context, id, name string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("rename_playlist", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, execErr := c.db.ExecContext(ctx,
		"UPDATE playlists SET name = ? WHERE id = ?", name, id)
	if execErr != nil {
		err = execErr
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
	}
	return err
}

// DeletePlaylist removes a playlist and its entries.
func (c *Catalog) DeletePlaylist(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_playlist", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, execErr := c.db.ExecContext(ctx, "DELETE FROM playlists WHERE id = ?", id)
	if execErr != nil {
		err = execErr
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
	}
	return err
}

// LikeTrack marks a track as liked. Liking twice is a no-op.
func (c *Catalog) LikeTrack(ctx context.Context, trackID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("like_track", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = c.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO likes (track_id, created_at) VALUES (?, ?)",
		trackID, time.Now().Unix())
	return err
}

// UnlikeTrack removes a like. Unliking a track that was not liked is a
// no-op.
func (c *Catalog) UnlikeTrack(ctx context.Context, trackID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("unlike_track", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = c.db.ExecContext(ctx, "DELETE FROM likes WHERE track_id = ?", trackID)
	return err
}

// ListLikedTracks returns liked tracks, most recently liked first.
func (c *Catalog) ListLikedTracks(ctx context.Context) ([]Track, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_liked_tracks", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, qerr := c.db.QueryContext(ctx, `
		SELECT t.id, t.album_id, t.artist_id, t.path, t.title, t.sort_title,
			t.track_no, t.disc_no, t.duration_ms, t.codec, t.sample_rate,
			t.channels, t.bitrate, t.file_size, t.has_cover, t.genres
		FROM likes l JOIN tracks t ON t.id = l.track_id
		ORDER BY l.created_at DESC, t.sort_title`)
	if qerr != nil {
		err = qerr
		return nil, err
	}
	defer rows.Close()

	var items []Track
	for rows.Next() {
		t, serr := scanTrack(rows)
		if serr != nil {
			err = serr
			return nil, err
		}
		items = append(items, t)
	}
	err = rows.Err()
	return items, err
}
