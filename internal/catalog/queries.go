package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ListOptions controls pagination and filtering for list queries.
// Search is matched as a case-insensitive substring against the
// normalized name/title.
type ListOptions struct {
	Search   string
	Page     int
	PageSize int
}

func (o ListOptions) normalized() (search string, limit, offset int) {
	page := o.Page
	if page < 1 {
		page = 1
	}
	size := o.PageSize
	if size < 1 {
		size = 50
	}
	return NormalizeName(o.Search), size, (page - 1) * size
}

const trackColumns = `id, album_id, artist_id, path, title, sort_title,
	track_no, disc_no, duration_ms, codec, sample_rate, channels, bitrate,
	file_size, has_cover, genres`

// Genres are stored as one semicolon-joined column; splitGenres and its
// inverse in UpsertTrack are the only places aware of the encoding.
func splitGenres(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ";")
}

func scanTrack(row interface{ Scan(...any) error }) (Track, error) {
	var t Track
	var genres string
	err := row.Scan(
		&t.ID, &t.AlbumID, &t.ArtistID, &t.Path, &t.Title, &t.SortTitle,
		&t.TrackNo, &t.DiscNo, &t.DurationMS, &t.Codec, &t.SampleRate,
		&t.Channels, &t.Bitrate, &t.FileSize, &t.HasCover, &genres,
	)
	t.Genres = splitGenres(genres)
	return t, err
}

// GetArtist returns one artist by id, or ErrNotFound.
func (c *Catalog) GetArtist(ctx context.Context, id string) (*Artist, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_artist", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var a Artist
	err = c.db.QueryRowContext(ctx,
		"SELECT id, name, sort_name FROM artists WHERE id = ?", id,
	).Scan(&a.ID, &a.Name, &a.SortName)
	if err == sql.ErrNoRows {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListArtists returns one page of artists ordered by normalized name,
// with the unpaginated total.
func (c *Catalog) ListArtists(ctx context.Context, opts ListOptions) ([]Artist, int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_artists", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	search, limit, offset := opts.normalized()
	pattern := "%" + search + "%"

	var total int
	if err = c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM artists WHERE sort_name LIKE ?", pattern,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, qerr := c.db.QueryContext(ctx, `
		SELECT id, name, sort_name FROM artists
		WHERE sort_name LIKE ?
		ORDER BY sort_name LIMIT ? OFFSET ?`, pattern, limit, offset)
	if qerr != nil {
		err = qerr
		return nil, 0, err
	}
	defer rows.Close()

	var items []Artist
	for rows.Next() {
		var a Artist
		if err = rows.Scan(&a.ID, &a.Name, &a.SortName); err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	err = rows.Err()
	return items, total, err
}

// GetAlbum returns one album by id, or ErrNotFound.
func (c *Catalog) GetAlbum(ctx context.Context, id string) (*Album, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_album", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var a Album
	err = c.db.QueryRowContext(ctx, `
		SELECT id, artist_id, title, sort_title, year, cover_ref
		FROM albums WHERE id = ?`, id,
	).Scan(&a.ID, &a.ArtistID, &a.Title, &a.SortTitle, &a.Year, &a.CoverRef)
	if err == sql.ErrNoRows {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAlbums returns one page of albums ordered by normalized title.
func (c *Catalog) ListAlbums(ctx context.Context, opts ListOptions) ([]Album, int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_albums", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	search, limit, offset := opts.normalized()
	pattern := "%" + search + "%"

	var total int
	if err = c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM albums WHERE sort_title LIKE ?", pattern,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, qerr := c.db.QueryContext(ctx, `
		SELECT id, artist_id, title, sort_title, year, cover_ref
		FROM albums WHERE sort_title LIKE ?
		ORDER BY sort_title LIMIT ? OFFSET ?`, pattern, limit, offset)
	if qerr != nil {
		err = qerr
		return nil, 0, err
	}
	defer rows.Close()

	var items []Album
	for rows.Next() {
		var a Album
		if err = rows.Scan(&a.ID, &a.ArtistID, &a.Title, &a.SortTitle, &a.Year, &a.CoverRef); err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	err = rows.Err()
	return items, total, err
}

// ListArtistAlbums returns an artist's albums ordered by year, then
// normalized title.
func (c *Catalog) ListArtistAlbums(ctx context.Context, artistID string) ([]Album, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_artist_albums", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, qerr := c.db.QueryContext(ctx, `
		SELECT id, artist_id, title, sort_title, year, cover_ref
		FROM albums WHERE artist_id = ?
		ORDER BY year, sort_title`, artistID)
	if qerr != nil {
		err = qerr
		return nil, err
	}
	defer rows.Close()

	var items []Album
	for rows.Next() {
		var a Album
		if err = rows.Scan(&a.ID, &a.ArtistID, &a.Title, &a.SortTitle, &a.Year, &a.CoverRef); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	err = rows.Err()
	return items, err
}

// GetTrack returns one track by id, or ErrNotFound.
func (c *Catalog) GetTrack(ctx context.Context, id string) (*Track, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_track", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	t, serr := scanTrack(c.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM tracks WHERE id = ?", trackColumns), id))
	if serr == sql.ErrNoRows {
		err = ErrNotFound
		return nil, err
	}
	if serr != nil {
		err = serr
		return nil, err
	}
	return &t, nil
}

// GetTrackByPath returns the track at a relative path, or ErrNotFound.
func (c *Catalog) GetTrackByPath(ctx context.Context, path string) (*Track, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_track_by_path", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	t, serr := scanTrack(c.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM tracks WHERE path = ?", trackColumns), path))
	if serr == sql.ErrNoRows {
		err = ErrNotFound
		return nil, err
	}
	if serr != nil {
		err = serr
		return nil, err
	}
	return &t, nil
}

// ListAlbumTracks returns an album's tracks in playback order:
// disc number, track number, title, path.
func (c *Catalog) ListAlbumTracks(ctx context.Context, albumID string) ([]Track, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_album_tracks", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, qerr := c.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM tracks WHERE album_id = ?
		ORDER BY disc_no, track_no, sort_title, path`, trackColumns), albumID)
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

// ListTracks returns one page of tracks ordered by normalized title.
func (c *Catalog) ListTracks(ctx context.Context, opts ListOptions) ([]Track, int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_tracks", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	search, limit, offset := opts.normalized()
	pattern := "%" + search + "%"

	var total int
	if err = c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tracks WHERE sort_title LIKE ?", pattern,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, qerr := c.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM tracks WHERE sort_title LIKE ?
		ORDER BY sort_title LIMIT ? OFFSET ?`, trackColumns), pattern, limit, offset)
	if qerr != nil {
		err = qerr
		return nil, 0, err
	}
	defer rows.Close()

	var items []Track
	for rows.Next() {
		t, serr := scanTrack(rows)
		if serr != nil {
			err = serr
			return nil, 0, err
		}
		items = append(items, t)
	}
	err = rows.Err()
	return items, total, err
}

// AllTrackIDs returns every track id. Used by the search index for
// shuffle sampling.
func (c *Catalog) AllTrackIDs(ctx context.Context) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("all_track_ids", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, qerr := c.db.QueryContext(ctx, "SELECT id FROM tracks")
	if qerr != nil {
		err = qerr
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	return ids, err
}

// CountStats returns aggregate entity counts.
func (c *Catalog) CountStats(ctx context.Context) (Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_stats", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats Stats
	err = c.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM artists),
			(SELECT COUNT(*) FROM albums),
			(SELECT COUNT(*) FROM tracks),
			(SELECT COUNT(*) FROM playlists),
			(SELECT COUNT(*) FROM likes)`,
	).Scan(&stats.Artists, &stats.Albums, &stats.Tracks, &stats.Playlists, &stats.Likes)
	return stats, err
}

// IndexEntry is one row handed to the search index: an artist, album,
// or track title with its normalized form.
type IndexEntry struct {
	Kind string // "artist", "album", "track"
	ID   string
	Name string
	Norm string
}

// AllIndexEntries returns every searchable title in the catalog. One
// call observes a single consistent snapshot.
func (c *Catalog) AllIndexEntries(ctx context.Context) ([]IndexEntry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("all_index_entries", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	// Single statement so the WAL snapshot covers all three tables.
	rows, qerr := c.db.QueryContext(ctx, `
		SELECT 'artist', id, name, sort_name FROM artists
		UNION ALL
		SELECT 'album', id, title, sort_title FROM albums
		UNION ALL
		SELECT 'track', id, title, sort_title FROM tracks`)
	if qerr != nil {
		err = qerr
		return nil, err
	}
	defer rows.Close()

	var entries []IndexEntry
	for rows.Next() {
		var e IndexEntry
		if err = rows.Scan(&e.Kind, &e.ID, &e.Name, &e.Norm); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	err = rows.Err()
	return entries, err
}
