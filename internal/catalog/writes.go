package catalog

import (
	"database/sql"
	"strings"
)

// Write helpers used by the differ's apply phase. All of them run
// inside a batch transaction obtained from BeginBatch.

// UpsertArtist inserts or refreshes an artist row.
func (c *Catalog) UpsertArtist(tx *sql.Tx, a Artist) error {
	_, err := tx.Exec(`
		INSERT INTO artists (id, name, sort_name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		a.ID, a.Name, a.SortName)
	return err
}

// UpsertAlbum inserts or refreshes an album row. Year and cover are
// only overwritten by a non-empty incoming value, so the first track
// that carried them wins until a better one shows up.
func (c *Catalog) UpsertAlbum(tx *sql.Tx, a Album) error {
	_, err := tx.Exec(`
		INSERT INTO albums (id, artist_id, title, sort_title, year, cover_ref)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			year = CASE WHEN excluded.year != 0 THEN excluded.year ELSE albums.year END,
			cover_ref = CASE WHEN excluded.cover_ref != '' THEN excluded.cover_ref ELSE albums.cover_ref END`,
		a.ID, a.ArtistID, a.Title, a.SortTitle, a.Year, a.CoverRef)
	return err
}

// UpsertTrack inserts or refreshes a track row. The path's unique
// constraint is resolved in favor of the incoming row so a retagged
// file moves cleanly between albums.
func (c *Catalog) UpsertTrack(tx *sql.Tx, t Track) error {
	_, err := tx.Exec(`
		INSERT INTO tracks (id, album_id, artist_id, path, title, sort_title,
			track_no, disc_no, duration_ms, codec, sample_rate, channels,
			bitrate, file_size, has_cover, genres)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			id = excluded.id,
			album_id = excluded.album_id,
			artist_id = excluded.artist_id,
			title = excluded.title,
			sort_title = excluded.sort_title,
			track_no = excluded.track_no,
			disc_no = excluded.disc_no,
			duration_ms = excluded.duration_ms,
			codec = excluded.codec,
			sample_rate = excluded.sample_rate,
			channels = excluded.channels,
			bitrate = excluded.bitrate,
			file_size = excluded.file_size,
			has_cover = excluded.has_cover,
			genres = excluded.genres`,
		t.ID, t.AlbumID, t.ArtistID, t.Path, t.Title, t.SortTitle,
		t.TrackNo, t.DiscNo, t.DurationMS, string(t.Codec), t.SampleRate,
		t.Channels, t.Bitrate, t.FileSize, t.HasCover, strings.Join(t.Genres, ";"))
	return err
}

// DeleteTrackByPath removes the track at a path. Playlist entries and
// likes referencing it go with it via the cascade rules.
func (c *Catalog) DeleteTrackByPath(tx *sql.Tx, path string) error {
	_, err := tx.Exec("DELETE FROM tracks WHERE path = ?", path)
	return err
}

// PruneEmpty deletes albums with no tracks, then artists with no
// albums. Run once on the final chunk of every apply; retags move
// tracks between albums without any removal.
func (c *Catalog) PruneEmpty(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		DELETE FROM albums WHERE NOT EXISTS
			(SELECT 1 FROM tracks WHERE tracks.album_id = albums.id)`); err != nil {
		return err
	}
	_, err := tx.Exec(`
		DELETE FROM artists WHERE NOT EXISTS
			(SELECT 1 FROM albums WHERE albums.artist_id = artists.id)`)
	return err
}
