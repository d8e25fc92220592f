// Package differ reconciles scan observations against the catalog. It
// classifies files as added, updated, or removed, resolves artist and
// album identities from tags, and applies the changes in bounded
// batches so readers only ever see committed chunks.
package differ

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"

	"harmonium/internal/audiotypes"
	"harmonium/internal/catalog"
	"harmonium/internal/logging"
	"harmonium/internal/metrics"
	"harmonium/internal/scanner"
)

// Fallback names for files whose tags are missing the field entirely.
const (
	unknownArtist = "Unknown Artist"
	unknownAlbum  = "Unknown Album"
)

// Changes is the classified outcome of one scan pass. The three sets
// are disjoint: a path appears in exactly one of them, or in none when
// the file is unchanged.
type Changes struct {
	Added   []scanner.ScannedFile
	Updated []scanner.ScannedFile
	Removed []string // paths present in the ledger but gone from disk
}

// Counts summarizes an applied pass.
type Counts struct {
	Added   int
	Updated int
	Removed int
}

func (c Counts) Total() int { return c.Added + c.Updated + c.Removed }

// Diff classifies scan results against the fingerprint ledger. known
// must be the same ledger snapshot the scanner was given, so the two
// agree on what "changed" means.
func Diff(results []scanner.ScannedFile, known map[string]catalog.Fingerprint) Changes {
	var changes Changes

	seen := make(map[string]bool, len(results))
	for _, r := range results {
		seen[r.Path] = true
		if !r.Changed {
			continue
		}
		if _, existed := known[r.Path]; existed {
			changes.Updated = append(changes.Updated, r)
		} else {
			changes.Added = append(changes.Added, r)
		}
	}

	for path := range known {
		if !seen[path] {
			changes.Removed = append(changes.Removed, path)
		}
	}

	return changes
}

// CoverCache drops cached artwork for an album whose tracks changed.
// Satisfied by the covers service; nil disables invalidation.
type CoverCache interface {
	Invalidate(albumID string)
}

// Applier writes classified changes into the catalog in chunks.
type Applier struct {
	cat       *catalog.Catalog
	batchSize int
	covers    CoverCache
}

// NewApplier creates an applier committing at most batchSize operations
// per transaction. batchSize <= 0 selects the default of 500.
func NewApplier(cat *catalog.Catalog, batchSize int) *Applier {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Applier{cat: cat, batchSize: batchSize}
}

// SetCoverCache wires cached-artwork invalidation into the apply phase.
func (a *Applier) SetCoverCache(cc CoverCache) {
	a.covers = cc
}

// op is one pending catalog mutation.
type op struct {
	file    *scanner.ScannedFile // nil for removals
	removed string
}

// Apply writes the changes. Each chunk commits independently; a failure
// leaves earlier chunks durable and the ledger consistent with them,
// so the next pass simply picks up the remainder. The generation
// counter bumps with the final chunk.
func (a *Applier) Apply(ctx context.Context, changes Changes) (Counts, error) {
	var ops []op
	for i := range changes.Added {
		ops = append(ops, op{file: &changes.Added[i]})
	}
	for i := range changes.Updated {
		ops = append(ops, op{file: &changes.Updated[i]})
	}
	for _, path := range changes.Removed {
		ops = append(ops, op{removed: path})
	}

	counts := Counts{
		Added:   len(changes.Added),
		Updated: len(changes.Updated),
		Removed: len(changes.Removed),
	}

	if len(ops) == 0 {
		// Nothing changed; leave the generation alone so derived
		// structures skip their rebuild.
		return counts, nil
	}

	// Albums these paths belonged to before the pass; their cached
	// artwork is stale once the pass commits.
	staleAlbums := a.affectedAlbums(ctx, changes)

	for start := 0; start < len(ops); start += a.batchSize {
		end := start + a.batchSize
		if end > len(ops) {
			end = len(ops)
		}
		final := end == len(ops)

		if err := ctx.Err(); err != nil {
			return counts, err
		}
		if err := a.applyChunk(ops[start:end], final); err != nil {
			return counts, err
		}
	}

	if a.covers != nil {
		for id := range staleAlbums {
			a.covers.Invalidate(id)
		}
	}

	metrics.ScanChangesApplied.WithLabelValues("added").Add(float64(counts.Added))
	metrics.ScanChangesApplied.WithLabelValues("updated").Add(float64(counts.Updated))
	metrics.ScanChangesApplied.WithLabelValues("removed").Add(float64(counts.Removed))

	logging.Info("Applied %d changes (%d added, %d updated, %d removed)",
		counts.Total(), counts.Added, counts.Updated, counts.Removed)
	return counts, nil
}

// affectedAlbums collects the album ids of the changed paths, on both
// sides of the change: the album each path belonged to before the pass
// and the album it resolves into now. Best effort; a miss only means a
// cold cover cache entry.
func (a *Applier) affectedAlbums(ctx context.Context, changes Changes) map[string]bool {
	if a.covers == nil {
		return nil
	}

	albums := make(map[string]bool)
	previous := func(path string) {
		if t, err := a.cat.GetTrackByPath(ctx, path); err == nil {
			albums[t.AlbumID] = true
		}
	}
	for _, path := range changes.Removed {
		previous(path)
	}
	for i := range changes.Updated {
		previous(changes.Updated[i].Path)
	}
	for _, set := range [][]scanner.ScannedFile{changes.Added, changes.Updated} {
		for i := range set {
			if set[i].Tags == nil {
				continue
			}
			_, album, _ := Resolve(&set[i])
			albums[album.ID] = true
		}
	}
	return albums
}

func (a *Applier) applyChunk(ops []op, final bool) error {
	tx, err := a.cat.BeginBatch()
	if err != nil {
		return err
	}

	for _, o := range ops {
		if err != nil {
			break
		}
		if o.removed != "" {
			if err = a.cat.DeleteTrackByPath(tx, o.removed); err == nil {
				err = a.cat.DeleteFingerprint(tx, o.removed)
			}
			continue
		}
		err = a.applyFile(tx, o.file)
	}

	if err == nil && final {
		// Retags can strand an emptied album or artist even without
		// removals, so pruning is not gated on the removed set.
		if err = a.cat.PruneEmpty(tx); err == nil {
			err = a.cat.BumpGeneration(tx)
		}
	}

	return a.cat.EndBatch(tx, err)
}

// applyFile upserts one changed file. Files whose tag extraction failed
// are dropped from the index but keep their ledger entry, so they are
// not retried until the file itself changes again.
func (a *Applier) applyFile(tx *sql.Tx, f *scanner.ScannedFile) error {
	if f.Tags == nil {
		if err := a.cat.DeleteTrackByPath(tx, f.Path); err != nil {
			return err
		}
		return a.cat.UpsertFingerprint(tx, f.Fingerprint)
	}

	artist, album, track := Resolve(f)
	if err := a.cat.UpsertArtist(tx, artist); err != nil {
		return err
	}
	if err := a.cat.UpsertAlbum(tx, album); err != nil {
		return err
	}
	if err := a.cat.UpsertTrack(tx, track); err != nil {
		return err
	}
	return a.cat.UpsertFingerprint(tx, f.Fingerprint)
}

// Resolve derives the catalog entities for one scanned file. Identity
// is tag-driven: the album artist (falling back to the track artist)
// names the artist, and albums dedupe on the artist plus the normalized
// album title, so directory layout never splits an album. Track ids key
// on the relative path and survive unchanged passes.
func Resolve(f *scanner.ScannedFile) (catalog.Artist, catalog.Album, catalog.Track) {
	tags := f.Tags

	artistName := tags.AlbumArtist
	if artistName == "" {
		artistName = tags.Artist
	}
	if artistName == "" {
		artistName = unknownArtist
	}
	artistSort := catalog.NormalizeName(artistName)
	artist := catalog.Artist{
		ID:       catalog.StableID(artistSort),
		Name:     artistName,
		SortName: artistSort,
	}

	albumTitle := tags.Album
	if albumTitle == "" {
		albumTitle = unknownAlbum
	}
	albumSort := catalog.NormalizeName(albumTitle)
	album := catalog.Album{
		ID:        catalog.StableID(artist.ID + "/" + albumSort),
		ArtistID:  artist.ID,
		Title:     albumTitle,
		SortTitle: albumSort,
		Year:      tags.Year,
	}

	title := tags.Title
	if title == "" {
		base := filepath.Base(f.Path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	track := catalog.Track{
		ID:         catalog.StableID(f.Path),
		AlbumID:    album.ID,
		ArtistID:   artist.ID,
		Path:       f.Path,
		Title:      title,
		SortTitle:  catalog.NormalizeName(title),
		TrackNo:    tags.TrackNo,
		DiscNo:     tags.DiscNo,
		DurationMS: tags.DurationMS,
		Codec:      audiotypes.CodecForPath(f.Path),
		SampleRate: tags.SampleRate,
		Channels:   tags.Channels,
		Bitrate:    tags.Bitrate,
		FileSize:   f.Fingerprint.Size,
		HasCover:   tags.HasCover || f.FolderCover != "",
		Genres:     tags.Genres,
	}

	// An embedded picture beats a folder image; the folder image beats
	// nothing.
	if tags.HasCover {
		album.CoverRef = catalog.CoverRefEmbeddedPrefix + track.ID
	} else if f.FolderCover != "" {
		album.CoverRef = catalog.CoverRefFilePrefix + f.FolderCover
	}

	return artist, album, track
}
