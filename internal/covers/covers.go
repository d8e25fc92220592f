// Package covers resolves album artwork. A cover lives either inside a
// track's tags or as a folder image next to the audio files; resized
// variants are cached on disk so repeated requests skip the decode.
package covers

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/disintegration/imaging"

	"harmonium/internal/catalog"
	"harmonium/internal/logging"
)

// Service loads and resizes album covers.
type Service struct {
	cat       *catalog.Catalog
	musicRoot string
	cacheDir  string
}

// New creates a cover service. cacheDir is created if missing; an empty
// cacheDir disables resized-variant caching.
func New(cat *catalog.Catalog, musicRoot, cacheDir string) (*Service, error) {
	if cacheDir != "" {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cover cache: %w", err)
		}
	}
	return &Service{cat: cat, musicRoot: musicRoot, cacheDir: cacheDir}, nil
}

// Cover returns the cover image for an album, optionally resized to fit
// a size x size box. Returns catalog.ErrNotFound when the album does
// not exist or has no artwork.
func (s *Service) Cover(ctx context.Context, albumID string, size int) ([]byte, string, error) {
	album, err := s.cat.GetAlbum(ctx, albumID)
	if err != nil {
		return nil, "", err
	}
	if album.CoverRef == "" {
		return nil, "", catalog.ErrNotFound
	}

	if size > 0 {
		if data, ok := s.readCache(albumID, size); ok {
			return data, "image/jpeg", nil
		}
	}

	raw, mime, err := s.loadRaw(ctx, album.CoverRef)
	if err != nil {
		return nil, "", err
	}
	if size <= 0 {
		return raw, mime, nil
	}

	resized, err := resize(raw, size)
	if err != nil {
		// A cover that will not decode is still a cover; serve it as-is.
		logging.Warn("Cover resize failed for album %s: %v", albumID, err)
		return raw, mime, nil
	}
	s.writeCache(albumID, size, resized)
	return resized, "image/jpeg", nil
}

// loadRaw fetches the original cover bytes for a cover reference.
func (s *Service) loadRaw(ctx context.Context, coverRef string) ([]byte, string, error) {
	switch {
	case strings.HasPrefix(coverRef, catalog.CoverRefEmbeddedPrefix):
		trackID := strings.TrimPrefix(coverRef, catalog.CoverRefEmbeddedPrefix)
		return s.loadEmbedded(ctx, trackID)
	case strings.HasPrefix(coverRef, catalog.CoverRefFilePrefix):
		rel := strings.TrimPrefix(coverRef, catalog.CoverRefFilePrefix)
		return s.loadFolderImage(rel)
	default:
		return nil, "", fmt.Errorf("malformed cover reference %q", coverRef)
	}
}

func (s *Service) loadEmbedded(ctx context.Context, trackID string) ([]byte, string, error) {
	track, err := s.cat.GetTrack(ctx, trackID)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(filepath.Join(s.musicRoot, filepath.FromSlash(track.Path)))
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return nil, "", fmt.Errorf("tag read: %w", err)
	}
	pic := meta.Picture()
	if pic == nil {
		return nil, "", catalog.ErrNotFound
	}
	mime := pic.MIMEType
	if mime == "" {
		mime = http.DetectContentType(pic.Data)
	}
	return pic.Data, mime, nil
}

func (s *Service) loadFolderImage(rel string) ([]byte, string, error) {
	// The reference came from the scanner's walk, but validate anyway
	// so a corrupted database cannot read outside the music root.
	clean := filepath.Clean(filepath.FromSlash(rel))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, "", fmt.Errorf("cover path %q escapes music root", rel)
	}

	data, err := os.ReadFile(filepath.Join(s.musicRoot, clean))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", catalog.ErrNotFound
		}
		return nil, "", err
	}
	return data, http.DetectContentType(data), nil
}

func resize(raw []byte, size int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	fitted := imaging.Fit(img, size, size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, fitted, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Service) cachePath(albumID string, size int) string {
	return filepath.Join(s.cacheDir, fmt.Sprintf("%s-%d.jpg", albumID, size))
}

func (s *Service) readCache(albumID string, size int) ([]byte, bool) {
	if s.cacheDir == "" {
		return nil, false
	}
	data, err := os.ReadFile(s.cachePath(albumID, size))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *Service) writeCache(albumID string, size int, data []byte) {
	if s.cacheDir == "" {
		return
	}
	// Write-then-rename keeps concurrent readers off partial files.
	tmp := s.cachePath(albumID, size) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		logging.Warn("Cover cache write failed: %v", err)
		return
	}
	if err := os.Rename(tmp, s.cachePath(albumID, size)); err != nil {
		logging.Warn("Cover cache rename failed: %v", err)
	}
}

// Invalidate drops cached variants for an album, called when a pass
// changes its cover reference.
func (s *Service) Invalidate(albumID string) {
	if s.cacheDir == "" {
		return
	}
	matches, err := filepath.Glob(filepath.Join(s.cacheDir, albumID+"-*.jpg"))
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			logging.Warn("Cover cache invalidation failed for %s: %v", m, err)
		}
	}
}
