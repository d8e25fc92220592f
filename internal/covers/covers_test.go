package covers

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"harmonium/internal/catalog"
	"harmonium/internal/differ"
	"harmonium/internal/scanner"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode failed: %v", err)
	}
	return buf.Bytes()
}

// setupAlbumWithFolderCover seeds one album whose cover is a folder
// image under the music root, and returns the album id.
func setupAlbumWithFolderCover(t *testing.T, musicRoot string) (*Service, string) {
	t.Helper()

	cat, err := catalog.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to open catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	if err := os.MkdirAll(filepath.Join(musicRoot, "album"), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	coverData := pngBytes(t, 400, 400)
	if err := os.WriteFile(filepath.Join(musicRoot, "album", "cover.png"), coverData, 0o644); err != nil {
		t.Fatalf("write cover failed: %v", err)
	}

	added := scanner.ScannedFile{
		Path:        "album/01.mp3",
		Fingerprint: catalog.Fingerprint{Path: "album/01.mp3", Size: 1, MTimeNS: 1},
		Changed:     true,
		Tags:        &scanner.TagInfo{Artist: "A", Album: "B", Title: "C"},
		FolderCover: "album/cover.png",
	}
	if _, err := differ.NewApplier(cat, 0).Apply(context.Background(), differ.Changes{Added: []scanner.ScannedFile{added}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	albums, _, err := cat.ListAlbums(context.Background(), catalog.ListOptions{})
	if err != nil || len(albums) != 1 {
		t.Fatalf("ListAlbums = %v, %v", albums, err)
	}

	svc, err := New(cat, musicRoot, filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return svc, albums[0].ID
}

func TestCoverFromFolderImage(t *testing.T) {
	musicRoot := t.TempDir()
	svc, albumID := setupAlbumWithFolderCover(t, musicRoot)

	data, mime, err := svc.Cover(context.Background(), albumID, 0)
	if err != nil {
		t.Fatalf("Cover failed: %v", err)
	}
	if mime != "image/png" {
		t.Errorf("MIME = %q, want image/png", mime)
	}
	if len(data) == 0 {
		t.Error("Cover returned no bytes")
	}
}

func TestCoverResizesAndCaches(t *testing.T) {
	musicRoot := t.TempDir()
	svc, albumID := setupAlbumWithFolderCover(t, musicRoot)
	ctx := context.Background()

	data, mime, err := svc.Cover(ctx, albumID, 100)
	if err != nil {
		t.Fatalf("Cover failed: %v", err)
	}
	if mime != "image/jpeg" {
		t.Errorf("MIME = %q, want image/jpeg for resized variant", mime)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Resized cover does not decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() > 100 || b.Dy() > 100 {
		t.Errorf("Resized cover is %dx%d, want within 100x100", b.Dx(), b.Dy())
	}

	// Second request must come from the cache even if the source file
	// disappears.
	if err := os.Remove(filepath.Join(musicRoot, "album", "cover.png")); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, _, err := svc.Cover(ctx, albumID, 100); err != nil {
		t.Errorf("Cached cover fetch failed: %v", err)
	}

	// Invalidation drops the cached variant, exposing the deletion.
	svc.Invalidate(albumID)
	if _, _, err := svc.Cover(ctx, albumID, 100); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Cover after invalidation = %v, want ErrNotFound", err)
	}
}

func TestCoverMissingAlbum(t *testing.T) {
	svc, _ := setupAlbumWithFolderCover(t, t.TempDir())

	if _, _, err := svc.Cover(context.Background(), "missing", 0); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Cover(missing album) = %v, want ErrNotFound", err)
	}
}

func TestLoadFolderImageRejectsTraversal(t *testing.T) {
	svc, _ := setupAlbumWithFolderCover(t, t.TempDir())

	if _, _, err := svc.loadFolderImage("../../etc/passwd"); err == nil {
		t.Error("Traversal path accepted")
	}
	if _, _, err := svc.loadFolderImage("/etc/passwd"); err == nil {
		t.Error("Absolute path accepted")
	}
}
