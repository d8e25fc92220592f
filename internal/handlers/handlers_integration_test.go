package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"harmonium/internal/catalog"
	"harmonium/internal/covers"
	"harmonium/internal/differ"
	"harmonium/internal/engine"
	"harmonium/internal/scanner"
	"harmonium/internal/search"
)

// stubTags derives tags from the file name so tests control the
// library's shape through the filesystem alone.
type stubTags struct{}

func (stubTags) ReadTags(absPath string) (scanner.TagInfo, error) {
	return scanner.TagInfo{
		Artist: "Indexed Artist",
		Album:  "Indexed Album",
		Title:  filepath.Base(absPath),
	}, nil
}

// setupAPI builds the full stack over a temp music dir with the given
// audio files, runs one scan pass, and returns the router.
func setupAPI(t testing.TB, files ...string) (*mux.Router, *catalog.Catalog) {
	t.Helper()

	musicRoot := t.TempDir()
	for _, rel := range files {
		abs := filepath.Join(musicRoot, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		if err := os.WriteFile(abs, []byte(rel), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	cat, err := catalog.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to open catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	idx := search.New(cat)
	eng := engine.New(engine.Config{
		Catalog: cat,
		Scanner: scanner.New(musicRoot, stubTags{}, scanner.FingerprintMTime),
		Applier: differ.NewApplier(cat, 0),
		OnApplied: func() {
			if err := idx.Refresh(context.Background()); err != nil {
				t.Errorf("Refresh failed: %v", err)
			}
		},
	})
	if err := eng.RunPass(context.Background(), false); err != nil {
		t.Fatalf("Initial pass failed: %v", err)
	}

	cov, err := covers.New(cat, musicRoot, "")
	if err != nil {
		t.Fatalf("Covers service failed: %v", err)
	}

	return New(cat, eng, idx, cov, musicRoot, "test").Router(false), cat
}

func doJSON(t testing.TB, router *mux.Router, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer = bytes.NewBuffer(nil)
	if body != nil {
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			t.Fatalf("encode body failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, reqBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s response failed: %v (body %q)", method, path, err, rec.Body.String())
		}
	}
	return rec
}

func TestListAndGetFlow(t *testing.T) {
	router, _ := setupAPI(t, "a/one.mp3", "a/two.mp3")

	var artists struct {
		Items []catalog.Artist `json:"items"`
		Total int              `json:"total"`
	}
	if rec := doJSON(t, router, "GET", "/api/artists", nil, &artists); rec.Code != http.StatusOK {
		t.Fatalf("GET /api/artists = %d", rec.Code)
	}
	if artists.Total != 1 || len(artists.Items) != 1 {
		t.Fatalf("Artists = %+v, want one", artists)
	}

	var artist struct {
		catalog.Artist
		Albums []catalog.Album `json:"albums"`
	}
	path := "/api/artists/" + artists.Items[0].ID
	if rec := doJSON(t, router, "GET", path, nil, &artist); rec.Code != http.StatusOK {
		t.Fatalf("GET %s = %d", path, rec.Code)
	}
	if len(artist.Albums) != 1 {
		t.Fatalf("Artist albums = %d, want 1", len(artist.Albums))
	}

	var album struct {
		catalog.Album
		Tracks []catalog.Track `json:"tracks"`
	}
	path = "/api/albums/" + artist.Albums[0].ID
	if rec := doJSON(t, router, "GET", path, nil, &album); rec.Code != http.StatusOK {
		t.Fatalf("GET %s = %d", path, rec.Code)
	}
	if len(album.Tracks) != 2 {
		t.Errorf("Album tracks = %d, want 2", len(album.Tracks))
	}
}

func TestGetMissingEntityReturns404(t *testing.T) {
	router, _ := setupAPI(t, "a/one.mp3")

	for _, path := range []string{
		"/api/artists/missing",
		"/api/albums/missing",
		"/api/tracks/missing",
		"/api/playlists/missing",
	} {
		if rec := doJSON(t, router, "GET", path, nil, nil); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rec.Code)
		}
	}
}

func TestStreamInfo(t *testing.T) {
	router, cat := setupAPI(t, "a/one.mp3")

	track, err := cat.GetTrackByPath(context.Background(), "a/one.mp3")
	if err != nil {
		t.Fatalf("GetTrackByPath failed: %v", err)
	}

	var info map[string]any
	rec := doJSON(t, router, "GET", "/api/tracks/"+track.ID+"/stream-info", nil, &info)
	if rec.Code != http.StatusOK {
		t.Fatalf("stream-info = %d", rec.Code)
	}
	if info["mimeType"] != "audio/mpeg" {
		t.Errorf("mimeType = %v, want audio/mpeg", info["mimeType"])
	}
	// The byte transport has no music-root knowledge; the handed-off
	// path must be absolute.
	path, _ := info["path"].(string)
	if !filepath.IsAbs(path) {
		t.Errorf("path = %q, want an absolute path", path)
	}
	if !strings.HasSuffix(path, filepath.Join("a", "one.mp3")) {
		t.Errorf("path = %q, want it to end in the track's relative path", path)
	}
}

func TestSearchEndpoint(t *testing.T) {
	router, _ := setupAPI(t, "a/one.mp3")

	var results search.Results
	if rec := doJSON(t, router, "GET", "/api/search?q=indexed", nil, &results); rec.Code != http.StatusOK {
		t.Fatalf("search = %d", rec.Code)
	}
	if len(results.Artists) != 1 || len(results.Albums) != 1 {
		t.Errorf("Results = %+v, want artist and album hits", results)
	}

	if rec := doJSON(t, router, "GET", "/api/search", nil, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("search without q = %d, want 400", rec.Code)
	}
}

func TestShuffleEndpoint(t *testing.T) {
	router, _ := setupAPI(t, "a/1.mp3", "a/2.mp3", "a/3.mp3")

	var body struct {
		TrackIDs []string `json:"trackIds"`
	}
	if rec := doJSON(t, router, "GET", "/api/shuffle?n=2", nil, &body); rec.Code != http.StatusOK {
		t.Fatalf("shuffle = %d", rec.Code)
	}
	if len(body.TrackIDs) != 2 {
		t.Errorf("Shuffle returned %d ids, want 2", len(body.TrackIDs))
	}
}

func TestPlaylistLifecycle(t *testing.T) {
	router, cat := setupAPI(t, "a/1.mp3", "a/2.mp3")

	var created catalog.Playlist
	rec := doJSON(t, router, "POST", "/api/playlists", map[string]string{"name": "road trip"}, &created)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create playlist = %d", rec.Code)
	}

	t1, _ := cat.GetTrackByPath(context.Background(), "a/1.mp3")
	t2, _ := cat.GetTrackByPath(context.Background(), "a/2.mp3")

	rec = doJSON(t, router, "PUT", "/api/playlists/"+created.ID+"/tracks",
		map[string][]string{"trackIds": {t2.ID, t1.ID}}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("set tracks = %d (%s)", rec.Code, rec.Body.String())
	}

	var got catalog.Playlist
	doJSON(t, router, "GET", "/api/playlists/"+created.ID, nil, &got)
	if len(got.TrackIDs) != 2 || got.TrackIDs[0] != t2.ID {
		t.Errorf("Playlist tracks = %v, want ordered [%s %s]", got.TrackIDs, t2.ID, t1.ID)
	}

	rec = doJSON(t, router, "PUT", "/api/playlists/"+created.ID, map[string]string{"name": "renamed"}, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("rename = %d", rec.Code)
	}

	rec = doJSON(t, router, "DELETE", "/api/playlists/"+created.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("delete = %d", rec.Code)
	}
	rec = doJSON(t, router, "GET", "/api/playlists/"+created.ID, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestCreatePlaylistValidation(t *testing.T) {
	router, _ := setupAPI(t)

	rec := doJSON(t, router, "POST", "/api/playlists", map[string]string{"name": "   "}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank name = %d, want 400", rec.Code)
	}
}

func TestLikesLifecycle(t *testing.T) {
	router, cat := setupAPI(t, "a/1.mp3")

	track, _ := cat.GetTrackByPath(context.Background(), "a/1.mp3")

	if rec := doJSON(t, router, "PUT", "/api/likes/"+track.ID, nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("like = %d", rec.Code)
	}
	if rec := doJSON(t, router, "PUT", "/api/likes/missing", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("like unknown track = %d, want 404", rec.Code)
	}

	var liked []catalog.Track
	doJSON(t, router, "GET", "/api/likes", nil, &liked)
	if len(liked) != 1 || liked[0].ID != track.ID {
		t.Errorf("Likes = %v, want the liked track", liked)
	}

	if rec := doJSON(t, router, "DELETE", "/api/likes/"+track.ID, nil, nil); rec.Code != http.StatusOK {
		t.Errorf("unlike = %d", rec.Code)
	}
	doJSON(t, router, "GET", "/api/likes", nil, &liked)
	if len(liked) != 0 {
		t.Errorf("Likes after unlike = %v, want empty", liked)
	}
}

func TestStatusAndStats(t *testing.T) {
	router, _ := setupAPI(t, "a/1.mp3")

	var status catalog.Status
	if rec := doJSON(t, router, "GET", "/api/status", nil, &status); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if status.Phase != catalog.PhaseIdle {
		t.Errorf("Phase = %q, want idle", status.Phase)
	}

	var stats catalog.Stats
	doJSON(t, router, "GET", "/api/stats", nil, &stats)
	if stats.Tracks != 1 {
		t.Errorf("Stats tracks = %d, want 1", stats.Tracks)
	}
}

func TestReindexAccepted(t *testing.T) {
	router, _ := setupAPI(t)

	rec := doJSON(t, router, "POST", "/api/reindex?full=true", nil, nil)
	if rec.Code != http.StatusAccepted {
		t.Errorf("reindex = %d, want 202", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["full"] != true {
		t.Errorf("full = %v, want true", body["full"])
	}
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := setupAPI(t)

	for _, path := range []string{"/health", "/healthz", "/livez", "/readyz", "/version"} {
		if rec := doJSON(t, router, "GET", path, nil, nil); rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestPaginationParams(t *testing.T) {
	files := make([]string, 30)
	for i := range files {
		files[i] = fmt.Sprintf("a/%02d.mp3", i)
	}
	router, _ := setupAPI(t, files...)

	var page struct {
		Items []catalog.Track `json:"items"`
		Total int             `json:"total"`
	}
	doJSON(t, router, "GET", "/api/tracks?page=2&pageSize=10", nil, &page)
	if page.Total != 30 {
		t.Errorf("Total = %d, want 30", page.Total)
	}
	if len(page.Items) != 10 {
		t.Errorf("Page size = %d, want 10", len(page.Items))
	}
}
