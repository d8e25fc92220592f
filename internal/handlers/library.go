package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"

	"harmonium/internal/catalog"
)

// pagedResponse wraps a list with its unpaginated total.
type pagedResponse struct {
	Items any `json:"items"`
	Total int `json:"total"`
}

func (h *Handlers) ListArtists(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.cat.ListArtists(r.Context(), listOptions(r))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	if items == nil {
		items = []catalog.Artist{}
	}
	writeJSON(w, pagedResponse{Items: items, Total: total})
}

func (h *Handlers) GetArtist(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	artist, err := h.cat.GetArtist(r.Context(), id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	albums, err := h.cat.ListArtistAlbums(r.Context(), id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	if albums == nil {
		albums = []catalog.Album{}
	}

	writeJSON(w, struct {
		catalog.Artist
		Albums []catalog.Album `json:"albums"`
	}{Artist: *artist, Albums: albums})
}

func (h *Handlers) ListAlbums(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.cat.ListAlbums(r.Context(), listOptions(r))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	if items == nil {
		items = []catalog.Album{}
	}
	writeJSON(w, pagedResponse{Items: items, Total: total})
}

func (h *Handlers) GetAlbum(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	album, err := h.cat.GetAlbum(r.Context(), id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	tracks, err := h.cat.ListAlbumTracks(r.Context(), id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	if tracks == nil {
		tracks = []catalog.Track{}
	}

	writeJSON(w, struct {
		catalog.Album
		Tracks []catalog.Track `json:"tracks"`
	}{Album: *album, Tracks: tracks})
}

func (h *Handlers) ListTracks(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.cat.ListTracks(r.Context(), listOptions(r))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	if items == nil {
		items = []catalog.Track{}
	}
	writeJSON(w, pagedResponse{Items: items, Total: total})
}

func (h *Handlers) GetTrack(w http.ResponseWriter, r *http.Request) {
	track, err := h.cat.GetTrack(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, track)
}

// GetStreamInfo returns what a client needs to request playback of a
// track: the resolved filesystem path, container type, size, and decode
// parameters. The path is absolute; the byte transport serving the
// stream has no notion of the music root.
func (h *Handlers) GetStreamInfo(w http.ResponseWriter, r *http.Request) {
	track, err := h.cat.GetTrack(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeCatalogError(w, err)
		return
	}

	writeJSON(w, map[string]any{
		"trackId":    track.ID,
		"path":       filepath.Join(h.musicRoot, filepath.FromSlash(track.Path)),
		"codec":      track.Codec,
		"mimeType":   track.Codec.MimeType(),
		"fileSize":   track.FileSize,
		"durationMs": track.DurationMS,
		"sampleRate": track.SampleRate,
		"channels":   track.Channels,
		"bitrate":    track.Bitrate,
	})
}

// GetAlbumCover serves an album's artwork, resized when ?size= is
// given. Resized variants are always JPEG.
func (h *Handlers) GetAlbumCover(w http.ResponseWriter, r *http.Request) {
	h.serveCover(w, r, mux.Vars(r)["id"])
}

// GetTrackCover serves the artwork of the track's album.
func (h *Handlers) GetTrackCover(w http.ResponseWriter, r *http.Request) {
	track, err := h.cat.GetTrack(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	h.serveCover(w, r, track.AlbumID)
}

func (h *Handlers) serveCover(w http.ResponseWriter, r *http.Request, albumID string) {
	size := queryInt(r, "size", 0)
	if size < 0 || size > 2048 {
		writeJSONError(w, "invalid size", http.StatusBadRequest)
		return
	}

	data, mime, err := h.covers.Cover(r.Context(), albumID, size)
	if err != nil {
		writeCatalogError(w, err)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(data); err != nil {
		// Client went away mid-transfer; nothing actionable.
		return
	}
}
