package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"harmonium/internal/catalog"
)

const maxPlaylistNameLen = 255

func (h *Handlers) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	items, err := h.cat.ListPlaylists(r.Context())
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	if items == nil {
		items = []catalog.Playlist{}
	}
	writeJSON(w, items)
}

func (h *Handlers) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" || len(body.Name) > maxPlaylistNameLen {
		writeJSONError(w, "playlist name required", http.StatusBadRequest)
		return
	}

	playlist, err := h.cat.CreatePlaylist(r.Context(), body.Name)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, playlist)
}

func (h *Handlers) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.cat.GetPlaylist(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	if playlist.TrackIDs == nil {
		playlist.TrackIDs = []string{}
	}
	writeJSON(w, playlist)
}

func (h *Handlers) RenamePlaylist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" || len(body.Name) > maxPlaylistNameLen {
		writeJSONError(w, "playlist name required", http.StatusBadRequest)
		return
	}

	if err := h.cat.RenamePlaylist(r.Context(), mux.Vars(r)["id"], body.Name); err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := h.cat.DeletePlaylist(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) SetPlaylistTracks(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TrackIDs []string `json:"trackIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := h.cat.ReplacePlaylistTracks(r.Context(), mux.Vars(r)["id"], body.TrackIDs); err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) ListLikes(w http.ResponseWriter, r *http.Request) {
	items, err := h.cat.ListLikedTracks(r.Context())
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	if items == nil {
		items = []catalog.Track{}
	}
	writeJSON(w, items)
}

func (h *Handlers) LikeTrack(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["trackId"]

	// Liking an unknown track is a client error, not a silent no-op.
	if _, err := h.cat.GetTrack(r.Context(), trackID); err != nil {
		writeCatalogError(w, err)
		return
	}
	if err := h.cat.LikeTrack(r.Context(), trackID); err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) UnlikeTrack(w http.ResponseWriter, r *http.Request) {
	if err := h.cat.UnlikeTrack(r.Context(), mux.Vars(r)["trackId"]); err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
