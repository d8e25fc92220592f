package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"harmonium/internal/catalog"
	"harmonium/internal/covers"
	"harmonium/internal/engine"
	"harmonium/internal/middleware"
	"harmonium/internal/search"
)

// Handlers bundles the API's dependencies. musicRoot anchors the
// absolute paths handed out by the stream-info endpoint.
type Handlers struct {
	cat       *catalog.Catalog
	engine    *engine.Engine
	search    *search.Index
	covers    *covers.Service
	musicRoot string
	version   string
}

func New(cat *catalog.Catalog, eng *engine.Engine, idx *search.Index, cov *covers.Service, musicRoot, version string) *Handlers {
	if abs, err := filepath.Abs(musicRoot); err == nil {
		musicRoot = abs
	}
	return &Handlers{
		cat:       cat,
		engine:    eng,
		search:    idx,
		covers:    cov,
		musicRoot: musicRoot,
		version:   version,
	}
}

// Router builds the full route table with logging and metrics
// middleware attached.
func (h *Handlers) Router(metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logger)
	if metricsEnabled {
		r.Use(middleware.Metrics)
		r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/artists", h.ListArtists).Methods("GET")
	api.HandleFunc("/artists/{id}", h.GetArtist).Methods("GET")
	api.HandleFunc("/albums", h.ListAlbums).Methods("GET")
	api.HandleFunc("/albums/{id}", h.GetAlbum).Methods("GET")
	api.HandleFunc("/albums/{id}/cover", h.GetAlbumCover).Methods("GET")
	api.HandleFunc("/tracks", h.ListTracks).Methods("GET")
	api.HandleFunc("/tracks/{id}", h.GetTrack).Methods("GET")
	api.HandleFunc("/tracks/{id}/stream-info", h.GetStreamInfo).Methods("GET")
	api.HandleFunc("/tracks/{id}/cover", h.GetTrackCover).Methods("GET")

	api.HandleFunc("/search", h.Search).Methods("GET")
	api.HandleFunc("/shuffle", h.Shuffle).Methods("GET")

	api.HandleFunc("/playlists", h.ListPlaylists).Methods("GET")
	api.HandleFunc("/playlists", h.CreatePlaylist).Methods("POST")
	api.HandleFunc("/playlists/{id}", h.GetPlaylist).Methods("GET")
	api.HandleFunc("/playlists/{id}", h.RenamePlaylist).Methods("PUT")
	api.HandleFunc("/playlists/{id}", h.DeletePlaylist).Methods("DELETE")
	api.HandleFunc("/playlists/{id}/tracks", h.SetPlaylistTracks).Methods("PUT")

	api.HandleFunc("/likes", h.ListLikes).Methods("GET")
	api.HandleFunc("/likes/{trackId}", h.LikeTrack).Methods("PUT")
	api.HandleFunc("/likes/{trackId}", h.UnlikeTrack).Methods("DELETE")

	api.HandleFunc("/status", h.GetStatus).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/reindex", h.TriggerReindex).Methods("POST")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, "not found", http.StatusNotFound)
	})

	return r
}
