package handlers

import (
	"net/http"
	"strings"
)

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "alive"})
}

// ReadinessCheck reports ready once the catalog answers queries. A
// scan in progress does not make the service unready; reads serve the
// previous snapshot throughout.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := h.cat.GetStatus(r.Context()); err != nil {
		writeJSONError(w, "catalog unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]string{"status": "ready"})
}

func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"version": h.version})
}

func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.engine.Status(r.Context())
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, status)
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cat.CountStats(r.Context())
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, stats)
}

// TriggerReindex queues a scan pass. ?full=true forces re-extraction of
// every file regardless of fingerprints.
func (h *Handlers) TriggerReindex(w http.ResponseWriter, r *http.Request) {
	full := strings.EqualFold(r.URL.Query().Get("full"), "true")
	h.engine.RequestScan(full)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]any{"status": "queued", "full": full})
}
