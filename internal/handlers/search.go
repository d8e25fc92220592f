package handlers

import (
	"net/http"
)

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSONError(w, "query parameter q required", http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	writeJSON(w, h.search.Search(query, limit))
}

// Shuffle returns up to n random distinct track ids for queue seeding.
func (h *Handlers) Shuffle(w http.ResponseWriter, r *http.Request) {
	n := queryInt(r, "n", 100)
	if n < 1 || n > 1000 {
		n = 100
	}

	ids := h.search.Shuffle(n)
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, map[string]any{"trackIds": ids})
}
