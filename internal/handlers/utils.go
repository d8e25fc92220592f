package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"harmonium/internal/catalog"
	"harmonium/internal/logging"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Encoding errors are logged since they cannot be recovered mid-response.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status
// code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		logging.Error("failed to encode JSON error: %v", err)
	}
}

// writeCatalogError maps catalog errors to responses: ErrNotFound
// becomes 404, anything else a logged 500.
func writeCatalogError(w http.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSONError(w, "not found", http.StatusNotFound)
		return
	}
	logging.Error("catalog error: %v", err)
	writeJSONError(w, "internal error", http.StatusInternalServerError)
}

// queryInt parses an integer query parameter, returning def when the
// parameter is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// listOptions builds pagination options from search/page/pageSize query
// parameters.
func listOptions(r *http.Request) catalog.ListOptions {
	return catalog.ListOptions{
		Search:   r.URL.Query().Get("search"),
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "pageSize", 50),
	}
}
