// Package httpapi exposes the discovery pipeline over a small chi-routed
// HTTP surface: trigger a run and poll its result.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error JSON response, logging 4xx/5xx statuses.
func respondError(w http.ResponseWriter, errorType, message string, status int) {
	if status >= 400 {
		log.Printf("HTTP %d: type=%s message=%s", status, errorType, message)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: errorType, Message: message})
}

// decodeJSON decodes a JSON request body with a size limit and standard
// error handling.
func decodeJSON[T any](r *http.Request, w http.ResponseWriter) (*T, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)

	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid_request", "Invalid request body", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

// requireURLParam validates a required chi URL parameter.
func requireURLParam(r *http.Request, w http.ResponseWriter, name string) (string, bool) {
	value := chi.URLParam(r, name)
	if value == "" {
		respondError(w, "invalid_request", name+" is required", http.StatusBadRequest)
		return "", false
	}
	return value, true
}
