// ABOUTME: Structured error responses with machine-readable codes so clients
// ABOUTME: can distinguish "log in" from "you lack access" from "slow down".
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Machine-readable error codes surfaced in JSON error bodies.
const (
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
)

// errorBody is the JSON shape of every non-2xx response from the chi handlers.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a structured JSON error with the given HTTP status.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorBody{Code: code, Message: message}); err != nil {
		slog.Error("writeError: encode failed", "error", err)
	}
}

// writeUnauthorized writes the canonical 401 body.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// writeForbidden writes the canonical 403 body.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, CodeForbidden, message)
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON: encode failed", "error", err)
	}
}
