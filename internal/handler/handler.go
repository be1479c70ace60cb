// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/credittrack/credittrack/internal/handler/dto"
)

// Version is reported by the banner endpoint.
const Version = "1.0.0"

// Handler serves the root banner and router fallbacks.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// Banner identifies the service.
// GET /
func (h *Handler) Banner(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"message": "credittrack API",
		"version": Version,
	}
	writeJSON(w, http.StatusOK, response)
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Msg: message, Code: code})
}

// readBody reads the request body. It reports false after answering 413 when the
// body limit was exceeded.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Could not read request body")
		return nil, false
	}
	return body, true
}

// decodeLenient decodes body into v. Malformed or empty JSON leaves v at its zero value,
// so a garbage body is reported by field validation rather than as a parse error.
func decodeLenient(body []byte, v any) {
	_ = json.Unmarshal(body, v)
}
