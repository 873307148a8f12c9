// Package httputil provides shared HTTP utilities for consistent response handling.
package httputil

import (
	"encoding/json"
	"io"
	"net/http"
)

// Content types written by this package.
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

// WriteJSON writes a JSON response with the given status code.
// It sets the Content-Type header to application/json.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteText writes a plain-text body with the given status code. Unlike
// http.Error no trailing newline is appended, so the body is exactly msg.
func WriteText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", ContentTypeText)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

// WriteOK writes a 200 OK response with data.
func WriteOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteAccepted writes a bodiless 202 Accepted response.
func WriteAccepted(w http.ResponseWriter) {
	w.WriteHeader(http.StatusAccepted)
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteBadRequest writes a 400 Bad Request plain-text response.
func WriteBadRequest(w http.ResponseWriter, msg string) {
	WriteText(w, http.StatusBadRequest, msg)
}

// WriteForbidden writes a 403 Forbidden plain-text response.
func WriteForbidden(w http.ResponseWriter, msg string) {
	WriteText(w, http.StatusForbidden, msg)
}

// WriteConflict writes a 409 Conflict plain-text response.
func WriteConflict(w http.ResponseWriter, msg string) {
	WriteText(w, http.StatusConflict, msg)
}
