package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alfredjeanlab/quillbooking/internal/model"
)

// maxBodyBytes caps request bodies; field sets and booking forms are small.
const maxBodyBytes = 1 << 20

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty (see ParseOperators), admin requests must
// include a valid Authorization: Bearer <token> header; the guest-facing
// routes are public.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/events/{id}/meta/fields", s.handleGetFields)
	mux.HandleFunc("PUT /v1/events/{id}/meta/fields", s.handleReplaceFields)
	mux.HandleFunc("PATCH /v1/events/{id}/meta/fields", s.handlePatchFields)
	mux.HandleFunc("GET /v1/events/{id}/meta", s.handleGetEventMeta)
	mux.HandleFunc("PUT /v1/events/{id}/meta", s.handleSetEventMeta)
	mux.HandleFunc("GET /v1/events", s.handleListEvents)
	mux.HandleFunc("POST /v1/ajax", s.handleAjax)
	mux.HandleFunc("GET /v1/bookings", s.handleListBookings)
	mux.HandleFunc("GET /v1/bookings/{hash_id}", s.handleGetBooking)
	mux.HandleFunc("POST /v1/bookings/{hash_id}/cancel", s.handleCancelBooking)
	mux.HandleFunc("GET /v1/audit/{subject}", s.handleGetAudit)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return s.metrics.Middleware(AuthMiddleware(ParseOperators(authToken), mux))
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return inputError("invalid JSON body: " + err.Error())
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeValidationError writes a 400 listing every field error.
func writeValidationError(w http.ResponseWriter, ve *model.ValidationError) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":  ve.Error(),
		"fields": ve.Errors,
	})
}

// writeMutationError maps an error from a mutating handler to a response:
// validation and input errors are 400, anything else is 500.
func writeMutationError(w http.ResponseWriter, err error, internal string) {
	var ve *model.ValidationError
	var ie inputError
	switch {
	case errors.As(err, &ve):
		writeValidationError(w, ve)
	case errors.As(err, &ie):
		writeError(w, http.StatusBadRequest, ie.Error())
	default:
		writeError(w, http.StatusInternalServerError, internal)
	}
}
