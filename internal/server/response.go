package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"procodus.dev/carewatch/internal/store"
)

// envelope is the JSON response shape shared by every endpoint:
// {"success": bool, "message"?: string, ...payload}.
type envelope map[string]any

// writeSuccess writes a 200 response with success=true merged into payload.
func (s *Server) writeSuccess(w http.ResponseWriter, payload envelope) {
	body := envelope{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	s.writeJSON(w, http.StatusOK, body)
}

// writeError maps a store error to its HTTP status and writes the failure
// envelope. Unknown errors come out as 500 without leaking internals.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, store.ErrPersistence):
		status = http.StatusInternalServerError
	default:
		s.logger.Error("unexpected handler error", "error", err)
		s.writeJSON(w, status, envelope{"success": false, "message": "internal server error"})
		return
	}
	s.writeJSON(w, status, envelope{"success": false, "message": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to write JSON response", "error", err)
	}
}

// decodeBody parses a JSON request body into dst. Any parse failure is a
// validation error for the caller.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", store.ErrValidation)
	}
	return nil
}
