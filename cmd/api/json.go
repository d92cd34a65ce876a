package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/farxc/dsd_reconciler/internal/cache"
	"github.com/farxc/dsd_reconciler/internal/extraction"
	"github.com/farxc/dsd_reconciler/internal/reconcile"
	"github.com/farxc/dsd_reconciler/internal/response"
	"github.com/farxc/dsd_reconciler/internal/store"
	"github.com/go-chi/chi/v5/middleware"
)

const maxJSONBytes = 1_048_576 // 1 MB

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")

	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) error {
	return writeJSON(w, status, &response.ErrorResponse{Error: message})
}

func writeOK[T any](w http.ResponseWriter, status int, message string, data T) {
	writeJSON(w, status, &response.APIResponse[T]{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func readJSON(w http.ResponseWriter, r *http.Request, data any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	return json.NewDecoder(r.Body).Decode(data)
}

// writeError maps domain errors onto status codes.
func (app *application) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *reconcile.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, &response.ErrorResponse{Error: ve.Error(), Fields: ve.Fields})
	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	case extraction.IsUpstream(err):
		app.logger.Warn("HTTP", "extraction failed: request_id=%s err=%v", middleware.GetReqID(r.Context()), err)
		writeJSONError(w, http.StatusBadGateway, "extraction_failed: "+err.Error())
	case errors.Is(err, cache.ErrLocked):
		writeJSONError(w, http.StatusConflict, err.Error())
	default:
		app.logger.Error("HTTP", "%s %s failed: request_id=%s err=%v", r.Method, r.URL.Path, middleware.GetReqID(r.Context()), err)
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}
