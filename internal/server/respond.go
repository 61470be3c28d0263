package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"macro-tracker-api/internal/backup"
	"macro-tracker-api/internal/nutrition"
	"macro-tracker-api/internal/store"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// fail maps err to a status code; anything unrecognised is logged and
// reported as a 500 without its detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *nutrition.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, store.ErrInvalid):
		writeErr(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrNotFound):
		writeErr(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrConflict):
		writeErr(w, http.StatusConflict, err)
	case errors.Is(err, backup.ErrDisabled):
		writeErr(w, http.StatusServiceUnavailable, err)
	default:
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", w.Header().Get(requestIDHeader)),
			zap.Error(err))
		writeErr(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &nutrition.ValidationError{Field: "body", Reason: "is not valid JSON: " + err.Error()}
	}
	return nil
}

// decodeOptional is decode for endpoints whose body may be empty.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &nutrition.ValidationError{Field: "body", Reason: "is not valid JSON: " + err.Error()}
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, &nutrition.ValidationError{Field: "id", Reason: "must be a positive integer"}
	}
	return id, nil
}
