package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/pilotlog/internal/common"
	"github.com/dmitrijs2005/pilotlog/internal/server/models"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

func (s *HTTPServer) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, common.ErrorValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrUnknownCollection):
		status, msg = http.StatusNotFound, err.Error()
	default:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	_ = respondJSON(w, status, ErrorResponse{Error: msg})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.sync.Ping(r.Context()); err != nil {
		s.logger.Warn(r.Context(), "health check failed", "error", err)
		_ = respondJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "database unavailable"})
		return
	}
	_ = respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handlePush(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var e models.SyncEntry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", common.ErrorValidation, err))
		return
	}

	ack, err := s.sync.Apply(r.Context(), &e)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	_ = respondJSON(w, http.StatusOK, ack)
}

func (s *HTTPServer) handlePull(w http.ResponseWriter, r *http.Request) {
	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.respondError(w, r, fmt.Errorf("%w: %v", common.ErrorValidation, err))
			return
		}
		since = n
	}

	recs, err := s.sync.Pull(r.Context(), chi.URLParam(r, "collection"), since)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	_ = respondJSON(w, http.StatusOK, models.PullResponse{Records: recs})
}
