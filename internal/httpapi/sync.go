package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/erauner12/tasksync/internal/model"
	"github.com/erauner12/tasksync/internal/syncengine"
	"github.com/rs/zerolog/log"
)

// SyncStatus handles GET /v1/sync/status
func (s *Server) SyncStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.Engine.Status(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to read sync status")
		writeError(w, r, http.StatusInternalServerError, "failed to read sync status")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SyncNow handles POST /v1/sync and waits for the pass to finish
func (s *Server) SyncNow(w http.ResponseWriter, r *http.Request) {
	res, err := s.Engine.SyncAll(r.Context())
	switch {
	case errors.Is(err, syncengine.ErrAuthMissing):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case err != nil:
		log.Ctx(r.Context()).Error().Err(err).Msg("sync run failed")
		writeError(w, r, http.StatusInternalServerError, "sync failed")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// ListQueue handles GET /v1/sync/queue
func (s *Server) ListQueue(w http.ResponseWriter, r *http.Request) {
	ops, err := s.Queue.All(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to read sync queue")
		writeError(w, r, http.StatusInternalServerError, "failed to read sync queue")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]model.Operation{"items": ops})
}

// ClearQueue handles DELETE /v1/sync/queue
func (s *Server) ClearQueue(w http.ResponseWriter, r *http.Request) {
	if err := s.Queue.Clear(r.Context()); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to clear sync queue")
		writeError(w, r, http.StatusInternalServerError, "failed to clear sync queue")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RetryQueue handles POST /v1/sync/queue/retry: exhausted operations go back
// to pending and a background pass is started.
func (s *Server) RetryQueue(w http.ResponseWriter, r *http.Request) {
	n, err := s.Queue.RetryExhausted(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to reset sync queue")
		writeError(w, r, http.StatusInternalServerError, "failed to reset sync queue")
		return
	}
	if n > 0 && s.Scheduler != nil {
		s.Scheduler.Trigger(context.WithoutCancel(r.Context()))
	}
	writeJSON(w, http.StatusOK, map[string]int{"reset": n})
}
