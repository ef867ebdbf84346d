// Package httpapi is the local control API the UI talks to: record CRUD
// through the tracker, plus sync status and queue administration.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/erauner12/tasksync/internal/queue"
	"github.com/erauner12/tasksync/internal/scheduler"
	"github.com/erauner12/tasksync/internal/syncengine"
	"github.com/erauner12/tasksync/internal/tracker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Server holds dependencies for HTTP handlers
type Server struct {
	Tracker   *tracker.Tracker
	Engine    *syncengine.Engine
	Queue     *queue.Queue
	Scheduler *scheduler.Scheduler
}

// errorResp is the body of every non-2xx response
type errorResp struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// writeError writes an error body carrying the request's correlation id
func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, errorResp{Error: msg, CorrelationID: GetCorrelationID(r.Context())})
}

// parseLimit parses a limit query param with default and max
func parseLimit(q string, def, max int) int {
	if q == "" {
		return def
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// Routes creates the HTTP router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(CorrelationMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", s.SyncStatus)
			r.Post("/", s.SyncNow)
			r.Get("/queue", s.ListQueue)
			r.Delete("/queue", s.ClearQueue)
			r.Post("/queue/retry", s.RetryQueue)
		})

		r.Route("/{kind}", func(r chi.Router) {
			r.Get("/", s.ListRecords)
			r.Post("/", s.CreateRecord)
			r.Get("/{id}", s.GetRecord)
			r.Patch("/{id}", s.UpdateRecord)
			r.Delete("/{id}", s.DeleteRecord)
			r.Post("/{id}/complete", s.CompleteRecord)
		})
	})

	log.Info().Msg("HTTP routes registered")
	return r
}
