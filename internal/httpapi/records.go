package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/erauner12/tasksync/internal/model"
	"github.com/erauner12/tasksync/internal/store"
	"github.com/erauner12/tasksync/internal/syncx"
	"github.com/erauner12/tasksync/internal/tracker"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// listResp is one page of records
type listResp struct {
	Items      []model.Record `json:"items"`
	NextCursor *string        `json:"nextCursor,omitempty"`
}

// parseKindParam resolves {kind}, writing 404 for unknown collections
func parseKindParam(w http.ResponseWriter, r *http.Request) (model.Kind, bool) {
	kind, err := model.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, err.Error())
		return "", false
	}
	return kind, true
}

// writeStoreError maps tracker/store errors to responses
func writeStoreError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var ve *store.ValidationError
	switch {
	case tracker.IsNotFound(err):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.As(err, &ve):
		writeError(w, r, http.StatusBadRequest, ve.Error())
	default:
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to " + action)
		writeError(w, r, http.StatusInternalServerError, "failed to "+action)
	}
}

// ListRecords handles GET /v1/{kind}
// Supports ?limit=, ?cursor= and ?includeDeleted=true
func (s *Server) ListRecords(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKindParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit := parseLimit(q.Get("limit"), 100, 500)
	cur, hasCursor := syncx.DecodeCursor(q.Get("cursor"))

	records, err := s.Tracker.List(r.Context(), kind, q.Get("includeDeleted") == "true")
	if err != nil {
		writeStoreError(w, r, err, "list records")
		return
	}

	page := make([]model.Record, 0, limit)
	for _, rec := range records {
		if hasCursor && !cur.Before(rec.CreatedAt, rec.ID) {
			continue
		}
		page = append(page, rec)
		if len(page) == limit {
			break
		}
	}

	resp := listResp{Items: page}
	if len(page) == limit {
		last := page[len(page)-1]
		if id, err := uuid.Parse(last.ID); err == nil {
			next := syncx.EncodeCursor(syncx.Cursor{Ms: last.CreatedAt, UID: id})
			resp.NextCursor = &next
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateRecord handles POST /v1/{kind}
func (s *Server) CreateRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKindParam(w, r)
	if !ok {
		return
	}

	var fields model.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON")
		return
	}

	rec, _, err := s.Tracker.Create(r.Context(), kind, fields)
	if err != nil {
		writeStoreError(w, r, err, "create record")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// GetRecord handles GET /v1/{kind}/{id}
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKindParam(w, r)
	if !ok {
		return
	}

	rec, err := s.Tracker.Get(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, r, err, "get record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateRecord handles PATCH /v1/{kind}/{id}
func (s *Server) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKindParam(w, r)
	if !ok {
		return
	}

	var patch model.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON")
		return
	}

	rec, _, err := s.Tracker.Update(r.Context(), kind, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeStoreError(w, r, err, "update record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /v1/{kind}/{id}
func (s *Server) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKindParam(w, r)
	if !ok {
		return
	}

	if _, err := s.Tracker.Delete(r.Context(), kind, chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, r, err, "delete record")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteRecord handles POST /v1/{kind}/{id}/complete
func (s *Server) CompleteRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKindParam(w, r)
	if !ok {
		return
	}

	rec, _, err := s.Tracker.Complete(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, r, err, "complete record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
