// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package indices

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// IndexStatus is the JSON view of one index.
type IndexStatus struct {
	Name    string    `json:"name"`
	UUID    string    `json:"uuid"`
	Created time.Time `json:"created"`
}

func statusOf(idx *Index) IndexStatus {
	return IndexStatus{Name: idx.name, UUID: idx.uuid, Created: idx.created}
}

// Routes returns the admin endpoints for s keyed by ServeMux pattern:
//
//	GET    /indices         list every index
//	PUT    /indices/{name}  create an index and notify observers
//	DELETE /indices/{name}  run removal listeners, then delete
func Routes(s *Service) map[string]http.Handler {
	return map[string]http.Handler{
		"GET /indices":           http.HandlerFunc(s.handleList),
		"PUT /indices/{name}":    http.HandlerFunc(s.handleCreate),
		"DELETE /indices/{name}": http.HandlerFunc(s.handleDelete),
	}
}

func (s *Service) handleList(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	out := make([]IndexStatus, 0, len(s.indices))
	for _, idx := range s.indices {
		out = append(out, statusOf(idx))
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b IndexStatus) int { return strings.Compare(a.Name, b.Name) })
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	idx, err := s.Create(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, statusOf(idx))
}

func (s *Service) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.Delete(r.Context(), r.PathValue("name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidName):
		code = http.StatusBadRequest
	case errors.Is(err, ErrIndexExists):
		code = http.StatusConflict
	case errors.Is(err, ErrIndexNotFound):
		code = http.StatusNotFound
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		slog.Error("encode index response", "error", err)
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	//nolint:errcheck // client may disconnect
	w.Write(body)
}
