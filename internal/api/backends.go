package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/qexec/internal/backend"
)

// handleListBackends lists backends, optionally filtered by ?local= and
// ?simulator=.
func (s *Server) handleListBackends(w http.ResponseWriter, r *http.Request) {
	var filters []backend.Filter
	for _, f := range []struct {
		key  string
		make func(bool) backend.Filter
	}{
		{"local", backend.Local},
		{"simulator", backend.Simulator},
	} {
		raw := r.URL.Query().Get(f.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, f.key+" must be a boolean")
			return
		}
		filters = append(filters, f.make(v))
	}

	s.writeJSON(w, http.StatusOK, s.registry.List(filters...))
}

func (s *Server) handleGetBackend(w http.ResponseWriter, r *http.Request) {
	b, ok := s.lookupBackend(w, chi.URLParam(r, "name"))
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, backend.Describe(b))
}

// lookupBackend resolves name or writes a 404.
func (s *Server) lookupBackend(w http.ResponseWriter, name string) (backend.Backend, bool) {
	b, err := s.registry.GetBackend(name)
	if errors.Is(err, backend.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "backend not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get backend", "name", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get backend")
		return nil, false
	}
	return b, true
}
