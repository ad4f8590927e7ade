package api

import (
	"net/http"
)

type healthResponse struct {
	Status   string `json:"status"`
	Backends int    `json:"backends"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Backends: len(s.registry.AvailableBackends()),
	})
}
