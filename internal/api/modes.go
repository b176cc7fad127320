package api

import "net/http"

func (s *Server) handleListModes(w http.ResponseWriter, _ *http.Request) {
	modes := s.engine.Pipelines().List()
	s.writeJSON(w, http.StatusOK, modes)
}
