package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"

	"github.com/lumenmed/lumen/internal/eventlog"
	"github.com/lumenmed/lumen/internal/model"
)

const maxBodySize = 1 << 20 // 1 MB

// createTaskRequest is the JSON body for POST /v1/tasks.
type createTaskRequest struct {
	Question       string `json:"question"`
	Mode           string `json:"mode"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Question == "" {
		s.writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.Mode == "" {
		req.Mode = model.ModeResearch
	}

	task := &model.Task{
		ID:             model.NewID(),
		Mode:           req.Mode,
		Question:       req.Question,
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.engine.Start(r.Context(), task); err != nil {
		s.logger.Error("start task", "error", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	task, err := s.engine.GetTask(r.Context(), id)
	if errors.Is(err, eventlog.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.logger.Error("get task", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}

	s.writeJSON(w, http.StatusOK, task)
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
