package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/lumenmed/lumen/internal/model"
	"github.com/lumenmed/lumen/internal/provider"
	"github.com/lumenmed/lumen/internal/store"
)

// interruptedMarker is appended to the partial answer when the client goes
// away mid-generation, so the persisted message is honest about being cut off.
const interruptedMarker = "\n\n[answer interrupted]"

// generateRequest is the JSON body for POST /v1/generate.
type generateRequest struct {
	Question       string `json:"question"`
	System         string `json:"system"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// generateMeta is the first SSE event on the coupled stream, identifying the
// message being generated.
type generateMeta struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// handleGenerate streams a completion inline over SSE. Unlike the task
// endpoints there is no event log: the handler itself accumulates the partial
// text, and a client disconnect persists what was generated so far with the
// interrupted marker and status.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Question == "" {
		s.writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = model.NewID()
		conv := &store.Conversation{ID: conversationID, UserID: req.UserID, CreatedAt: time.Now().UTC()}
		if err := s.messages.CreateConversation(r.Context(), conv); err != nil {
			s.logger.Error("create conversation", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to create conversation")
			return
		}
	} else if _, err := s.messages.GetConversation(r.Context(), conversationID); err != nil {
		s.writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	msg := &store.Message{
		ID:             store.NewMessageID(),
		ConversationID: conversationID,
		Role:           "assistant",
		Status:         store.MessageStatusPending,
	}
	if err := s.messages.CreateMessage(r.Context(), msg); err != nil {
		s.logger.Error("create message", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create message")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	frags, errs := s.llm.Complete(r.Context(), provider.Request{
		System:   req.System,
		Messages: []provider.Message{{Role: "user", Content: req.Question}},
	})

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)

	meta, _ := sonic.MarshalString(generateMeta{ConversationID: conversationID, MessageID: msg.ID})
	_ = writeSSEEvent(w, "meta", meta)
	if canFlush {
		flusher.Flush()
	}

	var b strings.Builder
	for frags != nil || errs != nil {
		select {
		case frag, ok := <-frags:
			if !ok {
				frags = nil
				continue
			}
			b.WriteString(frag)
			if err := writeSSEData(w, frag); err != nil {
				// Client gone; persistence happens via ctx below.
				frags = nil
				errs = nil
				continue
			}
			if canFlush {
				flusher.Flush()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if r.Context().Err() != nil {
				s.persistGenerated(msg.ID, b.String()+interruptedMarker, store.MessageStatusInterrupted)
				return
			}
			s.logger.Error("coupled generation", "message_id", msg.ID, "error", err)
			s.persistGenerated(msg.ID, b.String(), store.MessageStatusFailed)
			_ = writeSSEEvent(w, "error", "generation failed")
			return
		case <-r.Context().Done():
			s.persistGenerated(msg.ID, b.String()+interruptedMarker, store.MessageStatusInterrupted)
			return
		}
	}

	if r.Context().Err() != nil {
		s.persistGenerated(msg.ID, b.String()+interruptedMarker, store.MessageStatusInterrupted)
		return
	}

	s.persistGenerated(msg.ID, b.String(), store.MessageStatusComplete)
	_ = writeSSEEvent(w, "end", "stream complete")
	if canFlush {
		flusher.Flush()
	}
}

// persistGenerated writes the accumulated text with a background context so a
// dropped request cannot cancel persistence.
func (s *Server) persistGenerated(messageID, content, status string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.messages.UpdateMessage(ctx, messageID, content, status); err != nil {
		s.logger.Error("persist generated message", "message_id", messageID, "status", status, "error", err)
	}
}
