package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lumenmed/lumen/internal/eventlog"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The HTTP middleware already applies the CORS policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStreamWS streams a task's event log over a WebSocket, one JSON text
// frame per event. Accepts the same ?from= resume offset as the SSE endpoint.
func (s *Server) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	from := parseIntQuery(r, "from", 0)
	if from < 0 {
		from = 0
	}

	if _, err := s.engine.GetTask(r.Context(), id); err != nil {
		if errors.Is(err, eventlog.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		s.logger.Error("get task for ws", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain the read side so client close frames cancel the subscription.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events, errs := s.engine.Subscribe(ctx, id, from)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				deadline := time.Now().Add(wsWriteTimeout)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
				return
			}
			payload, err := sseEvent(ev)
			if err != nil {
				s.logger.Error("marshal event", "error", err)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				return
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error("websocket stream", "task_id", id, "error", err)
			deadline := time.Now().Add(wsWriteTimeout)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "stream failed"), deadline)
			return
		}
	}
}
