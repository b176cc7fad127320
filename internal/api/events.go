package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"

	"github.com/lumenmed/lumen/internal/eventlog"
	"github.com/lumenmed/lumen/internal/model"
)

// handleStreamEvents streams a task's event log over SSE. The optional ?from=
// query gives the first index to deliver, so a reconnecting client that has
// seen events up to k resumes with ?from=k+1 and receives exactly the rest.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	from := parseIntQuery(r, "from", 0)
	if from < 0 {
		from = 0
	}

	// Verify the task exists before committing to a stream response.
	if _, err := s.engine.GetTask(r.Context(), id); err != nil {
		if errors.Is(err, eventlog.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		s.logger.Error("get task for events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	events, errs := s.engine.Subscribe(r.Context(), id, from)

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// Terminal event delivered; close out the stream.
				_ = writeSSEEvent(w, "end", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			payload, err := sonic.MarshalString(ev)
			if err != nil {
				s.logger.Error("marshal event", "error", err)
				return
			}
			if err := writeSSEData(w, payload); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if errors.Is(err, r.Context().Err()) {
				return // Client disconnected.
			}
			s.logger.Error("event stream", "task_id", id, "error", err)
			_ = writeSSEEvent(w, "error", "stream failed")
			return
		}
	}
}

// sseEvent renders one event as an SSE payload for tests and the WebSocket
// transport to share.
func sseEvent(ev model.Event) (string, error) {
	return sonic.MarshalString(ev)
}

// writeSSEData writes a payload as an SSE data event. Multi-line strings are
// split so that each segment gets its own "data:" prefix, per the SSE spec.
func writeSSEData(w http.ResponseWriter, payload string) error {
	for _, seg := range strings.Split(payload, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	// Blank line terminates the event.
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
