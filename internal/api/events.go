package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/qexec/internal/model"
)

// handleStreamEvents streams a job's status changes as SSE. The first event
// is the status at connect time; the stream ends with a "done" event once the
// job is terminal.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h, err := s.engine.Job(id)
	if err != nil {
		rec, ok := s.journaled(r.Context(), w, id)
		if !ok {
			return
		}
		setSSEHeaders(w)
		w.WriteHeader(http.StatusOK)
		_ = s.writeStatusEvent(w, model.StatusEvent{JobID: id, Status: rec.Status, Error: rec.Error, At: time.Now().UTC()})
		_ = writeSSEEvent(w, "done", "stream complete")
		return
	}

	// Subscribe before taking the snapshot so no transition falls in between.
	ch, unsub := s.engine.Broker().Subscribe(id)
	defer unsub()

	setSSEHeaders(w)

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)

	snapshot := model.StatusEvent{JobID: id, Status: h.Status(), At: time.Now().UTC()}
	if herr := h.Err(); herr != nil {
		snapshot.Error = herr.Error()
	}
	if err := s.writeStatusEvent(w, snapshot); err != nil {
		return
	}
	last := snapshot.Status
	if last.IsTerminal() {
		// Nothing follows a terminal status, and the topic may already be gone.
		_ = writeSSEEvent(w, "done", "stream complete")
		if canFlush {
			flusher.Flush()
		}
		return
	}
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				// A terminal status published before we subscribed is only
				// visible on the handle.
				if st := h.Status(); model.ValidTransition(last, st) {
					ev := model.StatusEvent{JobID: id, Status: st, At: time.Now().UTC()}
					if herr := h.Err(); herr != nil {
						ev.Error = herr.Error()
					}
					_ = s.writeStatusEvent(w, ev)
				}
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			// Drop repeats and events older than the snapshot.
			if !model.ValidTransition(last, ev.Status) {
				continue
			}
			last = ev.Status
			if err := s.writeStatusEvent(w, ev); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func (s *Server) writeStatusEvent(w http.ResponseWriter, ev model.StatusEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("encode status event", "job_id", ev.JobID, "error", err)
		return err
	}
	return writeSSEData(w, string(data))
}

// writeSSEData writes data as an SSE data event. Multi-line strings are split
// so that each segment gets its own "data:" prefix.
func writeSSEData(w http.ResponseWriter, data string) error {
	for seg := range strings.SplitSeq(data, "\n") {
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
