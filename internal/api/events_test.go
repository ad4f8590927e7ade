package api

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/qexec/internal/backend/local"
	"github.com/seantiz/qexec/internal/model"
)

// readSSE collects status events until the "done" event or EOF.
func readSSE(t *testing.T, body io.Reader) (events []model.StatusEvent, done bool) {
	t.Helper()
	scanner := bufio.NewScanner(body)
	var eventType string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if eventType == "done" {
				return events, true
			}
			var ev model.StatusEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				t.Fatalf("decode event %q: %v", line, err)
			}
			events = append(events, ev)
		case line == "":
			eventType = ""
		}
	}
	return events, false
}

func TestStreamEventsLiveJob(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	rec := submitJob(t, ts, blockingBackend, validSubmit())

	resp, err := http.Get(ts.URL + "/v1/jobs/" + rec.ID + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	if ok, err := srv.engine.Cancel(rec.ID); err != nil || !ok {
		t.Fatalf("Cancel = %v, %v", ok, err)
	}

	events, done := readSSE(t, resp.Body)
	if !done {
		t.Error("stream ended without a done event")
	}
	if len(events) == 0 {
		t.Fatal("no status events")
	}

	first := events[0].Status
	if first != model.StatusQueued && first != model.StatusRunning {
		t.Errorf("first event = %s, want QUEUED or RUNNING", first)
	}
	if last := events[len(events)-1].Status; last != model.StatusCancelled {
		t.Errorf("last event = %s, want CANCELLED", last)
	}
	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1].Status, events[i].Status
		if !model.ValidTransition(prev, cur) {
			t.Errorf("event %d: invalid transition %s -> %s", i, prev, cur)
		}
	}
	for _, ev := range events {
		if ev.JobID != rec.ID {
			t.Errorf("event job_id = %q, want %q", ev.JobID, rec.ID)
		}
	}
}

func TestStreamEventsFinishedJob(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	rec := submitJob(t, ts, local.DefaultName, validSubmit())
	deadline := time.Now().Add(5 * time.Second)
	for srv.engine.Live() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get(ts.URL + "/v1/jobs/" + rec.ID + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	events, done := readSSE(t, resp.Body)
	if !done {
		t.Error("stream ended without a done event")
	}
	if len(events) != 1 || events[0].Status != model.StatusDone {
		t.Errorf("events = %+v, want a single DONE event", events)
	}
}

func TestStreamEventsNotFound(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/jobs/nonexistent/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
