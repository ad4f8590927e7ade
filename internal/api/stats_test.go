package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seantiz/qexec/internal/backend/local"
	"github.com/seantiz/qexec/internal/model"
)

func TestGetStatsEmpty(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if stats.Total != 0 {
		t.Errorf("total = %d, want 0", stats.Total)
	}
	if stats.AvgDurationMS != 0 {
		t.Errorf("avg_duration_ms = %f, want 0", stats.AvgDurationMS)
	}
	if stats.Pool.Workers != 2 {
		t.Errorf("pool.workers = %d, want 2", stats.Pool.Workers)
	}
}

func TestGetStatsPopulated(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	w := model.Workload{Shots: 10, Timeout: time.Second, Wait: 10 * time.Millisecond}
	for range 3 {
		if _, err := srv.engine.Submit(ctx, local.DefaultName, w); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	blocked, err := srv.engine.Submit(ctx, blockingBackend, w)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ok, err := srv.engine.Cancel(blocked.ID()); err != nil || !ok {
		t.Fatalf("Cancel = %v, %v", ok, err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for srv.engine.Live() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if stats.Total != 4 {
		t.Errorf("total = %d, want 4", stats.Total)
	}
	if stats.ByStatus["DONE"] != 3 {
		t.Errorf("by_status[DONE] = %d, want 3", stats.ByStatus["DONE"])
	}
	if stats.ByStatus["CANCELLED"] != 1 {
		t.Errorf("by_status[CANCELLED] = %d, want 1", stats.ByStatus["CANCELLED"])
	}
	if stats.ByBackend[local.DefaultName] != 3 {
		t.Errorf("by_backend[%s] = %d, want 3", local.DefaultName, stats.ByBackend[local.DefaultName])
	}
	if stats.LiveJobs != 0 {
		t.Errorf("live_jobs = %d, want 0", stats.LiveJobs)
	}
}
