package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/seantiz/qexec/internal/backend"
	"github.com/seantiz/qexec/internal/backend/dummy"
	"github.com/seantiz/qexec/internal/backend/local"
)

func listBackends(t *testing.T, url string) (int, []backend.BackendInfo) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var infos []backend.BackendInfo
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode, infos
}

func TestListBackends(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	code, infos := listBackends(t, ts.URL+"/v1/backends")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}

	want := []string{blockingBackend, dummy.Name, local.DefaultName, remoteBackend}
	if len(infos) != len(want) {
		t.Fatalf("got %d backends, want %d", len(infos), len(want))
	}
	for i, name := range want {
		if infos[i].Name != name {
			t.Errorf("backends[%d] = %q, want %q", i, infos[i].Name, name)
		}
		if !infos[i].Status.Operational {
			t.Errorf("backend %s not operational", name)
		}
	}
}

func TestListBackendsFilters(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	tests := []struct {
		query string
		want  int
	}{
		{"?local=true", 3},
		{"?local=false", 1},
		{"?simulator=false", 1},
		{"?local=true&simulator=true", 3},
		{"?local=false&simulator=true", 0},
	}
	for _, tc := range tests {
		code, infos := listBackends(t, ts.URL+"/v1/backends"+tc.query)
		if code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", tc.query, code)
			continue
		}
		if len(infos) != tc.want {
			t.Errorf("%s: got %d backends, want %d", tc.query, len(infos), tc.want)
		}
	}

	if code, _ := listBackends(t, ts.URL+"/v1/backends?local=maybe"); code != http.StatusBadRequest {
		t.Errorf("invalid filter status = %d, want 400", code)
	}
}

func TestGetBackend(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/backends/" + dummy.Name)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var info backend.BackendInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Name != dummy.Name || !info.Configuration.Simulator || !info.Configuration.Local {
		t.Errorf("info = %+v", info)
	}
	if info.Configuration.CouplingMap != "all-to-all" {
		t.Errorf("coupling_map = %q, want all-to-all", info.Configuration.CouplingMap)
	}
}

func TestBackendCalibrationAndParameters(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	_, all := listBackends(t, ts.URL+"/v1/backends")
	for _, info := range all {
		if info.Configuration.Local && (len(info.Calibration) != 0 || len(info.Parameters) != 0) {
			t.Errorf("%s: calibration = %v, parameters = %v, want both empty", info.Name, info.Calibration, info.Parameters)
		}
	}

	resp, err := http.Get(ts.URL + "/v1/backends/" + remoteBackend)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var info backend.BackendInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(info.Calibration) != len(deviceCalibration) {
		t.Errorf("calibration = %v, want %d entries", info.Calibration, len(deviceCalibration))
	}
	if info.Parameters["fridge_temperature"] != 0.015 {
		t.Errorf("parameters = %v", info.Parameters)
	}
}

func TestGetBackendAlias(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/backends/null_simulator")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var info backend.BackendInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Name != local.DefaultName {
		t.Errorf("alias resolved to %q, want %q", info.Name, local.DefaultName)
	}
}

func TestGetBackendNotFound(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/backends/unknown_name")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
