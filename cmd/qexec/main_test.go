package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/seantiz/qexec/internal/backend"
	"github.com/seantiz/qexec/internal/backend/dummy"
	"github.com/seantiz/qexec/internal/backend/local"
	"github.com/seantiz/qexec/internal/job"
	"github.com/seantiz/qexec/internal/model"
	"github.com/seantiz/qexec/internal/pool"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("QEXEC_LOG_LEVEL", "error")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestNewRegistry(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	p := pool.New(1, logger)
	defer p.Shutdown(t.Context())

	reg, err := newRegistry(p, dummy.DefaultTimeAlive, logger)
	if err != nil {
		t.Fatalf("newRegistry: %v", err)
	}

	names := reg.AvailableBackends()
	if len(names) != 2 || names[0] != dummy.Name || names[1] != local.DefaultName {
		t.Errorf("AvailableBackends() = %v", names)
	}
	for alias, target := range deprecatedNames {
		b, err := reg.GetBackend(alias)
		if err != nil {
			t.Errorf("GetBackend(%q): %v", alias, err)
			continue
		}
		if b.Name() != target {
			t.Errorf("alias %q resolved to %q, want %q", alias, b.Name(), target)
		}
	}
}

func TestBackendsCommand(t *testing.T) {
	out, err := execute(t, "backends")
	if err != nil {
		t.Fatalf("backends: %v", err)
	}
	if got := strings.Fields(out); len(got) != 2 || got[0] != dummy.Name || got[1] != local.DefaultName {
		t.Errorf("output = %q", out)
	}

	out, err = execute(t, "backends", "--local=false")
	if err != nil {
		t.Fatalf("backends --local=false: %v", err)
	}
	if strings.TrimSpace(out) != "" {
		t.Errorf("remote backends = %q, want none", out)
	}
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run",
		"--backend", local.DefaultName,
		"--shots", "100",
		"--timeout", "1s",
		"--wait", "10ms",
		"--count", "3",
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d result lines, want 3: %q", len(lines), out)
	}
	for _, line := range lines {
		var res model.Result
		if err := json.Unmarshal([]byte(line), &res); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		if res.Status != model.ResultCompleted || len(res.Data) != 1 || res.Data[0].Shots != 100 {
			t.Errorf("result = %+v", res)
		}
	}
}

func TestRunCommandDummy(t *testing.T) {
	out, err := execute(t, "run", "--time-alive", "20ms", "--wait", "5ms", "--timeout", "1s")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var res model.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Status != model.ResultCompleted || res.JobID == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestRunCommandExecutionTimeout(t *testing.T) {
	_, err := execute(t, "run", "--time-alive", "1s", "--wait", "10ms", "--timeout", "30ms")

	var timeoutErr *job.ExecutionTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("run error = %v, want *ExecutionTimeoutError", err)
	}
}

func TestRunCommandErrors(t *testing.T) {
	if _, err := execute(t, "run", "--backend", "unknown_name"); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("unknown backend error = %v, want ErrNotFound", err)
	}

	var subErr *backend.SubmissionError
	if _, err := execute(t, "run", "--shots", "0"); !errors.As(err, &subErr) {
		t.Errorf("zero shots error = %v, want *SubmissionError", err)
	}

	if _, err := execute(t, "run", "--count", "0"); err == nil {
		t.Error("run --count 0 succeeded")
	}
}
