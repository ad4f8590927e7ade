package model

import (
	"encoding/json"
	"maps"
	"time"
)

// ResultCompleted is the Result.Status value reported by a successful run.
const ResultCompleted = "COMPLETED"

// Workload is a compiled payload submitted for execution, together with the
// scheduling hints a backend needs. The payload itself is opaque.
type Workload struct {
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Shots   int             `json:"shots"`
	Timeout time.Duration   `json:"timeout"`
	Wait    time.Duration   `json:"wait"`
}

// Clone returns a copy of w that shares no memory with it.
func (w Workload) Clone() Workload {
	if w.Payload != nil {
		w.Payload = append(json.RawMessage(nil), w.Payload...)
	}
	return w
}

// Outcome is a single entry of a Result's data.
type Outcome struct {
	Name   string         `json:"name"`
	Shots  int            `json:"shots"`
	Counts map[string]int `json:"counts,omitempty"`
}

// Result is the value produced by a job that reached DONE.
type Result struct {
	JobID  string    `json:"job_id"`
	Data   []Outcome `json:"data"`
	Status string    `json:"status"`
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	out := Result{JobID: r.JobID, Status: r.Status, Data: make([]Outcome, len(r.Data))}
	for i, o := range r.Data {
		out.Data[i] = Outcome{Name: o.Name, Shots: o.Shots, Counts: maps.Clone(o.Counts)}
	}
	return out
}

// JobRecord is the journal entry kept for a submitted job.
type JobRecord struct {
	ID         string     `json:"id"`
	Backend    string     `json:"backend"`
	Name       string     `json:"name,omitempty"`
	Status     Status     `json:"status"`
	Shots      int        `json:"shots"`
	TimeoutMS  int64      `json:"timeout_ms"`
	WaitMS     int64      `json:"wait_ms"`
	Result     *Result    `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMS *int64     `json:"duration_ms,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
