package model

import (
	"encoding/json"
	"regexp"
	"testing"
)

// crockfordBase32 matches valid ULID strings (26 chars, Crockford Base32 alphabet).
var crockfordBase32 = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if !crockfordBase32.MatchString(id) {
		t.Errorf("NewID() = %q, does not match Crockford Base32 ULID format", id)
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestStatusConstants(t *testing.T) {
	statuses := []struct {
		constant Status
		expected string
	}{
		{StatusQueued, "QUEUED"},
		{StatusRunning, "RUNNING"},
		{StatusCancelled, "CANCELLED"},
		{StatusDone, "DONE"},
		{StatusError, "ERROR"},
	}
	for _, s := range statuses {
		if string(s.constant) != s.expected {
			t.Errorf("status constant = %q, want %q", s.constant, s.expected)
		}
		if !s.constant.Valid() {
			t.Errorf("%s.Valid() = false", s.constant)
		}
	}
	if Status("PENDING").Valid() {
		t.Error(`Status("PENDING").Valid() = true, want false`)
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusQueued, StatusRunning, true},
		{StatusQueued, StatusCancelled, true},
		{StatusQueued, StatusError, true},
		{StatusQueued, StatusDone, false},
		{StatusRunning, StatusDone, true},
		{StatusRunning, StatusError, true},
		{StatusRunning, StatusCancelled, true},
		{StatusRunning, StatusQueued, false},
		{StatusDone, StatusRunning, false},
		{StatusDone, StatusQueued, false},
		{StatusCancelled, StatusDone, false},
		{StatusError, StatusQueued, false},
	}
	for _, tc := range tests {
		if got := ValidTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("ValidTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	all := []Status{StatusQueued, StatusRunning, StatusCancelled, StatusDone, StatusError}
	for _, from := range all {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range all {
			if ValidTransition(from, to) {
				t.Errorf("terminal status %s has transition to %s", from, to)
			}
		}
	}
	if StatusQueued.IsTerminal() || StatusRunning.IsTerminal() {
		t.Error("QUEUED and RUNNING must not be terminal")
	}
}

func TestResultCloneIsDeep(t *testing.T) {
	r := Result{
		JobID:  "abc",
		Status: ResultCompleted,
		Data:   []Outcome{{Name: "exp0", Shots: 4, Counts: map[string]int{"00": 2, "11": 2}}},
	}
	c := r.Clone()
	c.Data[0].Counts["00"] = 99
	c.Data[0].Name = "changed"

	if r.Data[0].Counts["00"] != 2 {
		t.Errorf("original counts mutated through clone: %v", r.Data[0].Counts)
	}
	if r.Data[0].Name != "exp0" {
		t.Errorf("original outcome name mutated: %q", r.Data[0].Name)
	}
}

func TestResultJSONShape(t *testing.T) {
	b, err := json.Marshal(Result{JobID: "id-1", Data: []Outcome{}, Status: ResultCompleted})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"job_id":"id-1","data":[],"status":"COMPLETED"}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
}

func TestWorkloadCloneCopiesPayload(t *testing.T) {
	w := Workload{Payload: json.RawMessage(`{"qobj":1}`), Shots: 1}
	c := w.Clone()
	c.Payload[2] = 'X'
	if string(w.Payload) != `{"qobj":1}` {
		t.Errorf("payload mutated through clone: %s", w.Payload)
	}
}
