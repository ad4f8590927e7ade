package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/qexec/internal/backend"
	"github.com/seantiz/qexec/internal/engine"
	"github.com/seantiz/qexec/internal/job"
	"github.com/seantiz/qexec/internal/model"
	"github.com/seantiz/qexec/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// submitJobRequest is the JSON body for POST /v1/backends/{name}/jobs.
type submitJobRequest struct {
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	Shots     int             `json:"shots"`
	TimeoutMS int64           `json:"timeout_ms"`
	WaitMS    int64           `json:"wait_ms"`
}

// jobResponse describes a job. Status comes from the live handle while the
// engine holds one, otherwise from the journal.
type jobResponse struct {
	*model.JobRecord
}

// listJobsResponse wraps the paginated list response.
type listJobsResponse struct {
	Jobs   []*model.JobRecord `json:"jobs"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// cancelResponse is the JSON response for DELETE /v1/jobs/{id}.
type cancelResponse struct {
	ID        string       `json:"id"`
	Cancelled bool         `json:"cancelled"`
	Status    model.Status `json:"status"`
}

// resultResponse is the JSON response for GET /v1/jobs/{id}/result.
type resultResponse struct {
	ID     string        `json:"id"`
	Status model.Status  `json:"status"`
	Result *model.Result `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req submitJobRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		countSubmission("", outcomeInvalid)
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	timeout, err := millis("timeout_ms", req.TimeoutMS)
	if err != nil {
		countSubmission("", outcomeInvalid)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	wait, err := millis("wait_ms", req.WaitMS)
	if err != nil {
		countSubmission("", outcomeInvalid)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h, err := s.engine.Submit(r.Context(), name, model.Workload{
		Name:    req.Name,
		Payload: req.Payload,
		Shots:   req.Shots,
		Timeout: timeout,
		Wait:    wait,
	})
	var subErr *backend.SubmissionError
	switch {
	case errors.Is(err, backend.ErrNotFound):
		countSubmission("", outcomeUnknownBackend)
		s.writeError(w, http.StatusNotFound, "backend not found")
		return
	case errors.As(err, &subErr):
		countSubmission(subErr.Backend, outcomeInvalid)
		s.writeError(w, http.StatusBadRequest, subErr.Error())
		return
	case err != nil:
		countSubmission("", outcomeFailed)
		s.logger.Error("submit job", "backend", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit job")
		return
	}

	countSubmission(h.Backend(), outcomeAccepted)
	w.Header().Set("Location", "/v1/jobs/"+h.ID())
	s.writeJSON(w, http.StatusAccepted, jobResponse{s.liveRecord(r.Context(), h)})
}

// maxMillis is the largest millisecond count a time.Duration can hold.
const maxMillis = math.MaxInt64 / int64(time.Millisecond)

// millis converts a millisecond field to a duration, rejecting values that
// are not positive or would overflow.
func millis(field string, v int64) (time.Duration, error) {
	if v < 1 || v > maxMillis {
		return 0, fmt.Errorf("%s must be between 1 and %d, got %d", field, maxMillis, v)
	}
	return time.Duration(v) * time.Millisecond, nil
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	jobs, total, err := s.store.ListJobs(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list jobs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	for _, j := range jobs {
		if h, err := s.engine.Job(j.ID); err == nil {
			j.Status = h.Status()
		}
	}

	s.writeJSON(w, http.StatusOK, listJobsResponse{
		Jobs:   jobs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h, err := s.engine.Job(id); err == nil {
		s.writeJSON(w, http.StatusOK, jobResponse{s.liveRecord(r.Context(), h)})
		return
	}

	rec, ok := s.journaled(r.Context(), w, id)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, jobResponse{rec})
}

// handleGetResult waits up to ?timeout= (a Go duration, capped by
// MaxResultWait) for the job. 200 carries the result, 202 means the job is
// still queued or running, 409 that it was cancelled and 422 that it failed.
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var wait time.Duration
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			s.writeError(w, http.StatusBadRequest, "timeout must be a non-negative duration")
			return
		}
		wait = min(d, s.opts.MaxResultWait)
	}

	h, err := s.engine.Job(id)
	if err != nil {
		rec, ok := s.journaled(r.Context(), w, id)
		if !ok {
			return
		}
		s.writeResult(w, resultResponse{ID: id, Status: rec.Status, Result: rec.Result, Error: rec.Error})
		return
	}

	if wait == 0 && !h.Done() {
		s.writeResult(w, resultResponse{ID: id, Status: h.Status()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), max(wait, time.Millisecond))
	defer cancel()

	res, err := h.Result(ctx)
	var waitErr *job.WaitTimeoutError
	switch {
	case err == nil:
		s.writeResult(w, resultResponse{ID: id, Status: model.StatusDone, Result: &res})
	case errors.As(err, &waitErr):
		s.writeResult(w, resultResponse{ID: id, Status: waitErr.Status})
	case errors.Is(err, job.ErrCancelled):
		s.writeResult(w, resultResponse{ID: id, Status: model.StatusCancelled, Error: err.Error()})
	case r.Context().Err() != nil:
		// Client went away.
	default:
		s.writeResult(w, resultResponse{ID: id, Status: model.StatusError, Error: err.Error()})
	}
}

func (s *Server) writeResult(w http.ResponseWriter, resp resultResponse) {
	code := http.StatusAccepted
	switch resp.Status {
	case model.StatusDone:
		code = http.StatusOK
	case model.StatusCancelled:
		code = http.StatusConflict
	case model.StatusError:
		code = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, code, resp)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cancelled, err := s.engine.Cancel(id)
	if errors.Is(err, engine.ErrJobNotFound) {
		// Finished jobs are only journaled; they can no longer be cancelled.
		rec, ok := s.journaled(r.Context(), w, id)
		if !ok {
			return
		}
		s.writeJSON(w, http.StatusOK, cancelResponse{ID: id, Cancelled: rec.Status == model.StatusCancelled, Status: rec.Status})
		return
	}
	if err != nil {
		s.logger.Error("cancel job", "job_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}

	status := model.StatusCancelled
	if !cancelled {
		status = model.StatusRunning
		if h, err := s.engine.Job(id); err == nil {
			status = h.Status()
		} else if rec, err := s.store.GetJob(r.Context(), id); err == nil {
			status = rec.Status
		}
	}
	s.writeJSON(w, http.StatusOK, cancelResponse{ID: id, Cancelled: cancelled, Status: status})
}

// liveRecord merges the journal record of a live job with its current status.
func (s *Server) liveRecord(ctx context.Context, h *job.Handle) *model.JobRecord {
	rec, err := s.store.GetJob(ctx, h.ID())
	if err != nil {
		w := h.Workload()
		rec = &model.JobRecord{
			ID:        h.ID(),
			Backend:   h.Backend(),
			Name:      w.Name,
			Shots:     w.Shots,
			TimeoutMS: w.Timeout.Milliseconds(),
			WaitMS:    w.Wait.Milliseconds(),
			CreatedAt: h.SubmittedAt(),
		}
	}
	rec.Status = h.Status()
	switch rec.Status {
	case model.StatusDone:
		if res, err := h.Result(ctx); err == nil {
			rec.Result = &res
		}
	case model.StatusError:
		if err := h.Err(); err != nil {
			rec.Error = err.Error()
		}
	}
	return rec
}

// journaled fetches id from the journal or writes a 404/500.
func (s *Server) journaled(ctx context.Context, w http.ResponseWriter, id string) (*model.JobRecord, bool) {
	rec, err := s.store.GetJob(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get job", "job_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get job")
		return nil, false
	}
	return rec, true
}
