package store

import (
	"context"
	"errors"

	"github.com/seantiz/qexec/internal/model"
)

var (
	// ErrNotFound is returned when a job is not in the journal.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a job status transition is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// JobStats holds aggregate execution statistics.
type JobStats struct {
	Total          int            `json:"total"`
	CountByStatus  map[string]int `json:"count_by_status"`
	CountByBackend map[string]int `json:"count_by_backend"`
	AvgDurationMS  float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations of the job journal.
type Store interface {
	CreateJob(ctx context.Context, j *model.JobRecord) error
	GetJob(ctx context.Context, id string) (*model.JobRecord, error)
	ListJobs(ctx context.Context, limit, offset int) ([]*model.JobRecord, int, error)
	UpdateJobStatus(ctx context.Context, id string, status model.Status) error
	FinishJob(ctx context.Context, j *model.JobRecord) error
	AbandonUnfinished(ctx context.Context, reason string) (int, error)
	GetJobStats(ctx context.Context) (*JobStats, error)
	Close() error
}
