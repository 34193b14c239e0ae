package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type JobType string

const (
	JobTypeFetch   JobType = "fetch"
	JobTypeProcess JobType = "process"
	JobTypeCleanup JobType = "cleanup"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// AggregationJob tracks one execution of a pipeline stage. The orchestrator
// is the only writer; transitions go pending -> running -> completed|failed
// and terminal states are never revisited.
type AggregationJob struct {
	ID                uuid.UUID      `json:"id"`
	Type              JobType        `json:"jobType"`
	SourceID          *uuid.UUID     `json:"sourceId,omitempty"`
	Status            JobStatus      `json:"status"`
	StartedAt         time.Time      `json:"startedAt,omitempty"`
	CompletedAt       time.Time      `json:"completedAt,omitempty"`
	ArticlesFetched   int            `json:"articlesFetched"`
	ArticlesProcessed int            `json:"articlesProcessed"`
	ArticlesPublished int            `json:"articlesPublished"`
	ErrorMessage      string         `json:"errorMessage,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
}

func NewAggregationJob(jobType JobType) *AggregationJob {
	return &AggregationJob{
		ID:        uuid.New(),
		Type:      jobType,
		Status:    JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Start transitions the job to running and stamps StartedAt.
func (j *AggregationJob) Start() error {
	if j.Status != JobStatusPending {
		return fmt.Errorf("cannot start job %s in status %q", j.ID, j.Status)
	}
	j.Status = JobStatusRunning
	j.StartedAt = time.Now().UTC()
	return nil
}

// Complete transitions the job to its successful terminal state.
func (j *AggregationJob) Complete() error {
	if j.Status != JobStatusRunning {
		return fmt.Errorf("cannot complete job %s in status %q", j.ID, j.Status)
	}
	j.Status = JobStatusCompleted
	j.CompletedAt = time.Now().UTC()
	return nil
}

// Fail transitions the job to its failed terminal state with a message.
func (j *AggregationJob) Fail(msg string) error {
	if j.Status != JobStatusRunning && j.Status != JobStatusPending {
		return fmt.Errorf("cannot fail job %s in status %q", j.ID, j.Status)
	}
	j.Status = JobStatusFailed
	j.CompletedAt = time.Now().UTC()
	j.ErrorMessage = msg
	return nil
}

// Terminal reports whether the job reached completed or failed.
func (j *AggregationJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// SetMeta lazily initializes the metadata bag and records a key.
func (j *AggregationJob) SetMeta(key string, value any) {
	if j.Metadata == nil {
		j.Metadata = make(map[string]any)
	}
	j.Metadata[key] = value
}
