package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/newspulse/aggregator/internal/domain"
)

type Type string

const (
	PG    Type = "pg"
	InMem Type = "inmem"
)

var ErrNotFound = errors.New("record not found")

// RawFilter narrows ad hoc queries against raw articles. Zero-value fields
// are ignored.
type RawFilter struct {
	SourceID        *uuid.UUID
	PublishedBefore *time.Time
	PublishedAfter  *time.Time
	Limit           int
}

// AggregationStats summarizes pipeline activity over a trailing window.
type AggregationStats struct {
	WindowDays        int `json:"windowDays"`
	RawArticles       int `json:"rawArticles"`
	ArticlesFetched   int `json:"articlesFetched"`
	ArticlesPublished int `json:"articlesPublished"`
	CompletedJobs     int `json:"completedJobs"`
	FailedJobs        int `json:"failedJobs"`
}

// ContentStore persists raw articles. Validation is the pipeline's job; the
// store enforces nothing beyond column typing.
type ContentStore interface {
	InsertRaw(ctx context.Context, articles []domain.RawArticle) (int, error)
	ListRaw(ctx context.Context, filter RawFilter) ([]domain.RawArticle, error)
	UpdateRawMetadata(ctx context.Context, id uuid.UUID, metadata map[string]any) error
	DeleteRaw(ctx context.Context, filter RawFilter) (int64, error)

	// CleanupStale removes raw rows older than the given age via the bulk
	// cleanup procedure and returns the number deleted.
	CleanupStale(ctx context.Context, olderThan time.Duration) (int64, error)

	// Stats aggregates activity over the trailing window of days.
	Stats(ctx context.Context, days int) (AggregationStats, error)
}

// SourceRegistry exposes configured sources and records fetch health.
type SourceRegistry interface {
	// ListReady returns active sources ordered by staleness, least recently
	// fetched first.
	ListReady(ctx context.Context) ([]domain.NewsSource, error)

	ReportHealth(ctx context.Context, sourceID uuid.UUID, report domain.HealthReport) error
}

// JobLedger persists aggregation job records. The orchestrator is the only
// writer.
type JobLedger interface {
	CreateJob(ctx context.Context, job *domain.AggregationJob) error
	UpdateJob(ctx context.Context, job *domain.AggregationJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*domain.AggregationJob, error)
	ListJobs(ctx context.Context, limit int) ([]domain.AggregationJob, error)

	// HasRunning reports whether any job is currently in the running state.
	HasRunning(ctx context.Context) (bool, error)
}

// SourceWriter is implemented by registries that can be seeded with new
// source configurations.
type SourceWriter interface {
	UpsertSource(ctx context.Context, src domain.NewsSource) (uuid.UUID, error)
}

// PipelineLocker is implemented by ledgers that can take a real
// mutual-exclusion lock around a pipeline run. Release must be called iff
// acquired is true.
type PipelineLocker interface {
	TryLockPipeline(ctx context.Context) (acquired bool, release func(), err error)
}
