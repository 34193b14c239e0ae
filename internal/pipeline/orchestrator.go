package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/newspulse/aggregator/internal/domain"
	"github.com/newspulse/aggregator/internal/fetcher"
	"github.com/newspulse/aggregator/internal/storage"
)

const (
	defaultProcessBatchSize = 50
	defaultCleanupAge       = 7 * 24 * time.Hour
)

// Fetcher runs one fetch across all ready sources.
type Fetcher interface {
	FetchAll(ctx context.Context) (fetcher.Summary, error)
}

// ProcessResult is what the AI processing collaborator reports back; the
// pipeline only records its counts.
type ProcessResult struct {
	Processed int      `json:"processed"`
	Published int      `json:"published"`
	Errors    []string `json:"errors,omitempty"`
}

// Processor promotes raw articles to published content. Opaque to the
// pipeline.
type Processor interface {
	ProcessRawArticles(ctx context.Context, batchSize int) (ProcessResult, error)
}

// SearchMirror receives accepted articles for operator search. Mirroring is
// best effort and never fails a job.
type SearchMirror interface {
	IndexBulk(ctx context.Context, articles []domain.RawArticle) error
}

// Orchestrator sequences the aggregation stages, with one ledger row per
// stage invocation. Every job it starts ends in a terminal state.
type Orchestrator struct {
	fetcher   Fetcher
	store     storage.ContentStore
	ledger    storage.JobLedger
	processor Processor
	mirror    SearchMirror

	processBatchSize int
	cleanupAge       time.Duration
}

type Option func(*Orchestrator)

// WithSearchMirror mirrors accepted articles into a search index.
func WithSearchMirror(m SearchMirror) Option {
	return func(o *Orchestrator) {
		o.mirror = m
	}
}

func WithProcessBatchSize(size int) Option {
	return func(o *Orchestrator) {
		if size > 0 {
			o.processBatchSize = size
		}
	}
}

// WithCleanupAge sets how old a raw article must be before cleanup removes it.
func WithCleanupAge(age time.Duration) Option {
	return func(o *Orchestrator) {
		if age > 0 {
			o.cleanupAge = age
		}
	}
}

func New(f Fetcher, store storage.ContentStore, ledger storage.JobLedger, processor Processor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:          f,
		store:            store,
		ledger:           ledger,
		processor:        processor,
		processBatchSize: defaultProcessBatchSize,
		cleanupAge:       defaultCleanupAge,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// runJob wraps one stage execution in the job lifecycle: create the ledger
// row, run the work, and always land the job in a terminal state. Panics are
// recorded as failures and re-raised; errors are recorded and returned to
// the caller.
func (o *Orchestrator) runJob(ctx context.Context, jobType domain.JobType, work func(ctx context.Context, job *domain.AggregationJob) error) (job *domain.AggregationJob, err error) {
	job = domain.NewAggregationJob(jobType)
	if err := o.ledger.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create %s job: %w", jobType, err)
	}

	if err := job.Start(); err != nil {
		return job, err
	}
	if err := o.ledger.UpdateJob(ctx, job); err != nil {
		slog.Error("failed to mark job running", "job", job.ID, "error", err)
	}

	defer func() {
		if r := recover(); r != nil {
			o.finishFailed(ctx, job, fmt.Sprintf("panic: %v", r))
			panic(r)
		}
		if err != nil {
			o.finishFailed(ctx, job, err.Error())
			return
		}
		if cerr := job.Complete(); cerr != nil {
			slog.Error("invalid job completion", "job", job.ID, "error", cerr)
		}
		if uerr := o.ledger.UpdateJob(ctx, job); uerr != nil {
			slog.Error("failed to persist completed job", "job", job.ID, "error", uerr)
		}
	}()

	err = work(ctx, job)
	return job, err
}

func (o *Orchestrator) finishFailed(ctx context.Context, job *domain.AggregationJob, msg string) {
	if ferr := job.Fail(msg); ferr != nil {
		slog.Error("invalid job failure transition", "job", job.ID, "error", ferr)
	}
	if uerr := o.ledger.UpdateJob(ctx, job); uerr != nil {
		slog.Error("failed to persist failed job", "job", job.ID, "error", uerr)
	}
}

// RunFetchJob fetches all ready sources, persists the accepted batch and
// mirrors it for search.
func (o *Orchestrator) RunFetchJob(ctx context.Context) (*domain.AggregationJob, error) {
	return o.runJob(ctx, domain.JobTypeFetch, func(ctx context.Context, job *domain.AggregationJob) error {
		summary, err := o.fetcher.FetchAll(ctx)
		if err != nil {
			return fmt.Errorf("fetch all sources: %w", err)
		}

		inserted, err := o.store.InsertRaw(ctx, summary.Articles)
		if err != nil {
			return fmt.Errorf("persist fetched articles: %w", err)
		}

		job.ArticlesFetched = inserted
		job.SetMeta("sources_succeeded", summary.Succeeded)
		job.SetMeta("sources_failed", summary.Failed)
		if len(summary.Failures) > 0 {
			job.SetMeta("source_errors", summary.Failures)
		}

		if o.mirror != nil {
			if merr := o.mirror.IndexBulk(ctx, summary.Articles); merr != nil {
				slog.Warn("search mirror indexing failed", "error", merr)
			}
		}
		return nil
	})
}

// RunProcessingJob hands a bounded batch of raw articles to the processing
// collaborator and records its counts.
func (o *Orchestrator) RunProcessingJob(ctx context.Context) (*domain.AggregationJob, error) {
	return o.runJob(ctx, domain.JobTypeProcess, func(ctx context.Context, job *domain.AggregationJob) error {
		result, err := o.processor.ProcessRawArticles(ctx, o.processBatchSize)
		if err != nil {
			return fmt.Errorf("process raw articles: %w", err)
		}

		job.ArticlesProcessed = result.Processed
		job.ArticlesPublished = result.Published
		if len(result.Errors) > 0 {
			job.SetMeta("item_errors", result.Errors)
		}
		return nil
	})
}

// RunCleanupJob removes stale raw articles.
func (o *Orchestrator) RunCleanupJob(ctx context.Context) (*domain.AggregationJob, error) {
	return o.runJob(ctx, domain.JobTypeCleanup, func(ctx context.Context, job *domain.AggregationJob) error {
		deleted, err := o.store.CleanupStale(ctx, o.cleanupAge)
		if err != nil {
			return fmt.Errorf("cleanup stale articles: %w", err)
		}

		job.SetMeta("articles_deleted", deleted)
		return nil
	})
}

// PipelineResult holds the three stage jobs of one full run.
type PipelineResult struct {
	FetchJob   *domain.AggregationJob `json:"fetchJob,omitempty"`
	ProcessJob *domain.AggregationJob `json:"processJob,omitempty"`
	CleanupJob *domain.AggregationJob `json:"cleanupJob,omitempty"`
}

// RunFullPipeline runs fetch, process and cleanup as independent jobs. A
// failed stage is recorded on its own job and the remaining stages still
// run.
func (o *Orchestrator) RunFullPipeline(ctx context.Context) (PipelineResult, error) {
	var (
		result PipelineResult
		errs   []error
	)

	fetchJob, err := o.RunFetchJob(ctx)
	result.FetchJob = fetchJob
	if err != nil {
		slog.Error("fetch stage failed, continuing pipeline", "error", err)
		errs = append(errs, err)
	}

	processJob, err := o.RunProcessingJob(ctx)
	result.ProcessJob = processJob
	if err != nil {
		slog.Error("processing stage failed, continuing pipeline", "error", err)
		errs = append(errs, err)
	}

	cleanupJob, err := o.RunCleanupJob(ctx)
	result.CleanupJob = cleanupJob
	if err != nil {
		slog.Error("cleanup stage failed", "error", err)
		errs = append(errs, err)
	}

	return result, errors.Join(errs...)
}

// SchedulePeriodicAggregation runs the full pipeline unless one is already
// in flight, in which case the invocation is skipped, not queued. Ledgers
// that can take a real lock are preferred; the running-job query is the
// advisory fallback.
func (o *Orchestrator) SchedulePeriodicAggregation(ctx context.Context) (bool, error) {
	if locker, ok := o.ledger.(storage.PipelineLocker); ok {
		acquired, release, err := locker.TryLockPipeline(ctx)
		if err != nil {
			return false, fmt.Errorf("acquire pipeline lock: %w", err)
		}
		if !acquired {
			slog.Info("pipeline already running, skipping scheduled aggregation")
			return false, nil
		}
		defer release()
	} else {
		running, err := o.ledger.HasRunning(ctx)
		if err != nil {
			return false, fmt.Errorf("check running jobs: %w", err)
		}
		if running {
			slog.Info("pipeline already running, skipping scheduled aggregation")
			return false, nil
		}
	}

	_, err := o.RunFullPipeline(ctx)
	return true, err
}
