package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newspulse/aggregator/internal/apperr"
	"github.com/newspulse/aggregator/internal/domain"
	"github.com/newspulse/aggregator/internal/storage"
)

// pipelineLockKey is the advisory lock key guarding full pipeline runs.
// Arbitrary but stable across instances sharing the database.
const pipelineLockKey = 0x61676772

// JobLedger persists aggregation job rows in Postgres.
type JobLedger struct {
	db *pgxpool.Pool
}

var (
	_ storage.JobLedger      = (*JobLedger)(nil)
	_ storage.PipelineLocker = (*JobLedger)(nil)
)

func NewJobLedger(pool *ConnectionPool) *JobLedger {
	return &JobLedger{db: pool.GetConn()}
}

func (l *JobLedger) CreateJob(ctx context.Context, job *domain.AggregationJob) error {
	metadataJSON, err := json.Marshal(job.Metadata)
	if err != nil {
		return apperr.NewStorage("create job", fmt.Errorf("marshal metadata: %w", err))
	}

	cmd := `
        INSERT INTO aggregation_jobs
            (id, job_type, source_id, status, started_at, completed_at,
             articles_fetched, articles_processed, articles_published,
             error_message, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
    `
	_, err = l.db.Exec(ctx, cmd,
		job.ID,
		job.Type,
		job.SourceID,
		job.Status,
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		job.ArticlesFetched,
		job.ArticlesProcessed,
		job.ArticlesPublished,
		job.ErrorMessage,
		metadataJSON,
		job.CreatedAt,
	)
	if err != nil {
		return apperr.NewStorage("create job", err)
	}
	return nil
}

func (l *JobLedger) UpdateJob(ctx context.Context, job *domain.AggregationJob) error {
	metadataJSON, err := json.Marshal(job.Metadata)
	if err != nil {
		return apperr.NewStorage("update job", fmt.Errorf("marshal metadata: %w", err))
	}

	cmd := `
        UPDATE aggregation_jobs
        SET status = $2, started_at = $3, completed_at = $4,
            articles_fetched = $5, articles_processed = $6, articles_published = $7,
            error_message = $8, metadata = $9
        WHERE id = $1;
    `
	tag, err := l.db.Exec(ctx, cmd,
		job.ID,
		job.Status,
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		job.ArticlesFetched,
		job.ArticlesProcessed,
		job.ArticlesPublished,
		job.ErrorMessage,
		metadataJSON,
	)
	if err != nil {
		return apperr.NewStorage("update job", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (l *JobLedger) GetJob(ctx context.Context, id uuid.UUID) (*domain.AggregationJob, error) {
	row := l.db.QueryRow(ctx, `
        SELECT id, job_type, source_id, status, started_at, completed_at,
               articles_fetched, articles_processed, articles_published,
               error_message, metadata, created_at
        FROM aggregation_jobs WHERE id = $1;
    `, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, apperr.NewStorage("get job", err)
	}
	return job, nil
}

func (l *JobLedger) ListJobs(ctx context.Context, limit int) ([]domain.AggregationJob, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.db.Query(ctx, `
        SELECT id, job_type, source_id, status, started_at, completed_at,
               articles_fetched, articles_processed, articles_published,
               error_message, metadata, created_at
        FROM aggregation_jobs ORDER BY created_at DESC LIMIT $1;
    `, limit)
	if err != nil {
		return nil, apperr.NewStorage("list jobs", err)
	}
	defer rows.Close()

	var out []domain.AggregationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, apperr.NewStorage("list jobs", err)
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewStorage("list jobs", err)
	}
	return out, nil
}

func (l *JobLedger) HasRunning(ctx context.Context) (bool, error) {
	var running bool
	err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM aggregation_jobs WHERE status = 'running');`).Scan(&running)
	if err != nil {
		return false, apperr.NewStorage("check running", err)
	}
	return running, nil
}

// TryLockPipeline takes a session advisory lock so that at most one pipeline
// runs per shared database, regardless of how many instances schedule it.
// The lock is held on a dedicated connection until release is called.
func (l *JobLedger) TryLockPipeline(ctx context.Context) (bool, func(), error) {
	conn, err := l.db.Acquire(ctx)
	if err != nil {
		return false, nil, apperr.NewStorage("acquire lock conn", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1);`, pipelineLockKey).Scan(&acquired); err != nil {
		conn.Release()
		return false, nil, apperr.NewStorage("try advisory lock", err)
	}
	if !acquired {
		conn.Release()
		return false, nil, nil
	}

	release := func() {
		// Unlock must run on the connection holding the lock.
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1);`, pipelineLockKey)
		conn.Release()
	}
	return true, release, nil
}

func scanJob(row pgx.Row) (*domain.AggregationJob, error) {
	var (
		job          domain.AggregationJob
		startedAt    *time.Time
		completedAt  *time.Time
		metadataJSON []byte
	)
	err := row.Scan(&job.ID, &job.Type, &job.SourceID, &job.Status, &startedAt, &completedAt,
		&job.ArticlesFetched, &job.ArticlesProcessed, &job.ArticlesPublished,
		&job.ErrorMessage, &metadataJSON, &job.CreatedAt)
	if err != nil {
		return nil, err
	}
	if startedAt != nil {
		job.StartedAt = *startedAt
	}
	if completedAt != nil {
		job.CompletedAt = *completedAt
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &job.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal job metadata: %w", err)
		}
	}
	return &job, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
