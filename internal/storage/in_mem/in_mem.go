package in_mem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newspulse/aggregator/internal/domain"
	"github.com/newspulse/aggregator/internal/storage"
)

// Store is an in-memory implementation of the storage interfaces, used in
// tests and local runs without a database.
type Store struct {
	mu       sync.RWMutex
	articles map[uuid.UUID]domain.RawArticle
	jobs     map[uuid.UUID]domain.AggregationJob
	jobOrder []uuid.UUID
	sources  map[uuid.UUID]domain.NewsSource

	pipelineLocked bool
}

var (
	_ storage.ContentStore   = (*Store)(nil)
	_ storage.JobLedger      = (*Store)(nil)
	_ storage.SourceRegistry = (*Store)(nil)
	_ storage.PipelineLocker = (*Store)(nil)
	_ storage.SourceWriter   = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		articles: make(map[uuid.UUID]domain.RawArticle),
		jobs:     make(map[uuid.UUID]domain.AggregationJob),
		sources:  make(map[uuid.UUID]domain.NewsSource),
	}
}

func (s *Store) InsertRaw(ctx context.Context, articles []domain.RawArticle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range articles {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if a.FetchedAt.IsZero() {
			a.FetchedAt = time.Now().UTC()
		}
		s.articles[a.ID] = a
	}
	return len(articles), nil
}

func (s *Store) ListRaw(ctx context.Context, filter storage.RawFilter) ([]domain.RawArticle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.RawArticle
	for _, a := range s.articles {
		if !matches(a, filter) {
			continue
		}
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) UpdateRawMetadata(ctx context.Context, id uuid.UUID, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[id]
	if !ok {
		return storage.ErrNotFound
	}
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	for k, v := range metadata {
		a.Metadata[k] = v
	}
	s.articles[id] = a
	return nil
}

func (s *Store) DeleteRaw(ctx context.Context, filter storage.RawFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, a := range s.articles {
		if matches(a, filter) {
			delete(s.articles, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) CleanupStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, a := range s.articles {
		if a.FetchedAt.Before(cutoff) {
			delete(s.articles, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) Stats(ctx context.Context, days int) (storage.AggregationStats, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := storage.AggregationStats{WindowDays: days}
	for _, a := range s.articles {
		if a.FetchedAt.After(cutoff) {
			stats.RawArticles++
		}
	}
	for _, j := range s.jobs {
		if j.CreatedAt.Before(cutoff) {
			continue
		}
		stats.ArticlesFetched += j.ArticlesFetched
		stats.ArticlesPublished += j.ArticlesPublished
		switch j.Status {
		case domain.JobStatusCompleted:
			stats.CompletedJobs++
		case domain.JobStatusFailed:
			stats.FailedJobs++
		}
	}
	return stats, nil
}

func (s *Store) CreateJob(ctx context.Context, job *domain.AggregationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = *job
	s.jobOrder = append(s.jobOrder, job.ID)
	return nil
}

func (s *Store) UpdateJob(ctx context.Context, job *domain.AggregationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return storage.ErrNotFound
	}
	s.jobs[job.ID] = *job
	return nil
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*domain.AggregationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &j, nil
}

func (s *Store) ListJobs(ctx context.Context, limit int) ([]domain.AggregationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AggregationJob
	for i := len(s.jobOrder) - 1; i >= 0; i-- {
		out = append(out, s.jobs[s.jobOrder[i]])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) HasRunning(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, j := range s.jobs {
		if j.Status == domain.JobStatusRunning {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) TryLockPipeline(ctx context.Context) (bool, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pipelineLocked {
		return false, nil, nil
	}
	s.pipelineLocked = true
	release := func() {
		s.mu.Lock()
		s.pipelineLocked = false
		s.mu.Unlock()
	}
	return true, release, nil
}

// UpsertSource registers a source; used by the seed command and tests.
func (s *Store) UpsertSource(ctx context.Context, src domain.NewsSource) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Name is the conflict key, matching the relational schema.
	for id, existing := range s.sources {
		if existing.Name == src.Name {
			src.ID = id
		}
	}
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}
	if src.Health == "" {
		src.Health = domain.HealthStatusHealthy
	}
	s.sources[src.ID] = src
	return src.ID, nil
}

func (s *Store) ListReady(ctx context.Context) ([]domain.NewsSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.NewsSource
	for _, src := range s.sources {
		if src.Active {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastFetch.Before(out[j].LastFetch)
	})
	return out, nil
}

func (s *Store) ReportHealth(ctx context.Context, sourceID uuid.UUID, report domain.HealthReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[sourceID]
	if !ok {
		return storage.ErrNotFound
	}
	src.Health = report.Status
	src.LastFetch = time.Now().UTC()
	src.LastError = report.Error
	s.sources[sourceID] = src
	return nil
}

func matches(a domain.RawArticle, f storage.RawFilter) bool {
	if f.SourceID != nil && a.SourceID != *f.SourceID {
		return false
	}
	if f.PublishedBefore != nil && !a.PublishedAt.Before(*f.PublishedBefore) {
		return false
	}
	if f.PublishedAfter != nil && !a.PublishedAt.After(*f.PublishedAfter) {
		return false
	}
	return true
}
