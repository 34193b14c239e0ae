package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/newspulse/aggregator/internal/apperr"
	"github.com/newspulse/aggregator/internal/domain"
	"github.com/newspulse/aggregator/internal/quality"
	"github.com/newspulse/aggregator/internal/storage"
)

const (
	userAgent = "newspulse-aggregator/1.0"

	defaultTimeout   = 30 * time.Second
	defaultBatchSize = 5

	summaryMaxLen   = 200
	maxResponseSize = 10 << 20 // 10MB
)

// Deduplicator filters near-duplicates out of one source's batch.
type Deduplicator interface {
	Dedupe(batch []domain.RawArticle) []domain.RawArticle
}

// Validator scores one article; invalid articles are dropped from the batch.
type Validator interface {
	Validate(article domain.RawArticle) quality.Result
}

// SourceFetcher retrieves raw articles from configured sources and reports
// fetch health to the source registry.
type SourceFetcher struct {
	client    *http.Client
	registry  storage.SourceRegistry
	dedup     Deduplicator
	validator Validator
	batchSize int
}

type Option func(*SourceFetcher)

func WithHTTPClient(client *http.Client) Option {
	return func(f *SourceFetcher) {
		f.client = client
	}
}

// WithDeduplicator enables per-batch duplicate removal after each fetch.
func WithDeduplicator(d Deduplicator) Option {
	return func(f *SourceFetcher) {
		f.dedup = d
	}
}

// WithValidator enables quality filtering after each fetch.
func WithValidator(v Validator) Option {
	return func(f *SourceFetcher) {
		f.validator = v
	}
}

// WithBatchSize overrides how many sources are fetched in flight at once.
func WithBatchSize(size int) Option {
	return func(f *SourceFetcher) {
		if size > 0 {
			f.batchSize = size
		}
	}
}

func New(registry storage.SourceRegistry, opts ...Option) *SourceFetcher {
	f := &SourceFetcher{
		client:    &http.Client{Timeout: defaultTimeout},
		registry:  registry,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves and normalizes articles from one source. Health is
// reported to the registry exactly once per attempt, success or failure.
func (f *SourceFetcher) Fetch(ctx context.Context, source domain.NewsSource) ([]domain.RawArticle, error) {
	start := time.Now()

	articles, err := f.fetch(ctx, source)

	report := domain.HealthReport{
		Status:    domain.HealthStatusHealthy,
		Latency:   time.Since(start),
		ItemCount: len(articles),
	}
	if err != nil {
		report.Status = domain.HealthStatusError
		report.Error = err.Error()
	}
	if rerr := f.registry.ReportHealth(ctx, source.ID, report); rerr != nil {
		slog.Error("failed to report source health", "source", source.Name, "error", rerr)
	}

	return articles, err
}

func (f *SourceFetcher) fetch(ctx context.Context, source domain.NewsSource) ([]domain.RawArticle, error) {
	switch source.Type {
	case domain.SourceTypeRSS:
		return f.fetchFeed(ctx, source)
	case domain.SourceTypeAPI:
		return f.fetchAPI(ctx, source)
	case domain.SourceTypeScraper:
		return f.fetchScrape(ctx, source)
	default:
		return nil, fmt.Errorf("unsupported source type %q for source %s", source.Type, source.Name)
	}
}

// get performs the HTTP request for a source, honoring its per-source
// timeout and custom headers. Non-2xx responses become FetchErrors.
func (f *SourceFetcher) get(ctx context.Context, source domain.NewsSource, rawURL string) ([]byte, error) {
	timeout := source.FetchTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperr.NewFetch(source.Name, err)
	}

	req.Header.Set("User-Agent", userAgent)
	for k, v := range source.Headers {
		req.Header.Set(k, v)
	}
	if source.Type == domain.SourceTypeAPI && source.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+source.APIKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperr.NewFetch(source.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.NewFetchStatus(source.Name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, apperr.NewFetch(source.Name, fmt.Errorf("read body: %w", err))
	}
	return body, nil
}

// filterBatch applies deduplication and quality validation to one source's
// batch, when configured.
func (f *SourceFetcher) filterBatch(source domain.NewsSource, batch []domain.RawArticle) []domain.RawArticle {
	fetched := len(batch)

	if f.dedup != nil {
		batch = f.dedup.Dedupe(batch)
	}

	if f.validator != nil {
		accepted := batch[:0]
		for _, article := range batch {
			res := f.validator.Validate(article)
			if !res.Valid {
				slog.Debug("rejecting low-quality article",
					"source", source.Name,
					"title", article.Title,
					"score", res.Score,
					"issues", res.Issues,
				)
				continue
			}
			accepted = append(accepted, article)
		}
		batch = accepted
	}

	if dropped := fetched - len(batch); dropped > 0 {
		slog.Info("filtered fetch batch", "source", source.Name, "fetched", fetched, "accepted", len(batch), "dropped", dropped)
	}
	return batch
}

// parseTime tries the timestamp layouts seen across feeds and APIs.
// Unparsable values fall back to the fetch time so date-sanity checks still
// apply downstream.
func parseTime(value string) time.Time {
	layouts := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
		time.RFC822Z,
		time.RFC822,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
