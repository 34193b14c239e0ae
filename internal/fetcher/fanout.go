package fetcher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/newspulse/aggregator/internal/domain"
)

// SourceFailure records one source's failed fetch in a run.
type SourceFailure struct {
	SourceID   uuid.UUID `json:"sourceId"`
	SourceName string    `json:"sourceName"`
	Error      string    `json:"error"`
}

// Summary aggregates one fetch-all-sources run. Articles holds the accepted
// batch across all sources; per-source ordering is newest first, order
// across sources is unspecified.
type Summary struct {
	Articles  []domain.RawArticle
	Succeeded int
	Failed    int
	Failures  []SourceFailure
}

// FetchAll fetches every ready source with bounded concurrency. Sources run
// in batches so one slow source cannot serialize the run, and one failing
// source never aborts the others.
func (f *SourceFetcher) FetchAll(ctx context.Context) (Summary, error) {
	sources, err := f.registry.ListReady(ctx)
	if err != nil {
		return Summary{}, err
	}
	if len(sources) == 0 {
		slog.Info("no ready sources to fetch")
		return Summary{}, nil
	}

	slog.Info("starting fetch across sources", "sources", len(sources), "batch_size", f.batchSize)

	var (
		mu      sync.Mutex
		summary Summary
	)

	for start := 0; start < len(sources); start += f.batchSize {
		end := start + f.batchSize
		if end > len(sources) {
			end = len(sources)
		}

		var wg sync.WaitGroup
		for _, source := range sources[start:end] {
			wg.Add(1)
			go func(src domain.NewsSource) {
				defer wg.Done()

				articles, err := f.Fetch(ctx, src)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					summary.Failed++
					summary.Failures = append(summary.Failures, SourceFailure{
						SourceID:   src.ID,
						SourceName: src.Name,
						Error:      err.Error(),
					})
					slog.Error("source fetch failed", "source", src.Name, "error", err)
					return
				}
				summary.Succeeded++
				summary.Articles = append(summary.Articles, articles...)
			}(source)
		}
		wg.Wait()
	}

	slog.Info("fetch across sources completed",
		"articles", len(summary.Articles),
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return summary, nil
}
