package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newspulse/aggregator/internal/dedup"
	"github.com/newspulse/aggregator/internal/domain"
	"github.com/newspulse/aggregator/internal/quality"
)

func TestFetchAll_FailureIsolation(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(rssFixture))
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	badID := uuid.New()
	registry := &stubRegistry{
		sources: []domain.NewsSource{
			rssSource(good.URL),
			{ID: badID, Name: "broken-source", URL: bad.URL, Type: domain.SourceTypeRSS, Active: true},
		},
	}

	summary, err := New(registry).FetchAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, summary.Articles, 1)

	require.Len(t, summary.Failures, 1)
	assert.Equal(t, badID, summary.Failures[0].SourceID)
	assert.Equal(t, "broken-source", summary.Failures[0].SourceName)
	assert.NotEmpty(t, summary.Failures[0].Error)

	// Every attempt, success or failure, reported health exactly once.
	assert.Len(t, registry.Reports(), 2)
}

func TestFetchAll_BoundedConcurrency(t *testing.T) {
	const sourceCount = 7

	var inFlight, peak int32
	mu := make(chan struct{}, 1)
	mu <- struct{}{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-mu
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu <- struct{}{}

		time.Sleep(20 * time.Millisecond)

		<-mu
		inFlight--
		mu <- struct{}{}

		_, _ = w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	registry := &stubRegistry{}
	for i := 0; i < sourceCount; i++ {
		registry.sources = append(registry.sources, rssSource(srv.URL))
	}

	summary, err := New(registry, WithBatchSize(3)).FetchAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, sourceCount, summary.Succeeded)
	assert.LessOrEqual(t, peak, int32(3))
}

func TestFetchAll_AppliesDedupAndValidation(t *testing.T) {
	feed := `<?xml version="1.0"?>
<rss version="2.0"><channel>
  <item>
    <title>Bitcoin hits $50k</title>
    <link>https://example.com/a</link>
    <description>` + longDescription + `</description>
    <pubDate>Mon, 02 Jun 2025 10:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Bitcoin Hits 50K!!</title>
    <link>https://example.com/b</link>
    <description>` + longDescription + `</description>
    <pubDate>Mon, 02 Jun 2025 11:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Ethereum upgrade ships</title>
    <link>https://example.com/c</link>
    <description>` + longDescription + `</description>
    <pubDate>Mon, 02 Jun 2025 09:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Spam here</title>
    <link>https://example.com/d</link>
    <description>click here buy now limited time</description>
    <pubDate>Mon, 02 Jun 2025 08:00:00 +0000</pubDate>
  </item>
</channel></rss>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	registry := &stubRegistry{sources: []domain.NewsSource{rssSource(srv.URL)}}
	validator := quality.New(quality.WithNow(func() time.Time {
		return time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	}))

	f := New(registry,
		WithDeduplicator(dedup.New()),
		WithValidator(validator),
	)

	summary, err := f.FetchAll(context.Background())
	require.NoError(t, err)

	// The two Bitcoin headlines collapse to one (newest kept) and the spam
	// item fails validation.
	require.Len(t, summary.Articles, 2)
	assert.Equal(t, "Bitcoin Hits 50K!!", summary.Articles[0].Title)
	assert.Equal(t, "Ethereum upgrade ships", summary.Articles[1].Title)
}

const longDescription = "A substantive report with enough body text to clear the minimum content length used by the quality validator in this suite."
