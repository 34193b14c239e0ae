package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newspulse/aggregator/internal/domain"
)

func TestNormalizeURL_StripsTrackingParams(t *testing.T) {
	got := NormalizeURL("https://x.com/a?utm_source=y")

	assert.Equal(t, "https://x.com/a", got)
}

func TestNormalizeURL_Idempotent(t *testing.T) {
	inputs := []string{
		"https://X.com/A?utm_source=y&ref=home&id=7#section",
		"https://example.com/path?b=2&a=1",
		"not a url at all",
	}

	for _, in := range inputs {
		once := NormalizeURL(in)
		assert.Equal(t, once, NormalizeURL(once), "input %q", in)
	}
}

func TestNormalizeURL_StripsFragmentKeepsRealParams(t *testing.T) {
	got := NormalizeURL("https://news.example.com/story?id=42&utm_medium=rss&source=feed#comments")

	assert.Equal(t, "https://news.example.com/story?id=42", got)
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "bitcoin hits 50k", NormalizeTitle("Bitcoin Hits 50K!!"))
	assert.Equal(t, "hello world", NormalizeTitle("  Hello,   World?  "))
}

func TestTitleSimilarity_Symmetric(t *testing.T) {
	a := NormalizeTitle("Bitcoin hits $50k")
	b := NormalizeTitle("Ethereum upgrade ships today")

	assert.Equal(t, TitleSimilarity(a, b), TitleSimilarity(b, a))
	assert.Equal(t, 1.0, TitleSimilarity(a, a))
}

func TestDedupe_IdenticalURLKeepsNewer(t *testing.T) {
	older := article("Original headline", "https://x.com/a?utm_source=feed", time.Now().Add(-2*time.Hour))
	newer := article("Updated headline words entirely different", "https://x.com/a", time.Now())

	got := New().Dedupe([]domain.RawArticle{older, newer})

	require.Len(t, got, 1)
	assert.Equal(t, newer.Title, got[0].Title)
}

func TestDedupe_SimilarTitlesCollapse(t *testing.T) {
	a := article("Bitcoin hits $50k", "https://a.com/1", time.Now().Add(-time.Hour))
	b := article("Bitcoin Hits 50K!!", "https://b.com/2", time.Now())

	got := New().Dedupe([]domain.RawArticle{a, b})

	require.Len(t, got, 1)
	assert.Equal(t, b.URL, got[0].URL)
}

func TestDedupe_DistinctStoriesSurvive(t *testing.T) {
	now := time.Now()
	batch := []domain.RawArticle{
		article("Bitcoin hits $50k", "https://a.com/1", now.Add(-time.Hour)),
		article("Bitcoin Hits 50K!!", "https://b.com/2", now),
		article("Ethereum upgrade ships", "https://c.com/3", now.Add(-30*time.Minute)),
	}

	got := New().Dedupe(batch)

	require.Len(t, got, 2)
	titles := []string{got[0].Title, got[1].Title}
	assert.Contains(t, titles, "Bitcoin Hits 50K!!")
	assert.Contains(t, titles, "Ethereum upgrade ships")
}

func TestDedupe_NewestFirstOrdering(t *testing.T) {
	now := time.Now()
	batch := []domain.RawArticle{
		article("First story about markets", "https://a.com/1", now.Add(-2*time.Hour)),
		article("Second story about weather", "https://a.com/2", now),
		article("Third story about sports", "https://a.com/3", now.Add(-time.Hour)),
	}

	got := New().Dedupe(batch)

	require.Len(t, got, 3)
	assert.Equal(t, "Second story about weather", got[0].Title)
	assert.Equal(t, "Third story about sports", got[1].Title)
	assert.Equal(t, "First story about markets", got[2].Title)
}

func article(title, url string, published time.Time) domain.RawArticle {
	return domain.RawArticle{
		Title:       title,
		URL:         url,
		PublishedAt: published,
	}
}
