package in_mem

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newspulse/aggregator/internal/domain"
	"github.com/newspulse/aggregator/internal/storage"
)

func TestInsertAndListRaw_NewestFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	old := domain.RawArticle{Title: "old", URL: "https://example.com/old", PublishedAt: time.Now().Add(-2 * time.Hour)}
	recent := domain.RawArticle{Title: "recent", URL: "https://example.com/recent", PublishedAt: time.Now()}

	n, err := s.InsertRaw(ctx, []domain.RawArticle{old, recent})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out, err := s.ListRaw(ctx, storage.RawFilter{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "recent", out[0].Title)
	assert.NotEqual(t, uuid.Nil, out[0].ID)
	assert.False(t, out[0].FetchedAt.IsZero())
}

func TestListRaw_FilterBySource(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	want := uuid.New()
	_, err := s.InsertRaw(ctx, []domain.RawArticle{
		{Title: "mine", URL: "https://example.com/1", SourceID: want},
		{Title: "other", URL: "https://example.com/2", SourceID: uuid.New()},
	})
	require.NoError(t, err)

	out, err := s.ListRaw(ctx, storage.RawFilter{SourceID: &want})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "mine", out[0].Title)
}

func TestUpdateRawMetadata_MergesKeys(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	id := uuid.New()
	_, err := s.InsertRaw(ctx, []domain.RawArticle{{
		ID: id, Title: "a", URL: "https://example.com/a",
		Metadata: map[string]any{"guid": "g-1"},
	}})
	require.NoError(t, err)

	require.NoError(t, s.UpdateRawMetadata(ctx, id, map[string]any{"processed": true}))

	out, err := s.ListRaw(ctx, storage.RawFilter{})
	require.NoError(t, err)
	assert.Equal(t, "g-1", out[0].Metadata["guid"])
	assert.Equal(t, true, out[0].Metadata["processed"])

	err = s.UpdateRawMetadata(ctx, uuid.New(), map[string]any{"x": 1})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCleanupStale_DeletesOnlyOldRows(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.InsertRaw(ctx, []domain.RawArticle{
		{Title: "stale", URL: "https://example.com/s", FetchedAt: time.Now().UTC().Add(-10 * 24 * time.Hour)},
		{Title: "fresh", URL: "https://example.com/f", FetchedAt: time.Now().UTC()},
	})
	require.NoError(t, err)

	deleted, err := s.CleanupStale(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	out, err := s.ListRaw(ctx, storage.RawFilter{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "fresh", out[0].Title)
}

func TestUpsertSource_ConflictsOnName(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	first, err := s.UpsertSource(ctx, domain.NewsSource{Name: "Example", URL: "https://example.com/v1", Active: true})
	require.NoError(t, err)

	second, err := s.UpsertSource(ctx, domain.NewsSource{Name: "Example", URL: "https://example.com/v2", Active: true})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	sources, err := s.ListReady(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "https://example.com/v2", sources[0].URL)
}

func TestListReady_StalestFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	neverID, err := s.UpsertSource(ctx, domain.NewsSource{Name: "never-fetched", URL: "https://a.example.com", Active: true})
	require.NoError(t, err)
	fetchedID, err := s.UpsertSource(ctx, domain.NewsSource{Name: "fetched", URL: "https://b.example.com", Active: true})
	require.NoError(t, err)
	_, err = s.UpsertSource(ctx, domain.NewsSource{Name: "inactive", URL: "https://c.example.com", Active: false})
	require.NoError(t, err)

	require.NoError(t, s.ReportHealth(ctx, fetchedID, domain.HealthReport{Status: domain.HealthStatusHealthy}))

	sources, err := s.ListReady(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, neverID, sources[0].ID)
	assert.Equal(t, fetchedID, sources[1].ID)
}

func TestReportHealth_RecordsError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	id, err := s.UpsertSource(ctx, domain.NewsSource{Name: "flaky", URL: "https://f.example.com", Active: true})
	require.NoError(t, err)

	require.NoError(t, s.ReportHealth(ctx, id, domain.HealthReport{
		Status: domain.HealthStatusError,
		Error:  "connection refused",
	}))

	sources, err := s.ListReady(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, domain.HealthStatusError, sources[0].Health)
	assert.Equal(t, "connection refused", sources[0].LastError)
	assert.False(t, sources[0].LastFetch.IsZero())

	err = s.ReportHealth(ctx, uuid.New(), domain.HealthReport{Status: domain.HealthStatusHealthy})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTryLockPipeline_Exclusive(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	acquired, release, err := s.TryLockPipeline(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	again, _, err := s.TryLockPipeline(ctx)
	require.NoError(t, err)
	assert.False(t, again)

	release()

	acquired, release, err = s.TryLockPipeline(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)
	release()
}
