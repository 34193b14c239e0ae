package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newspulse/aggregator/internal/domain"
	"github.com/newspulse/aggregator/internal/fetcher"
	"github.com/newspulse/aggregator/internal/pipeline"
	"github.com/newspulse/aggregator/internal/storage/in_mem"
)

type stubFetcher struct {
	summary fetcher.Summary
	err     error
}

func (f *stubFetcher) FetchAll(ctx context.Context) (fetcher.Summary, error) {
	return f.summary, f.err
}

type stubProcessor struct {
	result pipeline.ProcessResult
}

func (p *stubProcessor) ProcessRawArticles(ctx context.Context, batchSize int) (pipeline.ProcessResult, error) {
	return p.result, nil
}

func testRouter(t *testing.T) (*echo.Echo, *in_mem.Store) {
	t.Helper()

	store := in_mem.NewStore()
	f := &stubFetcher{summary: fetcher.Summary{
		Articles: []domain.RawArticle{{
			Title:       "A headline long enough to score",
			URL:         "https://example.com/story",
			Content:     "body",
			PublishedAt: time.Now(),
		}},
		Succeeded: 1,
	}}
	orch := pipeline.New(f, store, store, &stubProcessor{result: pipeline.ProcessResult{Processed: 1}})

	e := echo.New()
	NewAggregationRouter(e, orch, store, store, store).Bind()
	return e, store
}

func doRequest(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestFetchEndpoint_ReturnsCompletedJob(t *testing.T) {
	e, _ := testRouter(t)

	rec := doRequest(e, http.MethodPost, "/api/jobs/fetch")
	require.Equal(t, http.StatusOK, rec.Code)

	var job domain.AggregationJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.ArticlesFetched)
}

func TestListJobs_ReturnsNewestFirst(t *testing.T) {
	e, _ := testRouter(t)

	doRequest(e, http.MethodPost, "/api/jobs/fetch")
	doRequest(e, http.MethodPost, "/api/jobs/process")

	rec := doRequest(e, http.MethodGet, "/api/jobs")
	require.Equal(t, http.StatusOK, rec.Code)

	var jobs []domain.AggregationJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	require.Len(t, jobs, 2)
	assert.Equal(t, domain.JobTypeProcess, jobs[0].Type)
}

func TestListJobs_RejectsBadLimit(t *testing.T) {
	e, _ := testRouter(t)

	rec := doRequest(e, http.MethodGet, "/api/jobs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob_NotFound(t *testing.T) {
	e, _ := testRouter(t)

	rec := doRequest(e, http.MethodGet, "/api/jobs/0b6a6a1e-22c4-45f7-9b4e-3f2f61d8a111")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJob_InvalidID(t *testing.T) {
	e, _ := testRouter(t)

	rec := doRequest(e, http.MethodGet, "/api/jobs/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob_RoundTrip(t *testing.T) {
	e, _ := testRouter(t)

	rec := doRequest(e, http.MethodPost, "/api/jobs/cleanup")
	require.Equal(t, http.StatusOK, rec.Code)

	var created domain.AggregationJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(e, http.MethodGet, "/api/jobs/"+created.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched domain.AggregationJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, created.ID, fetched.ID)
}

func TestPipelineEndpoint_RunsAllStages(t *testing.T) {
	e, store := testRouter(t)

	rec := doRequest(e, http.MethodPost, "/api/pipeline")
	require.Equal(t, http.StatusOK, rec.Code)

	var result pipeline.PipelineResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotNil(t, result.FetchJob)
	require.NotNil(t, result.ProcessJob)
	require.NotNil(t, result.CleanupJob)

	jobs, err := store.ListJobs(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)
}

func TestScheduleEndpoint_ConflictWhenLocked(t *testing.T) {
	e, store := testRouter(t)

	acquired, release, err := store.TryLockPipeline(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)
	defer release()

	rec := doRequest(e, http.MethodPost, "/api/pipeline/schedule")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestScheduleEndpoint_StartsWhenIdle(t *testing.T) {
	e, _ := testRouter(t)

	rec := doRequest(e, http.MethodPost, "/api/pipeline/schedule")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body["started"])
}

func TestSourcesEndpoint_ListsActiveSources(t *testing.T) {
	e, store := testRouter(t)

	_, err := store.UpsertSource(context.Background(), domain.NewsSource{
		Name: "Example", URL: "https://example.com/feed", Type: domain.SourceTypeRSS, Active: true,
	})
	require.NoError(t, err)
	_, err = store.UpsertSource(context.Background(), domain.NewsSource{
		Name: "Dormant", URL: "https://example.org/feed", Type: domain.SourceTypeRSS, Active: false,
	})
	require.NoError(t, err)

	rec := doRequest(e, http.MethodGet, "/api/sources")
	require.Equal(t, http.StatusOK, rec.Code)

	var sources []domain.NewsSource
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sources))
	require.Len(t, sources, 1)
	assert.Equal(t, "Example", sources[0].Name)
}

func TestStatsEndpoint_DefaultWindow(t *testing.T) {
	e, _ := testRouter(t)

	doRequest(e, http.MethodPost, "/api/jobs/fetch")

	rec := doRequest(e, http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		WindowDays      int `json:"windowDays"`
		ArticlesFetched int `json:"articlesFetched"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 7, stats.WindowDays)
	assert.Equal(t, 1, stats.ArticlesFetched)
}

func TestSearchEndpoint_NotBoundWithoutMirror(t *testing.T) {
	e, _ := testRouter(t)

	rec := doRequest(e, http.MethodGet, "/api/search?query=bitcoin")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
