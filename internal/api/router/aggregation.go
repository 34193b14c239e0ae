package router

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/newspulse/aggregator/internal/pipeline"
	"github.com/newspulse/aggregator/internal/storage"
	"github.com/newspulse/aggregator/internal/storage/es"
	"github.com/newspulse/aggregator/pkg/pagination"
)

const (
	defaultJobsLimit = 20
	defaultStatsDays = 7
)

type AggregationRouterOption func(*AggregationRouter)

// WithSearchMirror enables the /api/search endpoint backed by the given
// mirror.
func WithSearchMirror(mirror *es.Mirror) AggregationRouterOption {
	return func(r *AggregationRouter) {
		r.mirror = mirror
	}
}

// AggregationRouter binds the aggregation API onto an echo instance.
type AggregationRouter struct {
	e        *echo.Echo
	orch     *pipeline.Orchestrator
	ledger   storage.JobLedger
	registry storage.SourceRegistry
	store    storage.ContentStore
	mirror   *es.Mirror
}

func NewAggregationRouter(
	e *echo.Echo,
	orch *pipeline.Orchestrator,
	ledger storage.JobLedger,
	registry storage.SourceRegistry,
	store storage.ContentStore,
	opts ...AggregationRouterOption,
) *AggregationRouter {
	r := &AggregationRouter{
		e:        e,
		orch:     orch,
		ledger:   ledger,
		registry: registry,
		store:    store,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *AggregationRouter) Bind() {
	api := r.e.Group("/api")

	api.POST("/jobs/fetch", r.fetchHandler)
	api.POST("/jobs/process", r.processHandler)
	api.POST("/jobs/cleanup", r.cleanupHandler)
	api.POST("/pipeline", r.pipelineHandler)
	api.POST("/pipeline/schedule", r.scheduleHandler)
	api.GET("/jobs", r.listJobsHandler)
	api.GET("/jobs/:id", r.getJobHandler)
	api.GET("/sources", r.sourcesHandler)
	api.GET("/stats", r.statsHandler)

	if r.mirror != nil {
		api.GET("/search", r.searchHandler)
	}
}

// fetchHandler runs a fetch job across all ready sources.
// @Summary Run a fetch job
// @Description Fetch every active source, deduplicate and validate the batch, and persist the survivors
// @Tags jobs
// @Produce json
// @Success 200 {object} domain.AggregationJob
// @Failure 502 {object} map[string]string
// @Router /api/jobs/fetch [post]
func (r *AggregationRouter) fetchHandler(c echo.Context) error {
	job, err := r.orch.RunFetchJob(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}

// processHandler runs a processing job over stored raw articles.
// @Summary Run a processing job
// @Tags jobs
// @Produce json
// @Success 200 {object} domain.AggregationJob
// @Failure 502 {object} map[string]string
// @Router /api/jobs/process [post]
func (r *AggregationRouter) processHandler(c echo.Context) error {
	job, err := r.orch.RunProcessingJob(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}

// cleanupHandler runs a cleanup job that deletes stale raw articles.
// @Summary Run a cleanup job
// @Tags jobs
// @Produce json
// @Success 200 {object} domain.AggregationJob
// @Failure 500 {object} map[string]string
// @Router /api/jobs/cleanup [post]
func (r *AggregationRouter) cleanupHandler(c echo.Context) error {
	job, err := r.orch.RunCleanupJob(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}

// pipelineHandler runs fetch, process and cleanup back to back.
// @Summary Run the full pipeline
// @Description Runs fetch, processing and cleanup as independent jobs; a failed stage does not stop the rest
// @Tags pipeline
// @Produce json
// @Success 200 {object} pipeline.PipelineResult
// @Router /api/pipeline [post]
func (r *AggregationRouter) pipelineHandler(c echo.Context) error {
	// Stage failures are recorded on the per-stage jobs, so the result is
	// returned either way.
	result, _ := r.orch.RunFullPipeline(c.Request().Context())
	return c.JSON(http.StatusOK, result)
}

// scheduleHandler runs the pipeline unless one is already in flight.
// @Summary Run the pipeline if idle
// @Description Skips (409) when another pipeline run holds the lock or a job is still running
// @Tags pipeline
// @Produce json
// @Success 202 {object} map[string]bool
// @Failure 409 {object} map[string]string
// @Router /api/pipeline/schedule [post]
func (r *AggregationRouter) scheduleHandler(c echo.Context) error {
	started, err := r.orch.SchedulePeriodicAggregation(c.Request().Context())
	if err != nil {
		return err
	}
	if !started {
		return c.JSON(http.StatusConflict, map[string]string{"error": "aggregation already running"})
	}
	return c.JSON(http.StatusAccepted, map[string]bool{"started": true})
}

// listJobsHandler lists recent jobs, newest first.
// @Summary List jobs
// @Tags jobs
// @Produce json
// @Param limit query int false "max jobs to return" default(20)
// @Success 200 {array} domain.AggregationJob
// @Router /api/jobs [get]
func (r *AggregationRouter) listJobsHandler(c echo.Context) error {
	limit := defaultJobsLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		}
		limit = parsed
	}

	jobs, err := r.ledger.ListJobs(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, jobs)
}

// getJobHandler returns a single job by id.
// @Summary Get a job
// @Tags jobs
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} domain.AggregationJob
// @Failure 404 {object} map[string]string
// @Router /api/jobs/{id} [get]
func (r *AggregationRouter) getJobHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid job id"})
	}

	job, err := r.ledger.GetJob(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		}
		return err
	}
	return c.JSON(http.StatusOK, job)
}

// sourcesHandler lists active sources in fetch order.
// @Summary List ready sources
// @Tags sources
// @Produce json
// @Success 200 {array} domain.NewsSource
// @Router /api/sources [get]
func (r *AggregationRouter) sourcesHandler(c echo.Context) error {
	sources, err := r.registry.ListReady(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sources)
}

// statsHandler aggregates pipeline activity over a trailing window.
// @Summary Aggregation stats
// @Tags stats
// @Produce json
// @Param days query int false "trailing window in days" default(7)
// @Success 200 {object} storage.AggregationStats
// @Router /api/stats [get]
func (r *AggregationRouter) statsHandler(c echo.Context) error {
	days := defaultStatsDays
	if raw := c.QueryParam("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "days must be a positive integer"})
		}
		days = parsed
	}

	stats, err := r.store.Stats(c.Request().Context(), days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// searchHandler queries the search mirror. Only bound when a mirror is
// configured.
// @Summary Full-text search over fetched articles
// @Tags search
// @Produce json
// @Param query query string true "search query"
// @Param page query int false "page number" default(1)
// @Param size query int false "page size" default(10)
// @Success 200 {object} pagination.OffsetResult[es.Document]
// @Failure 400 {object} map[string]string
// @Router /api/search [get]
func (r *AggregationRouter) searchHandler(c echo.Context) error {
	query := c.QueryParam("query")
	if query == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "query parameter is required"})
	}

	var page pagination.OffsetRequest
	if err := c.Bind(&page); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid pagination parameters"})
	}
	page.Validate()

	results, err := r.mirror.Search(c.Request().Context(), query, page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}
