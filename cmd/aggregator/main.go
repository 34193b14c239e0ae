// Package main NewsPulse Aggregator API
// @title NewsPulse Aggregator API
// @version 1.0
// @description News ingestion, deduplication and aggregation pipeline
// @contact.name API Support
// @contact.email support@newspulse.io
// @license.name Apache 2.0
// @license.url https://opensource.org/licenses/Apache-2.0
// @BasePath /
package main

import (
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"

	_ "github.com/newspulse/aggregator/docs"
	"github.com/newspulse/aggregator/internal/api/router"
	server2 "github.com/newspulse/aggregator/internal/api/server"
	"github.com/newspulse/aggregator/internal/dedup"
	"github.com/newspulse/aggregator/internal/fetcher"
	"github.com/newspulse/aggregator/internal/pipeline"
	"github.com/newspulse/aggregator/internal/processing"
	"github.com/newspulse/aggregator/internal/quality"
	"github.com/newspulse/aggregator/internal/storage/factory"
	pkgserver "github.com/newspulse/aggregator/pkg/server"
)

func main() {
	slog.SetLogLoggerLevel(slog.LevelDebug)

	sCfg, err := server2.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	healthChecker := pkgserver.NewOkHealthChecker()

	s := server2.New(sCfg, healthChecker).
		SetupMiddlewares().
		SetupErrorHandler().
		SetupHealthChecks("/health").
		SetupOpenApi("/swagger/*")

	s.Echo.GET("/", func(c echo.Context) error {
		return c.String(200, "NewsPulse Aggregator is running")
	})

	appSettings := NewAppConfig()
	cfg, err := appSettings.Load()
	if err != nil {
		slog.Error("Failed to load app configuration", "error", err)
		os.Exit(1)
		return
	}

	backends, err := factory.NewBackends(s.Context(), cfg.StorageConfig)
	if err != nil {
		slog.Error("Failed to create storage backends", "error", err)
		os.Exit(1)
		return
	}

	mirror, err := factory.NewSearchMirror(s.Context(), cfg.StorageConfig)
	if err != nil {
		slog.Error("Failed to create search mirror", "error", err)
		os.Exit(1)
		return
	}

	sourceFetcher := fetcher.New(backends.SourceRegistry,
		fetcher.WithDeduplicator(dedup.New()),
		fetcher.WithValidator(quality.New()),
	)

	var processor pipeline.Processor = processing.Noop{}
	if cfg.ProcessorURL != "" {
		processor = processing.NewClient(cfg.ProcessorURL, cfg.ProcessorAPIKey)
		slog.Info("Downstream processor enabled", "url", cfg.ProcessorURL)
	} else {
		slog.Info("No downstream processor configured, processing jobs are no-ops")
	}

	var orchOpts []pipeline.Option
	var routerOpts []router.AggregationRouterOption
	if mirror != nil {
		orchOpts = append(orchOpts, pipeline.WithSearchMirror(mirror))
		routerOpts = append(routerOpts, router.WithSearchMirror(mirror))
		slog.Info("Search mirror enabled")
	}

	orch := pipeline.New(sourceFetcher, backends.ContentStore, backends.JobLedger, processor, orchOpts...)

	aggRouter := router.NewAggregationRouter(
		s.Echo, orch, backends.JobLedger, backends.SourceRegistry, backends.ContentStore,
		routerOpts...,
	)
	aggRouter.Bind()

	if cfg.ScheduleInterval > 0 {
		scheduler := pipeline.NewScheduler(orch, cfg.ScheduleInterval)
		go scheduler.Start(s.Context())
		slog.Info("Periodic aggregation enabled", "interval", cfg.ScheduleInterval)
	}

	go func() {
		<-s.ShutdownSignal()
		slog.Info("Shutdown started, cleaning up resources...")
		backends.Close()
	}()

	err = s.Start()
	if err != nil {
		s.Echo.Logger.Error("Failed to start server: ", err)
		os.Exit(1)
	}
}
