// Command seed loads source configurations from a YAML file into the
// source registry.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/newspulse/aggregator/internal/reader"
	"github.com/newspulse/aggregator/internal/storage"
	"github.com/newspulse/aggregator/internal/storage/factory"
	"github.com/newspulse/aggregator/pkg/config/env"
)

func main() {
	if err := env.LoadDotEnv("cmd/seed/.env"); err != nil {
		slog.Info("Skipping .env ...", "error", err)
	}

	sourcesPath := os.Getenv("SOURCES_PATH")
	if sourcesPath == "" {
		sourcesPath = "sources.yaml"
	}

	storageCfg, err := factory.LoadEnv()
	if err != nil {
		slog.Error("failed to load storage configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	file, err := os.Open(sourcesPath)
	if err != nil {
		slog.Error("failed to open sources file", "path", sourcesPath, "error", err)
		os.Exit(1)
	}
	defer file.Close()

	sources, err := reader.NewSourcesLoader(file).Load()
	if err != nil {
		slog.Error("failed to load sources", "error", err)
		os.Exit(1)
	}

	backends, err := factory.NewBackends(ctx, storageCfg)
	if err != nil {
		slog.Error("failed to create storage backends", "error", err)
		os.Exit(1)
	}
	defer backends.Close()

	writer, ok := backends.SourceRegistry.(storage.SourceWriter)
	if !ok {
		slog.Error("storage backend does not support seeding sources", "storageType", storageCfg.Type)
		os.Exit(1)
	}

	for _, src := range sources {
		id, err := writer.UpsertSource(ctx, src)
		if err != nil {
			slog.Error("failed to upsert source", "name", src.Name, "error", err)
			os.Exit(1)
		}
		slog.Info("Seeded source", "name", src.Name, "type", src.Type, "id", id)
	}

	slog.Info("Seeding complete", "sources", len(sources))
}
