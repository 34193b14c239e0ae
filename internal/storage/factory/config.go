package factory

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/newspulse/aggregator/internal/storage"
	"github.com/newspulse/aggregator/internal/storage/es"
	"github.com/newspulse/aggregator/internal/storage/pg"
)

type StorageConfig struct {
	storage.Type
	Pg     *pg.PoolConfig
	Mirror *es.ClientConfig
}

func LoadEnv() (*StorageConfig, error) {
	storageType := (storage.Type)(os.Getenv("STORAGE_TYPE"))
	if storageType == "" {
		storageType = storage.InMem
		slog.Info("STORAGE_TYPE not set, defaulting to in-memory storage")
	}
	if storageType != storage.PG && storageType != storage.InMem {
		slog.Error("Invalid STORAGE_TYPE environment variable value", "value", storageType)
		return nil, fmt.Errorf(
			"invalid STORAGE_TYPE environment variable value: %s, expected one of %v",
			storageType,
			[]storage.Type{storage.PG, storage.InMem})
	}

	var pgCfg *pg.PoolConfig
	if storageType == storage.PG {
		pgCfg = &pg.PoolConfig{
			ConnStr: os.Getenv("PG_CONNECTION_STRING"),
		}
		if pgCfg.ConnStr == "" {
			slog.Error("PostgreSQL connection string is not set")
			return nil, fmt.Errorf("PostgreSQL connection string is not set")
		}
	}

	var mirrorCfg *es.ClientConfig
	if os.Getenv("SEARCH_MIRROR_ENABLED") == "true" {
		mirrorCfg = &es.ClientConfig{
			Addresses: strings.Split(os.Getenv("ES_ADDRESSES"), ","),
			IndexName: os.Getenv("ES_INDEX_NAME"),
			Username:  os.Getenv("ES_USERNAME"),
			Password:  os.Getenv("ES_PASSWORD"),
		}
		if len(mirrorCfg.Addresses) == 0 || mirrorCfg.Addresses[0] == "" || mirrorCfg.IndexName == "" {
			slog.Error("Elasticsearch mirror configuration is incomplete", "addresses", mirrorCfg.Addresses, "indexName", mirrorCfg.IndexName)
			return nil, fmt.Errorf("elasticsearch mirror configuration is incomplete: addresses or index name is missing")
		}
	}

	return &StorageConfig{
		Type:   storageType,
		Pg:     pgCfg,
		Mirror: mirrorCfg,
	}, nil
}
