package factory

import (
	"context"
	"fmt"

	"github.com/newspulse/aggregator/internal/storage"
	"github.com/newspulse/aggregator/internal/storage/es"
	"github.com/newspulse/aggregator/internal/storage/in_mem"
	"github.com/newspulse/aggregator/internal/storage/pg"
)

// Backends bundles the storage collaborators the pipeline depends on,
// backed by the same engine.
type Backends struct {
	ContentStore   storage.ContentStore
	JobLedger      storage.JobLedger
	SourceRegistry storage.SourceRegistry

	close func()
}

func (b *Backends) Close() {
	if b.close != nil {
		b.close()
	}
}

// NewBackends creates the storage backends for the configured engine.
func NewBackends(ctx context.Context, cfg *StorageConfig) (*Backends, error) {
	switch cfg.Type {
	case storage.PG:
		pool, err := pg.NewConnectionPool(ctx, *cfg.Pg)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
		}
		return &Backends{
			ContentStore:   pg.NewContentStore(pool),
			JobLedger:      pg.NewJobLedger(pool),
			SourceRegistry: pg.NewSourceRegistry(pool),
			close:          pool.Close,
		}, nil

	case storage.InMem:
		store := in_mem.NewStore()
		return &Backends{
			ContentStore:   store,
			JobLedger:      store,
			SourceRegistry: store,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// NewSearchMirror creates the optional Elasticsearch mirror; it returns
// (nil, nil) when mirroring is not configured.
func NewSearchMirror(ctx context.Context, cfg *StorageConfig) (*es.Mirror, error) {
	if cfg.Mirror == nil {
		return nil, nil
	}

	mirror, err := es.NewMirror(ctx, *cfg.Mirror)
	if err != nil {
		return nil, fmt.Errorf("failed to create search mirror: %w", err)
	}
	return mirror, nil
}
