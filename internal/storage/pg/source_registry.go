package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newspulse/aggregator/internal/apperr"
	"github.com/newspulse/aggregator/internal/domain"
	"github.com/newspulse/aggregator/internal/storage"
)

// SourceRegistry reads configured news sources from Postgres and records
// per-attempt fetch health.
type SourceRegistry struct {
	db *pgxpool.Pool
}

var (
	_ storage.SourceRegistry = (*SourceRegistry)(nil)
	_ storage.SourceWriter   = (*SourceRegistry)(nil)
)

func NewSourceRegistry(pool *ConnectionPool) *SourceRegistry {
	return &SourceRegistry{db: pool.GetConn()}
}

func (r *SourceRegistry) ListReady(ctx context.Context) ([]domain.NewsSource, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, name, url, source_type, api_endpoint, api_key, headers,
               categories, selectors, active, fetch_timeout_seconds,
               last_fetch, health_status, last_error
        FROM news_sources
        WHERE active = TRUE
        ORDER BY last_fetch ASC NULLS FIRST;
    `)
	if err != nil {
		return nil, apperr.NewStorage("list ready sources", err)
	}
	defer rows.Close()

	var out []domain.NewsSource
	for rows.Next() {
		var (
			src            domain.NewsSource
			headersJSON    []byte
			selectorsJSON  []byte
			timeoutSeconds *int
			lastFetch      *time.Time
			health         *string
			lastError      *string
		)
		err := rows.Scan(&src.ID, &src.Name, &src.URL, &src.Type, &src.APIEndpoint, &src.APIKey,
			&headersJSON, &src.Categories, &selectorsJSON, &src.Active, &timeoutSeconds,
			&lastFetch, &health, &lastError)
		if err != nil {
			return nil, apperr.NewStorage("list ready sources", err)
		}

		if len(headersJSON) > 0 {
			if err := json.Unmarshal(headersJSON, &src.Headers); err != nil {
				return nil, apperr.NewStorage("list ready sources", fmt.Errorf("unmarshal headers: %w", err))
			}
		}
		if len(selectorsJSON) > 0 {
			if err := json.Unmarshal(selectorsJSON, &src.Selectors); err != nil {
				return nil, apperr.NewStorage("list ready sources", fmt.Errorf("unmarshal selectors: %w", err))
			}
		}
		if timeoutSeconds != nil {
			src.FetchTimeout = time.Duration(*timeoutSeconds) * time.Second
		}
		if lastFetch != nil {
			src.LastFetch = *lastFetch
		}
		if health != nil {
			src.Health = domain.HealthStatus(*health)
		}
		if lastError != nil {
			src.LastError = *lastError
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewStorage("list ready sources", err)
	}
	return out, nil
}

func (r *SourceRegistry) ReportHealth(ctx context.Context, sourceID uuid.UUID, report domain.HealthReport) error {
	cmd := `
        UPDATE news_sources
        SET health_status = $2, last_fetch = NOW(), last_error = $3,
            last_latency_ms = $4, last_item_count = $5
        WHERE id = $1;
    `
	tag, err := r.db.Exec(ctx, cmd, sourceID, report.Status, report.Error, report.Latency.Milliseconds(), report.ItemCount)
	if err != nil {
		return apperr.NewStorage("report health", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *SourceRegistry) UpsertSource(ctx context.Context, src domain.NewsSource) (uuid.UUID, error) {
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}

	headersJSON, err := json.Marshal(src.Headers)
	if err != nil {
		return uuid.Nil, apperr.NewStorage("upsert source", fmt.Errorf("marshal headers: %w", err))
	}
	selectorsJSON, err := json.Marshal(src.Selectors)
	if err != nil {
		return uuid.Nil, apperr.NewStorage("upsert source", fmt.Errorf("marshal selectors: %w", err))
	}

	cmd := `
        INSERT INTO news_sources
            (id, name, url, source_type, api_endpoint, api_key, headers,
             categories, selectors, active, fetch_timeout_seconds)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (name) DO UPDATE
        SET url = EXCLUDED.url,
            source_type = EXCLUDED.source_type,
            api_endpoint = EXCLUDED.api_endpoint,
            api_key = EXCLUDED.api_key,
            headers = EXCLUDED.headers,
            categories = EXCLUDED.categories,
            selectors = EXCLUDED.selectors,
            active = EXCLUDED.active,
            fetch_timeout_seconds = EXCLUDED.fetch_timeout_seconds
        RETURNING id;
    `
	var id uuid.UUID
	err = r.db.QueryRow(ctx, cmd,
		src.ID,
		src.Name,
		src.URL,
		src.Type,
		src.APIEndpoint,
		src.APIKey,
		headersJSON,
		src.Categories,
		selectorsJSON,
		src.Active,
		int(src.FetchTimeout/time.Second),
	).Scan(&id)
	if err != nil {
		return uuid.Nil, apperr.NewStorage("upsert source", err)
	}
	return id, nil
}
