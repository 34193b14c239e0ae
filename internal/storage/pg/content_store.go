package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newspulse/aggregator/internal/apperr"
	"github.com/newspulse/aggregator/internal/domain"
	"github.com/newspulse/aggregator/internal/storage"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ContentStore persists raw articles in Postgres.
type ContentStore struct {
	db *pgxpool.Pool
}

var _ storage.ContentStore = (*ContentStore)(nil)

func NewContentStore(pool *ConnectionPool) *ContentStore {
	return &ContentStore{db: pool.GetConn()}
}

func (s *ContentStore) InsertRaw(ctx context.Context, articles []domain.RawArticle) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	rows := make([][]interface{}, len(articles))
	now := time.Now().UTC()

	for i, a := range articles {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if a.FetchedAt.IsZero() {
			a.FetchedAt = now
		}

		metadataJSON, err := json.Marshal(a.Metadata)
		if err != nil {
			return 0, apperr.NewStorage("insert raw", fmt.Errorf("marshal metadata for article %d: %w", i, err))
		}

		rows[i] = []interface{}{
			a.ID,
			a.Title,
			a.Content,
			a.Summary,
			a.URL,
			a.PublishedAt,
			a.Author,
			a.ImageURL,
			a.SourceID,
			a.SourceName,
			metadataJSON,
			a.FetchedAt,
		}
	}

	n, err := s.db.CopyFrom(
		ctx,
		pgx.Identifier{"raw_articles"},
		[]string{"id", "title", "content", "summary", "url", "published_at", "author", "image_url", "source_id", "source_name", "metadata", "fetched_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, apperr.NewStorage("insert raw", err)
	}
	return int(n), nil
}

func (s *ContentStore) ListRaw(ctx context.Context, filter storage.RawFilter) ([]domain.RawArticle, error) {
	q := psql.Select("id", "title", "content", "summary", "url", "published_at", "author", "image_url", "source_id", "source_name", "metadata", "fetched_at").
		From("raw_articles").
		OrderBy("published_at DESC")

	q = applyFilter(q, filter)
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, apperr.NewStorage("list raw", err)
	}
	defer rows.Close()

	var out []domain.RawArticle
	for rows.Next() {
		var (
			a            domain.RawArticle
			metadataJSON []byte
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Summary, &a.URL, &a.PublishedAt, &a.Author, &a.ImageURL, &a.SourceID, &a.SourceName, &metadataJSON, &a.FetchedAt); err != nil {
			return nil, apperr.NewStorage("list raw", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &a.Metadata); err != nil {
				return nil, apperr.NewStorage("list raw", fmt.Errorf("unmarshal metadata: %w", err))
			}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewStorage("list raw", err)
	}
	return out, nil
}

func (s *ContentStore) UpdateRawMetadata(ctx context.Context, id uuid.UUID, metadata map[string]any) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return apperr.NewStorage("update raw", fmt.Errorf("marshal metadata: %w", err))
	}

	sqlStr, args, err := psql.Update("raw_articles").
		Set("metadata", sq.Expr("metadata || ?::jsonb", metadataJSON)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	tag, err := s.db.Exec(ctx, sqlStr, args...)
	if err != nil {
		return apperr.NewStorage("update raw", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *ContentStore) DeleteRaw(ctx context.Context, filter storage.RawFilter) (int64, error) {
	q := psql.Delete("raw_articles")
	q = applyDeleteFilter(q, filter)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete query: %w", err)
	}

	tag, err := s.db.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, apperr.NewStorage("delete raw", err)
	}
	return tag.RowsAffected(), nil
}

// CleanupStale delegates to the cleanup_stale_raw_articles procedure, which
// removes unprocessed rows older than the cutoff.
func (s *ContentStore) CleanupStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	var deleted int64
	err := s.db.QueryRow(ctx, `SELECT cleanup_stale_raw_articles($1)`, cutoff).Scan(&deleted)
	if err != nil {
		return 0, apperr.NewStorage("cleanup stale", err)
	}
	return deleted, nil
}

func (s *ContentStore) Stats(ctx context.Context, days int) (storage.AggregationStats, error) {
	stats := storage.AggregationStats{WindowDays: days}

	err := s.db.QueryRow(ctx, `SELECT raw_articles, articles_fetched, articles_published, completed_jobs, failed_jobs FROM aggregation_stats($1)`, days).
		Scan(&stats.RawArticles, &stats.ArticlesFetched, &stats.ArticlesPublished, &stats.CompletedJobs, &stats.FailedJobs)
	if err != nil {
		return storage.AggregationStats{}, apperr.NewStorage("aggregation stats", err)
	}
	return stats, nil
}

func applyFilter(q sq.SelectBuilder, f storage.RawFilter) sq.SelectBuilder {
	if f.SourceID != nil {
		q = q.Where(sq.Eq{"source_id": *f.SourceID})
	}
	if f.PublishedBefore != nil {
		q = q.Where(sq.Lt{"published_at": *f.PublishedBefore})
	}
	if f.PublishedAfter != nil {
		q = q.Where(sq.Gt{"published_at": *f.PublishedAfter})
	}
	return q
}

func applyDeleteFilter(q sq.DeleteBuilder, f storage.RawFilter) sq.DeleteBuilder {
	if f.SourceID != nil {
		q = q.Where(sq.Eq{"source_id": *f.SourceID})
	}
	if f.PublishedBefore != nil {
		q = q.Where(sq.Lt{"published_at": *f.PublishedBefore})
	}
	if f.PublishedAfter != nil {
		q = q.Where(sq.Gt{"published_at": *f.PublishedAfter})
	}
	return q
}
