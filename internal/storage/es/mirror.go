package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/google/uuid"

	"github.com/newspulse/aggregator/internal/domain"
	"github.com/newspulse/aggregator/pkg/pagination"
)

// Mirror indexes accepted raw articles into Elasticsearch so operators can
// search what the pipeline ingested. It is write-behind: the content store
// stays the source of truth.
type Mirror struct {
	client    *elasticsearch.TypedClient
	indexName string
}

// Document is the indexed shape of a raw article.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Content     string    `json:"content"`
	Author      string    `json:"author"`
	URL         string    `json:"url"`
	SourceID    string    `json:"source_id"`
	SourceName  string    `json:"source_name"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
	IndexedAt   time.Time `json:"indexed_at"`
}

func NewMirror(ctx context.Context, config ClientConfig) (*Mirror, error) {
	client, err := newClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	m := &Mirror{
		client:    client,
		indexName: config.IndexName,
	}

	if err := m.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}
	return m, nil
}

func (m *Mirror) EnsureIndex(ctx context.Context) error {
	exists, err := m.client.Indices.Exists(m.indexName).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check if index exists: %w", err)
	}
	if exists {
		slog.Info("Index already exists", "index", m.indexName)
		return nil
	}

	mappings := types.TypeMapping{
		Properties: map[string]types.Property{
			"id":           types.NewKeywordProperty(),
			"title":        types.NewTextProperty(),
			"summary":      types.NewTextProperty(),
			"content":      types.NewTextProperty(),
			"author":       types.NewKeywordProperty(),
			"url":          types.NewKeywordProperty(),
			"source_id":    types.NewKeywordProperty(),
			"source_name":  types.NewKeywordProperty(),
			"published_at": types.NewDateProperty(),
			"fetched_at":   types.NewDateProperty(),
			"indexed_at":   types.NewDateProperty(),
		},
	}

	_, err = m.client.Indices.Create(m.indexName).Mappings(&mappings).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	slog.Info("Index created", "index", m.indexName)
	return nil
}

// IndexBulk indexes a batch of accepted articles. Failures are logged per
// document; a partial failure does not abort the pipeline.
func (m *Mirror) IndexBulk(ctx context.Context, articles []domain.RawArticle) error {
	if len(articles) == 0 {
		return nil
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         m.indexName,
		Client:        m.client,
		NumWorkers:    4,
		FlushBytes:    5e+6, // 5MB
		FlushInterval: 30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	// The callbacks run on the indexer's worker goroutines.
	var successful, failed atomic.Int64

	for _, article := range articles {
		doc := m.toDocument(article)

		docBytes, err := json.Marshal(doc)
		if err != nil {
			slog.Error("failed to marshal document", "error", err, "id", doc.ID)
			failed.Add(1)
			continue
		}

		err = bi.Add(
			ctx,
			esutil.BulkIndexerItem{
				Action:     "index",
				DocumentID: doc.ID,
				Body:       bytes.NewReader(docBytes),
				OnSuccess: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem) {
					successful.Add(1)
				},
				OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
					failed.Add(1)
					if err != nil {
						slog.Error("bulk index error", "error", err, "id", item.DocumentID)
					} else {
						slog.Error("bulk index error", "status", res.Status, "error", res.Error.Type, "reason", res.Error.Reason, "id", item.DocumentID)
					}
				},
			},
		)
		if err != nil {
			failed.Add(1)
			slog.Error("failed to add document to bulk indexer", "error", err, "id", doc.ID)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("failed to close bulk indexer: %w", err)
	}

	slog.Info("Bulk indexing completed",
		"successful", successful.Load(),
		"failed", failed.Load(),
		"total", len(articles),
		"index", m.indexName)

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("failed to index %d out of %d articles", n, len(articles))
	}
	return nil
}

// Search runs a BM25 multi_match query over title, summary and content,
// paged by offset.
func (m *Mirror) Search(ctx context.Context, query string, page pagination.OffsetRequest) (*pagination.OffsetResult[Document], error) {
	page.Validate()

	res, err := m.client.Search().
		Index(m.indexName).
		Query(&types.Query{
			MultiMatch: &types.MultiMatchQuery{
				Query:  query,
				Fields: []string{"title", "summary", "content"},
			},
		}).
		From(page.Offset()).
		Size(page.Size).
		Do(ctx)
	if err != nil {
		slog.Error("Elasticsearch query failed", "error", err, "query", query)
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}

	out := make([]Document, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		var doc Document
		if err := json.Unmarshal(hit.Source_, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode search hit: %w", err)
		}
		out = append(out, doc)
	}

	var total int64
	if res.Hits.Total != nil {
		total = res.Hits.Total.Value
	}
	return pagination.NewOffsetResult(out, total, page.Page, page.Size), nil
}

func (m *Mirror) toDocument(article domain.RawArticle) Document {
	if article.ID == uuid.Nil {
		article.ID = uuid.New()
	}
	return Document{
		ID:          article.ID.String(),
		Title:       article.Title,
		Summary:     article.Summary,
		Content:     article.Content,
		Author:      article.Author,
		URL:         article.URL,
		SourceID:    article.SourceID.String(),
		SourceName:  article.SourceName,
		PublishedAt: article.PublishedAt,
		FetchedAt:   article.FetchedAt,
		IndexedAt:   time.Now(),
	}
}
