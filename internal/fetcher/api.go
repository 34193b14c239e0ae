package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/newspulse/aggregator/internal/apperr"
	"github.com/newspulse/aggregator/internal/domain"
	"github.com/newspulse/aggregator/pkg/stringsutil"
)

// envelopeKeys are the wrapper fields JSON news APIs commonly nest their
// item arrays under, probed in order after a bare array.
var envelopeKeys = []string{"articles", "data", "results", "items"}

// apiItem is the normalized shape a JSON item is probed into before mapping.
type apiItem struct {
	Title     string
	URL       string
	Content   string
	Summary   string
	Author    string
	ImageURL  string
	Published string
}

func (f *SourceFetcher) fetchAPI(ctx context.Context, source domain.NewsSource) ([]domain.RawArticle, error) {
	body, err := f.get(ctx, source, source.FetchURL())
	if err != nil {
		return nil, err
	}

	rawItems, err := parseAPIPayload(body)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", source.Name, err)
	}

	articles := make([]domain.RawArticle, 0, len(rawItems))
	for _, raw := range rawItems {
		item := normalizeAPIItem(raw)
		article, ok := mapAPIItem(source, item)
		if !ok {
			slog.Debug("skipping API item without title or url", "source", source.Name)
			continue
		}
		articles = append(articles, article)
	}

	return f.filterBatch(source, articles), nil
}

// parseAPIPayload accepts a bare item array or one of the known envelope
// shapes wrapping it.
func parseAPIPayload(data []byte) ([]map[string]any, error) {
	var items []map[string]any
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, apperr.NewParse("json", err)
	}

	for _, key := range envelopeKeys {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &items); err == nil {
			return items, nil
		}
	}

	return nil, apperr.NewParse("json", errors.New("no recognizable article array in payload"))
}

// normalizeAPIItem probes the plausible field aliases for each attribute.
func normalizeAPIItem(m map[string]any) apiItem {
	return apiItem{
		Title:     firstString(m, "title", "headline", "name"),
		URL:       firstString(m, "url", "link", "permalink", "web_url"),
		Content:   firstString(m, "content", "body", "text", "description"),
		Summary:   firstString(m, "summary", "excerpt", "abstract"),
		Author:    firstString(m, "author", "byline", "creator"),
		ImageURL:  firstString(m, "image", "image_url", "imageUrl", "urlToImage", "thumbnail"),
		Published: firstString(m, "published_at", "publishedAt", "pubDate", "published", "date"),
	}
}

// mapAPIItem turns a normalized API item into a RawArticle. Items missing a
// title or url are dropped.
func mapAPIItem(source domain.NewsSource, item apiItem) (domain.RawArticle, bool) {
	if item.Title == "" || item.URL == "" {
		return domain.RawArticle{}, false
	}

	content := stringsutil.StripMarkup(item.Content)
	summarySource := stringsutil.StripMarkup(item.Summary)
	if summarySource == "" {
		summarySource = content
	}

	article := domain.RawArticle{
		Title:       stringsutil.StripMarkup(item.Title),
		Content:     content,
		Summary:     stringsutil.Summarize(summarySource, summaryMaxLen),
		URL:         item.URL,
		PublishedAt: parseTime(item.Published),
		Author:      item.Author,
		ImageURL:    item.ImageURL,
		SourceID:    source.ID,
		SourceName:  source.Name,
		FetchedAt:   time.Now().UTC(),
	}
	if len(source.Categories) > 0 {
		article.Metadata = map[string]any{"categories": source.Categories}
	}

	return article, true
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
