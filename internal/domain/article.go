package domain

import (
	"time"

	"github.com/google/uuid"
)

// RawArticle is an unprocessed news item normalized from a source payload,
// prior to AI summarization and publication.
type RawArticle struct {
	ID          uuid.UUID      `json:"id"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Summary     string         `json:"summary,omitempty"`
	URL         string         `json:"url"`
	PublishedAt time.Time      `json:"publishedAt"`
	Author      string         `json:"author,omitempty"`
	ImageURL    string         `json:"imageUrl,omitempty"`
	SourceID    uuid.UUID      `json:"sourceId"`
	SourceName  string         `json:"sourceName,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	FetchedAt   time.Time      `json:"fetchedAt"`
}

// Parseable reports whether the record carries enough identity to keep:
// a title plus a URL, or a stable id in its place.
func (a RawArticle) Parseable() bool {
	return a.Title != "" && (a.URL != "" || a.ID != uuid.Nil)
}
