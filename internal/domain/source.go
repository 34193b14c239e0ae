package domain

import (
	"time"

	"github.com/google/uuid"
)

type SourceType string

const (
	SourceTypeRSS     SourceType = "rss"
	SourceTypeAPI     SourceType = "api"
	SourceTypeScraper SourceType = "scraper"
)

type HealthStatus string

const (
	HealthStatusHealthy HealthStatus = "healthy"
	HealthStatusError   HealthStatus = "error"
)

// ScrapeSelectors configures CSS-selector extraction for scraper sources.
// Item scopes each article block; the rest are resolved relative to it.
type ScrapeSelectors struct {
	Item    string `json:"item" yaml:"item"`
	Title   string `json:"title" yaml:"title"`
	Link    string `json:"link" yaml:"link"`
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`
	Image   string `json:"image,omitempty" yaml:"image,omitempty"`
}

// NewsSource is a configured external feed. Health fields are mutated by the
// fetcher after every attempt; the rest is administered out of band.
type NewsSource struct {
	ID           uuid.UUID         `json:"id"`
	Name         string            `json:"name"`
	URL          string            `json:"url"`
	Type         SourceType        `json:"sourceType"`
	APIEndpoint  string            `json:"apiEndpoint,omitempty"`
	APIKey       string            `json:"-"`
	Headers      map[string]string `json:"headers,omitempty"`
	Categories   []string          `json:"categories,omitempty"`
	Selectors    *ScrapeSelectors  `json:"selectors,omitempty"`
	Active       bool              `json:"active"`
	FetchTimeout time.Duration     `json:"fetchTimeout,omitempty"`
	LastFetch    time.Time         `json:"lastFetch,omitempty"`
	Health       HealthStatus      `json:"healthStatus,omitempty"`
	LastError    string            `json:"lastError,omitempty"`
}

// FetchURL returns the endpoint the fetcher should hit: API sources may
// override the display URL with a dedicated endpoint.
func (s NewsSource) FetchURL() string {
	if s.Type == SourceTypeAPI && s.APIEndpoint != "" {
		return s.APIEndpoint
	}
	return s.URL
}

// HealthReport is the per-attempt outcome recorded on the source registry.
type HealthReport struct {
	Status    HealthStatus
	Latency   time.Duration
	ItemCount int
	Error     string
}
