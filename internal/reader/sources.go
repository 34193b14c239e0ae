package reader

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/newspulse/aggregator/internal/domain"
)

// SourcesFile is the YAML seed format for the source registry.
type SourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

type SourceConfig struct {
	Name           string                  `yaml:"name"`
	URL            string                  `yaml:"url"`
	Type           string                  `yaml:"type"`
	APIEndpoint    string                  `yaml:"apiEndpoint,omitempty"`
	APIKey         string                  `yaml:"apiKey,omitempty"`
	Headers        map[string]string       `yaml:"headers,omitempty"`
	Categories     []string                `yaml:"categories,omitempty"`
	Selectors      *domain.ScrapeSelectors `yaml:"selectors,omitempty"`
	Active         *bool                   `yaml:"active,omitempty"`
	TimeoutSeconds int                     `yaml:"timeoutSeconds,omitempty"`
}

// SourcesLoader decodes and validates a YAML sources file.
type SourcesLoader struct {
	reader io.Reader
}

func NewSourcesLoader(reader io.Reader) *SourcesLoader {
	return &SourcesLoader{reader: reader}
}

func (l *SourcesLoader) Load() ([]domain.NewsSource, error) {
	decoder := yaml.NewDecoder(l.reader)

	var file SourcesFile
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode sources file: %w", err)
	}

	out := make([]domain.NewsSource, 0, len(file.Sources))
	for i, cfg := range file.Sources {
		src, err := cfg.toDomain()
		if err != nil {
			return nil, fmt.Errorf("source %d (%s): %w", i, cfg.Name, err)
		}
		out = append(out, src)
	}
	return out, nil
}

func (c SourceConfig) toDomain() (domain.NewsSource, error) {
	if c.Name == "" {
		return domain.NewsSource{}, fmt.Errorf("name is required")
	}
	if c.URL == "" {
		return domain.NewsSource{}, fmt.Errorf("url is required")
	}

	sourceType := domain.SourceType(c.Type)
	switch sourceType {
	case domain.SourceTypeRSS, domain.SourceTypeAPI, domain.SourceTypeScraper:
	case "":
		sourceType = domain.SourceTypeRSS
	default:
		return domain.NewsSource{}, fmt.Errorf("unknown source type %q", c.Type)
	}

	if sourceType == domain.SourceTypeScraper && (c.Selectors == nil || c.Selectors.Item == "") {
		return domain.NewsSource{}, fmt.Errorf("scraper sources require selectors.item")
	}

	active := true
	if c.Active != nil {
		active = *c.Active
	}

	return domain.NewsSource{
		Name:         c.Name,
		URL:          c.URL,
		Type:         sourceType,
		APIEndpoint:  c.APIEndpoint,
		APIKey:       c.APIKey,
		Headers:      c.Headers,
		Categories:   c.Categories,
		Selectors:    c.Selectors,
		Active:       active,
		FetchTimeout: time.Duration(c.TimeoutSeconds) * time.Second,
	}, nil
}
