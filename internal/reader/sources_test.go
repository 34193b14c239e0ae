package reader

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newspulse/aggregator/internal/domain"
)

func TestSourcesLoader_Load(t *testing.T) {
	yamlContent := `
sources:
  - name: "Example RSS"
    url: "https://example.com/feed.xml"
    type: rss
    categories: [tech, crypto]
    timeoutSeconds: 15
  - name: "Example API"
    url: "https://api.example.com"
    type: api
    apiEndpoint: "https://api.example.com/v2/articles"
    apiKey: "secret"
    headers:
      X-Client: newspulse
  - name: "Example Scraper"
    url: "https://example.com/news"
    type: scraper
    active: false
    selectors:
      item: "div.story"
      title: "h2"
      link: "a"
`
	sources, err := NewSourcesLoader(strings.NewReader(yamlContent)).Load()
	require.NoError(t, err)
	require.Len(t, sources, 3)

	rss := sources[0]
	assert.Equal(t, domain.SourceTypeRSS, rss.Type)
	assert.Equal(t, []string{"tech", "crypto"}, rss.Categories)
	assert.Equal(t, 15*time.Second, rss.FetchTimeout)
	assert.True(t, rss.Active)

	api := sources[1]
	assert.Equal(t, domain.SourceTypeAPI, api.Type)
	assert.Equal(t, "https://api.example.com/v2/articles", api.FetchURL())
	assert.Equal(t, "secret", api.APIKey)

	scraper := sources[2]
	assert.False(t, scraper.Active)
	require.NotNil(t, scraper.Selectors)
	assert.Equal(t, "div.story", scraper.Selectors.Item)
}

func TestSourcesLoader_DefaultsToRSS(t *testing.T) {
	yamlContent := `
sources:
  - name: "Untyped"
    url: "https://example.com/feed"
`
	sources, err := NewSourcesLoader(strings.NewReader(yamlContent)).Load()
	require.NoError(t, err)
	assert.Equal(t, domain.SourceTypeRSS, sources[0].Type)
}

func TestSourcesLoader_RejectsScraperWithoutSelectors(t *testing.T) {
	yamlContent := `
sources:
  - name: "Bad Scraper"
    url: "https://example.com"
    type: scraper
`
	_, err := NewSourcesLoader(strings.NewReader(yamlContent)).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selectors.item")
}

func TestSourcesLoader_RejectsUnknownType(t *testing.T) {
	yamlContent := `
sources:
  - name: "Weird"
    url: "https://example.com"
    type: carrier-pigeon
`
	_, err := NewSourcesLoader(strings.NewReader(yamlContent)).Load()
	require.Error(t, err)
}
