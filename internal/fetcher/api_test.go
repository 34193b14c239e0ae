package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newspulse/aggregator/internal/apperr"
	"github.com/newspulse/aggregator/internal/domain"
)

func apiSource(url string) domain.NewsSource {
	return domain.NewsSource{
		ID:          uuid.New(),
		Name:        "example-api",
		URL:         "https://api.example.com",
		APIEndpoint: url,
		Type:        domain.SourceTypeAPI,
		Active:      true,
	}
}

func TestFetchAPI_BareArray(t *testing.T) {
	payload := `[
	  {"title": "Markets rally on rate cut", "url": "https://example.com/rally", "content": "Stocks climbed across the board after the announcement, with technology shares leading gains for the third week straight."},
	  {"title": "No url, should be dropped"}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	articles, err := New(&stubRegistry{}).Fetch(context.Background(), apiSource(srv.URL))
	require.NoError(t, err)

	require.Len(t, articles, 1)
	assert.Equal(t, "Markets rally on rate cut", articles[0].Title)
	assert.NotEmpty(t, articles[0].Summary)
}

func TestFetchAPI_EnvelopesAndAliases(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"articles envelope", `{"articles": [{"headline": "Aliased headline works", "link": "https://example.com/a"}]}`},
		{"data envelope", `{"data": [{"title": "Data envelope works", "permalink": "https://example.com/b"}]}`},
		{"results envelope", `{"results": [{"name": "Results envelope works", "web_url": "https://example.com/c"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer srv.Close()

			articles, err := New(&stubRegistry{}).Fetch(context.Background(), apiSource(srv.URL))
			require.NoError(t, err)
			require.Len(t, articles, 1)
			assert.NotEmpty(t, articles[0].Title)
			assert.NotEmpty(t, articles[0].URL)
		})
	}
}

func TestFetchAPI_BearerAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	src := apiSource(srv.URL)
	src.APIKey = "secret-key"

	_, err := New(&stubRegistry{}).Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-key", gotAuth)
}

func TestFetchAPI_UnrecognizedPayloadIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected": {"shape": true}}`))
	}))
	defer srv.Close()

	_, err := New(&stubRegistry{}).Fetch(context.Background(), apiSource(srv.URL))

	var pe *apperr.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "json", pe.Format)
}

func TestNormalizeAPIItem_PublishedAliases(t *testing.T) {
	item := normalizeAPIItem(map[string]any{
		"title":        "t",
		"url":          "https://example.com",
		"published_at": "2025-06-01T10:00:00Z",
	})

	assert.Equal(t, "2025-06-01T10:00:00Z", item.Published)
}
