package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newspulse/aggregator/internal/pipeline"
)

const defaultTimeout = 2 * time.Minute

// Client calls the external AI processing service that promotes raw
// articles to published content. The service is opaque to the pipeline;
// only its counts are recorded.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ pipeline.Processor = (*Client)(nil)

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) ProcessRawArticles(ctx context.Context, batchSize int) (pipeline.ProcessResult, error) {
	payload, err := json.Marshal(map[string]int{"batchSize": batchSize})
	if err != nil {
		return pipeline.ProcessResult{}, fmt.Errorf("marshal process request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process", bytes.NewReader(payload))
	if err != nil {
		return pipeline.ProcessResult{}, fmt.Errorf("build process request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return pipeline.ProcessResult{}, fmt.Errorf("call processing service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pipeline.ProcessResult{}, fmt.Errorf("processing service returned status %d", resp.StatusCode)
	}

	var result pipeline.ProcessResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return pipeline.ProcessResult{}, fmt.Errorf("decode processing response: %w", err)
	}
	return result, nil
}

// Noop satisfies the processor contract when no processing service is
// configured; fetch and cleanup still run.
type Noop struct{}

var _ pipeline.Processor = Noop{}

func (Noop) ProcessRawArticles(ctx context.Context, batchSize int) (pipeline.ProcessResult, error) {
	return pipeline.ProcessResult{}, nil
}
