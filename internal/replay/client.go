package replay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/framerank/internal/domain/types"
)

// maxResponseBytes bounds a single response body.
const maxResponseBytes = 4 << 20

// Client talks to a running server.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{base: baseURL, http: &http.Client{Timeout: timeout}}
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// Count reads GET /stats.
func (c *Client) Count(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/stats", http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("build stats request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get stats: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("stats returned status %d", resp.StatusCode)
	}
	var st types.Stats
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&st); err != nil {
		return 0, fmt.Errorf("decode stats: %w", err)
	}
	return st.Count, nil
}

// Analyze posts one request and decodes the envelope.
func (c *Client) Analyze(ctx context.Context, body types.AnalyzeRequest) (int, types.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, types.Response{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/analyze", bytes.NewReader(data))
	if err != nil {
		return 0, types.Response{}, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, types.Response{}, fmt.Errorf("post analyze: %w", err)
	}
	defer resp.Body.Close()

	var out types.Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return resp.StatusCode, types.Response{}, fmt.Errorf("decode analyze response (status %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, out, nil
}
