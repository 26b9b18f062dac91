// File: internal/infra/adapters/agentsvc/client.go
package agentsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrBody caps how much of a failed response we keep for diagnostics.
const maxErrBody = 512

// Error reports a non-2xx reply from a downstream agent service. The
// status and a truncated body travel with it so the worker can log them.
type Error struct {
	Service string
	Status  int
	Body    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s service: http %d", e.Service, e.Status)
}

// Client talks to one FoundryStack-style agent service over JSON/HTTP.
// Construct one per service URL (retriever, writer, reviewer).
type Client struct {
	name   string
	base   string
	client *http.Client
}

func NewClient(name, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		name: name,
		base: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) postJSON(ctx context.Context, path string, payload any) (map[string]any, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return nil, &Error{Service: c.name, Status: resp.StatusCode, Body: string(body)}
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s service: decode reply: %w", c.name, err)
	}
	return out, nil
}

// Health probes GET /health and succeeds on any 2xx.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return &Error{Service: c.name, Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// Enrich asks the retriever service for market context around the idea.
func (c *Client) Enrich(ctx context.Context, query string) (map[string]any, error) {
	return c.postJSON(ctx, "/enrich", map[string]any{"query": query})
}

// Analyze asks the analyst service for a structured breakdown of an
// enriched idea.
func (c *Client) Analyze(ctx context.Context, idea string, enriched map[string]any) (map[string]any, error) {
	payload := map[string]any{"idea": idea}
	for _, k := range []string{"context", "enriched_query", "confidence"} {
		if v, ok := enriched[k]; ok {
			payload[k] = v
		}
	}
	return c.postJSON(ctx, "/analyze", payload)
}

// Write asks the writer service to turn the accumulated analysis into
// founder-facing narrative documents.
func (c *Client) Write(ctx context.Context, idea string, analysis map[string]any) (map[string]any, error) {
	return c.postJSON(ctx, "/write", map[string]any{
		"idea":                idea,
		"structured_analysis": analysis,
	})
}

// Review sends the writer output for a quality pass.
func (c *Client) Review(ctx context.Context, writerOutput map[string]any, originalQuery string) (map[string]any, error) {
	payload := map[string]any{"writer_output": writerOutput}
	if originalQuery != "" {
		payload["original_query"] = originalQuery
	}
	return c.postJSON(ctx, "/review", payload)
}
