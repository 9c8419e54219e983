// Package exa provides a client for the Exa semantic search API.
package exa

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealflow-cli/internal/resilience"
)

const defaultBaseURL = "https://api.exa.ai"

// Client defines the Exa operations used for enrichment.
type Client interface {
	// Search runs a semantic search, optionally returning page text inline.
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	// Contents fetches page text for known URLs.
	Contents(ctx context.Context, urls []string) (*SearchResponse, error)
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query          string           `json:"query"`
	Type           string           `json:"type,omitempty"`
	NumResults     int              `json:"numResults,omitempty"`
	IncludeDomains []string         `json:"includeDomains,omitempty"`
	Category       string           `json:"category,omitempty"`
	Contents       *ContentsOptions `json:"contents,omitempty"`
}

// ContentsOptions asks Exa to inline page content.
type ContentsOptions struct {
	Text bool `json:"text"`
}

type contentsRequest struct {
	URLs []string `json:"urls"`
	Text bool     `json:"text"`
}

// SearchResponse is returned by both search and contents.
type SearchResponse struct {
	RequestID string   `json:"requestId,omitempty"`
	Results   []Result `json:"results"`
}

// Result is a single page.
type Result struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Title         string `json:"title"`
	Author        string `json:"author,omitempty"`
	PublishedDate string `json:"publishedDate,omitempty"`
	Text          string `json:"text,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates an Exa client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   resilience.ForService("exa", "search"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.Type == "" {
		req.Type = "auto"
	}
	if req.NumResults <= 0 {
		req.NumResults = 10
	}
	resp, err := c.post(ctx, "/search", req)
	if err != nil {
		return nil, eris.Wrap(err, "exa: search")
	}
	return resp, nil
}

func (c *httpClient) Contents(ctx context.Context, urls []string) (*SearchResponse, error) {
	if len(urls) == 0 {
		return &SearchResponse{}, nil
	}
	resp, err := c.post(ctx, "/contents", contentsRequest{URLs: urls, Text: true})
	if err != nil {
		return nil, eris.Wrap(err, "exa: contents")
	}
	return resp, nil
}

// post sends a read-only query. Exa searches have no side effects, so
// transient failures are retried.
func (c *httpClient) post(ctx context.Context, path string, body any) (*SearchResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "marshal request")
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*SearchResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "request failed"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if err := resilience.CheckResponse("exa", resp); err != nil {
			return nil, err
		}
		var out SearchResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, eris.Wrap(err, "decode response")
		}
		return &out, nil
	})
}
