// Package hunter provides a client for the Hunter email-finder API.
package hunter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealflow-cli/internal/resilience"
)

const defaultBaseURL = "https://api.hunter.io"

// Client finds professional email addresses.
type Client interface {
	// EmailFinder returns the most likely address for a person. A miss
	// returns a result with an empty Email.
	EmailFinder(ctx context.Context, req FindRequest) (*EmailResult, error)
}

// FindRequest identifies a person at a company. Domain takes precedence
// over Company when both are set.
type FindRequest struct {
	FirstName string
	LastName  string
	Company   string
	Domain    string
}

// EmailResult is the data object of an email-finder response.
type EmailResult struct {
	Email    string `json:"email"`
	Score    int    `json:"score"`
	Domain   string `json:"domain"`
	Position string `json:"position"`
}

type findResponse struct {
	Data EmailResult `json:"data"`
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

// NewClient creates a Hunter client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   resilience.ForService("hunter", "email_finder"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) EmailFinder(ctx context.Context, fr FindRequest) (*EmailResult, error) {
	q := url.Values{}
	q.Set("first_name", fr.FirstName)
	q.Set("last_name", fr.LastName)
	if fr.Domain != "" {
		q.Set("domain", fr.Domain)
	} else {
		q.Set("company", fr.Company)
	}
	q.Set("api_key", c.apiKey)
	reqURL := c.baseURL + "/v2/email-finder?" + q.Encode()

	out, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*EmailResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "request failed"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode == http.StatusNotFound {
			return &EmailResult{}, nil
		}
		if err := resilience.CheckResponse("hunter", resp); err != nil {
			return nil, err
		}
		var fresp findResponse
		if err := json.NewDecoder(resp.Body).Decode(&fresp); err != nil {
			return nil, eris.Wrap(err, "decode response")
		}
		return &fresp.Data, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "hunter: email finder")
	}
	return out, nil
}
