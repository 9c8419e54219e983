// Package apollo provides a client for the Apollo people-match API.
package apollo

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

const defaultBaseURL = "https://api.apollo.io"

// Client matches people to Apollo records.
type Client interface {
	// PeopleMatch looks up one person. A miss returns a response with a nil
	// Person.
	PeopleMatch(ctx context.Context, req MatchRequest) (*MatchResponse, error)
}

// MatchRequest identifies a person by name and employer.
type MatchRequest struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	OrganizationName string `json:"organization_name,omitempty"`
	Domain           string `json:"domain,omitempty"`
	LinkedInURL      string `json:"linkedin_url,omitempty"`
}

// MatchResponse is the people/match response.
type MatchResponse struct {
	Person *Person `json:"person"`
}

// Person is a matched Apollo contact.
type Person struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Title       string `json:"title"`
	Email       string `json:"email"`
	EmailStatus string `json:"email_status"`
	LinkedInURL string `json:"linkedin_url"`
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

// NewClient creates an Apollo client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   resilience.ForService("apollo", "people_match"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) PeopleMatch(ctx context.Context, mr MatchRequest) (*MatchResponse, error) {
	payload, err := json.Marshal(mr)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: marshal request")
	}

	out, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*MatchResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/people/match", bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("X-Api-Key", c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Cache-Control", "no-cache")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "request failed"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode == http.StatusNotFound {
			return &MatchResponse{}, nil
		}
		if err := resilience.CheckResponse("apollo", resp); err != nil {
			return nil, err
		}
		var mresp MatchResponse
		if err := json.NewDecoder(resp.Body).Decode(&mresp); err != nil {
			return nil, eris.Wrap(err, "decode response")
		}
		return &mresp, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "apollo: people match")
	}
	return out, nil
}
