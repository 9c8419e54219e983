package exa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealflow-cli/internal/resilience"
)

func TestSearch_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Jane Doe Acme site:linkedin.com", body["query"])
		assert.Equal(t, "auto", body["type"])
		assert.EqualValues(t, 5, body["numResults"])
		assert.Equal(t, []any{"linkedin.com"}, body["includeDomains"])
		assert.Equal(t, map[string]any{"text": true}, body["contents"])

		w.Write([]byte(`{"requestId":"r1","results":[
			{"id":"1","url":"https://www.linkedin.com/in/janedoe","title":"Jane Doe","text":"Jane Doe\nFounder at Acme"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := c.Search(context.Background(), SearchRequest{
		Query:          "Jane Doe Acme site:linkedin.com",
		NumResults:     5,
		IncludeDomains: []string{"linkedin.com"},
		Contents:       &ContentsOptions{Text: true},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "https://www.linkedin.com/in/janedoe", resp.Results[0].URL)
	assert.Contains(t, resp.Results[0].Text, "Founder at Acme")
}

func TestSearch_RetriesTransient(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		// Body is replayed on retry.
		var body SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "acme", body.Query)
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL),
		WithRetry(resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}))
	resp, err := c.Search(context.Background(), SearchRequest{Query: "acme"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearch_BadRequest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"query required"}`))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).Search(context.Background(), SearchRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query required")
}

func TestContents(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contents", r.URL.Path)
		var body contentsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"https://acme.io"}, body.URLs)
		assert.True(t, body.Text)
		w.Write([]byte(`{"results":[{"url":"https://acme.io","text":"Acme builds robots."}]}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	resp, err := c.Contents(context.Background(), []string{"https://acme.io"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Acme builds robots.", resp.Results[0].Text)

	resp, err = c.Contents(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}
