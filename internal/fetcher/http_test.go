package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealflow-cli/internal/resilience"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent: "test-agent",
		Timeout:   5 * time.Second,
		HostRate:  1000,
		Retry:     resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})
}

const acmeHTML = `<html><head><title>Acme Robotics | Home</title></head>
<body>
<nav><p>Products About Careers Contact and more navigation text here</p></nav>
<h1>Welcome</h1>
<p>Short intro.</p>
<p class="lead">Acme builds <b>autonomous</b> warehouse robots that pick &amp; pack orders for mid-size retailers.</p>
<script>var p = "<p>not a paragraph at all, this is script text</p>";</script>
<footer><p>Copyright 2026 Acme Robotics Ltd, all rights reserved worldwide.</p></footer>
</body></html>`

func TestFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(acmeHTML))
	}))
	defer srv.Close()

	page, err := newTestFetcher().FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "Acme Robotics | Home", page.Title)
	assert.Equal(t, []string{
		"Short intro.",
		"Acme builds autonomous warehouse robots that pick & pack orders for mid-size retailers.",
	}, page.Paragraphs)
	assert.Equal(t, page.Paragraphs[1], page.FirstParagraph(40))
	assert.Empty(t, page.FirstParagraph(500))
}

func TestFetchPage_DecodesCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1252")
		w.Write([]byte("<html><body><p>Caf\xe9 culture, na\xefve robots</p></body></html>"))
	}))
	defer srv.Close()

	page, err := newTestFetcher().FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, page.Paragraphs, 1)
	assert.Equal(t, "Café culture, naïve robots", page.Paragraphs[0])
}

func TestDecodeBody_MetaCharset(t *testing.T) {
	doc, err := decodeBody("text/html", []byte("<meta charset=\"iso-8859-1\"><p>Z\xfcrich</p>"))
	require.NoError(t, err)
	assert.Contains(t, doc, "Zürich")

	_, err = decodeBody("text/html; charset=klingon-7", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported charset")

	doc, err = decodeBody("", []byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain", doc)
}

func TestFetchPage_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("<p>Recovered after a gateway error on the first try.</p>"))
	}))
	defer srv.Close()

	page, err := newTestFetcher().FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, page.Paragraphs, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchPage_NotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().FetchPage(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, resilience.StatusCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchPage_429SlowsHost(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("<p>ok</p>"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	_, err := f.FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)

	u, _ := url.Parse(srv.URL)
	// halved on 429, then +20% on success
	assert.InDelta(t, 600.0, float64(f.limiterFor(u.Host).Limit()), 0.1)
}

func TestFetchPage_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("cf-ray", "abc")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("Attention required"))
	}))
	defer srv.Close()

	_, err := newTestFetcher().FetchPage(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked (cloudflare)")
}

func TestFetchPage_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "ftp://acme.io", "not a url", "https://"} {
		_, err := newTestFetcher().FetchPage(context.Background(), u)
		assert.Error(t, err, u)
	}
}

func TestDetectBlock(t *testing.T) {
	ok := &http.Response{StatusCode: 200, Header: http.Header{}}
	blocked, _ := DetectBlock(ok, []byte("<p>hello</p>"))
	assert.False(t, blocked)

	blocked, kind := DetectBlock(ok, []byte(`<div class="g-recaptcha"></div>`))
	assert.True(t, blocked)
	assert.Equal(t, BlockCaptcha, kind)

	blocked, kind = DetectBlock(ok, []byte(`<noscript>Please enable JavaScript</noscript>`))
	assert.True(t, blocked)
	assert.Equal(t, BlockJSShell, kind)

	blocked, _ = DetectBlock(nil, nil)
	assert.False(t, blocked)
}

func TestAdaptiveLimiter_Bounds(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 10)
	lim.OnSuccess()
	assert.InDelta(t, 12.0, float64(lim.Limit()), 0.1)
	for range 20 {
		lim.OnSuccess()
	}
	assert.InDelta(t, 20.0, float64(lim.Limit()), 0.1)
	for range 10 {
		lim.OnRateLimit()
	}
	assert.InDelta(t, 2.5, float64(lim.Limit()), 0.1)
}

func TestAdaptiveLimiter_Wait_ContextCancelled(t *testing.T) {
	lim := NewAdaptiveLimiter(0.001, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, lim.Wait(ctx))
}
