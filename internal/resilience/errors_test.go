package resilience

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("overloaded"), 503), true},
		{"wrapped", fmt.Errorf("call: %w", NewTransientError(errors.New("429"), 429)), true},
		{"regular", errors.New("invalid input"), false},
		{"conn reset", fmt.Errorf("write: %w", syscall.ECONNRESET), true},
		{"conn refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"net timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"tls pattern", errors.New("TLS handshake timeout"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"http 404", &HTTPError{Service: "exa", StatusCode: 404}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	t.Parallel()
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 416, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func newResp(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestCheckResponse(t *testing.T) {
	t.Parallel()

	require.NoError(t, CheckResponse("exa", newResp(200, "{}")))

	err := CheckResponse("exa", newResp(503, "try later"))
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 503, StatusCode(err))
	assert.Contains(t, err.Error(), "exa: http 503: try later")

	err = CheckResponse("hunter", newResp(401, strings.Repeat("x", 2000)))
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	var herr *HTTPError
	require.True(t, errors.As(err, &herr))
	assert.Len(t, herr.Body, maxErrorBody)
	assert.Equal(t, 401, StatusCode(err))

	assert.Equal(t, 0, StatusCode(errors.New("plain")))
}

func TestClassifyError(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "transient", ClassifyError(NewTransientError(errors.New("x"), 500)))
	assert.Equal(t, "permanent", ClassifyError(errors.New("invalid recipient")))
}

func TestTransientError_Unwrap(t *testing.T) {
	t.Parallel()
	inner := errors.New("root cause")
	te := NewTransientError(inner, 500)
	assert.ErrorIs(t, te, inner)
	assert.Equal(t, "root cause", te.Error())
}
