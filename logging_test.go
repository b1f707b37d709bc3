package vivialconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// logRecords decodes the JSON lines written by a slog JSONHandler.
func logRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func debugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestClientLogging(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1.0/missing.json" {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
			return
		}
		w.Header().Set("X-RateLimit-Remaining", "9")
		writeJSON(w, http.StatusOK, map[string]any{})
	}, WithLogger(debugLogger(&buf)))

	_, err := c.get(context.Background(), "/ok.json", nil)
	require.NoError(t, err)
	_, err = c.get(context.Background(), "/missing.json", nil)
	require.Error(t, err)

	byMsg := map[string][]map[string]any{}
	for _, rec := range logRecords(t, &buf) {
		msg := rec["msg"].(string)
		byMsg[msg] = append(byMsg[msg], rec)
	}

	require.Len(t, byMsg["api_request"], 2)
	assert.Equal(t, "GET", byMsg["api_request"][0]["method"])
	assert.Equal(t, "/ok.json", byMsg["api_request"][0]["path"])
	assert.Equal(t, "123", byMsg["api_request"][0]["account_id"])

	require.Len(t, byMsg["api_response"], 2)
	assert.Equal(t, "DEBUG", byMsg["api_response"][0]["level"])
	assert.Equal(t, float64(200), byMsg["api_response"][0]["status"])
	assert.Equal(t, "ERROR", byMsg["api_response"][1]["level"], "a failed call logs at error level")
	assert.Contains(t, byMsg["api_response"][1]["error"], "not found")
	assert.Equal(t, ErrNotFound.Error(), byMsg["api_response"][1]["error_kind"])
	assert.NotContains(t, byMsg["api_request"][0], "api_key")

	require.Len(t, byMsg["http_request"], 2, "the transport is wrapped when a logger is set")
	assert.Equal(t, "date;host", byMsg["http_request"][0]["signed_headers"])
	require.Len(t, byMsg["http_response"], 2)
	assert.Equal(t, "9", byMsg["http_response"][0]["rate_limit_remaining"])
	assert.Equal(t, "WARN", byMsg["http_response"][1]["level"])

	require.Len(t, byMsg["rate_limit"], 1)
	assert.Equal(t, float64(9), byMsg["rate_limit"][0]["remaining"])
	assert.Equal(t, "/api/v1.0/ok.json", byMsg["http_request"][0]["path"])
	assert.NotContains(t, byMsg["http_request"][0], "url")
}

func TestClientWithoutLogger(t *testing.T) {
	c := NewClient("key", "secret", "123")
	c.LogRequest(context.Background(), "GET", "/x.json")
	c.LogResponse(context.Background(), "GET", "/x.json", 500, time.Second, errors.New("boom"))
	c.LogRateLimit(context.Background(), RateLimitInfo{})
	_, wrapped := c.httpClient.Transport.(*LoggingTransport)
	assert.False(t, wrapped)
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("dial tcp: refused")
}

func TestLoggingTransport(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		var buf bytes.Buffer
		client := &http.Client{Transport: &LoggingTransport{Logger: debugLogger(&buf)}}
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		resp.Body.Close()

		recs := logRecords(t, &buf)
		require.Len(t, recs, 2)
		assert.Equal(t, "http_request", recs[0]["msg"])
		assert.Equal(t, "http_response", recs[1]["msg"])
		assert.Equal(t, "ERROR", recs[1]["level"])
		assert.Equal(t, float64(503), recs[1]["status"])
	})

	t.Run("transport error", func(t *testing.T) {
		var buf bytes.Buffer
		rt := &LoggingTransport{Base: failingTransport{}, Logger: debugLogger(&buf)}
		req := httptest.NewRequest(http.MethodGet, "http://example.com/x.json", nil)
		_, err := rt.RoundTrip(req)
		require.Error(t, err)

		recs := logRecords(t, &buf)
		require.Len(t, recs, 2)
		assert.Equal(t, "http_error", recs[1]["msg"])
		assert.Equal(t, "dial tcp: refused", recs[1]["error"])
	})

	t.Run("nil logger", func(t *testing.T) {
		rt := &LoggingTransport{Base: failingTransport{}}
		_, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://example.com/", nil))
		assert.Error(t, err)
	})
}

func TestNewLoggingClient(t *testing.T) {
	var buf bytes.Buffer
	c := NewLoggingClient("key", "secret", "123", debugLogger(&buf), WithTimeout(time.Second))
	rt, ok := c.httpClient.Transport.(*LoggingTransport)
	require.True(t, ok)
	assert.NotNil(t, rt.Logger)
	assert.Equal(t, time.Second, c.httpClient.Timeout)
}
