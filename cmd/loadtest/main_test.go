package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	sorted := make([]time.Duration, 100)
	for i := range sorted {
		sorted[i] = time.Duration(i+1) * time.Millisecond
	}
	assert.Equal(t, 50*time.Millisecond, percentile(sorted, 50))
	assert.Equal(t, 99*time.Millisecond, percentile(sorted, 99))
	assert.Equal(t, time.Millisecond, percentile(sorted, 0))
	assert.Equal(t, time.Duration(0), percentile(nil, 50))
}

func TestStats(t *testing.T) {
	s := NewStats()
	s.Record(10*time.Millisecond, http.StatusOK, true, nil)
	s.Record(20*time.Millisecond, http.StatusOK, false, nil)
	s.Record(5*time.Millisecond, http.StatusTooManyRequests, false, nil)
	s.Record(0, 0, false, errors.New("connection refused"))

	var buf bytes.Buffer
	s.WriteReport(&buf, time.Second)
	out := buf.String()

	assert.Equal(t, int64(4), s.Total())
	assert.Contains(t, out, "Successful:      2")
	assert.Contains(t, out, "Failed:          2")
	assert.Contains(t, out, "Cache Hit Rate:  50.0%")
	assert.Contains(t, out, "429: 1")
}

func TestRequest(t *testing.T) {
	cfg := Config{BaseURL: "http://svc", Mode: "cjk", TopN: 5, Texts: []string{"a", "b"}}
	req, err := cfg.request(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/v1/analyze/text", req.URL.Path)

	var body map[string]any
	require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
	assert.Equal(t, "b", body["text"])
	assert.Equal(t, "cjk", body["mode"])

	cfg.Pages = []string{"https://example.com"}
	req, err = cfg.request(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "https://example.com", req.URL.Query().Get("url"))
	assert.Equal(t, "5", req.URL.Query().Get("top_n"))
}

func TestRunLoadTest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"entries":[],"cache_hit":true}`))
	}))
	defer srv.Close()

	stats := runLoadTest(Config{
		BaseURL:     srv.URL,
		Concurrency: 2,
		Duration:    100 * time.Millisecond,
		Mode:        "latin",
		TopN:        3,
		Texts:       sampleTexts,
	})

	require.Positive(t, stats.Total())
	var buf bytes.Buffer
	stats.WriteReport(&buf, 100*time.Millisecond)
	assert.True(t, strings.Contains(buf.String(), "200:"))
}
